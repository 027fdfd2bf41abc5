package pei

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaterialTitle = "Sem título"
	DefaultMaterialField = "Não especificada"
)

// teacher_notes and warnings may be omitted and decode as empty.
var adaptationRequiredPaths = []string{
	"original_analysis",
	"original_analysis.content_type",
	"original_analysis.complexity_level",
	"original_analysis.main_concepts",
	"original_analysis.learning_objectives",
	"original_analysis.estimated_time",
	"adaptations_applied",
	"adapted_content_structure",
	"adapted_content_structure.introduction",
	"adapted_content_structure.blocks",
	"adapted_content_structure.practice_activities",
	"adapted_content_structure.summary",
	"adapted_content_structure.evaluation_suggestion",
	"pei_compatibility_score",
	"compatibility_analysis",
	"compatibility_analysis.strengths_addressed",
	"compatibility_analysis.needs_met",
	"compatibility_analysis.strategies_applied",
}

// TextLimiter caps material text before it is embedded in a prompt.
type TextLimiter interface {
	Truncate(text string) (string, bool)
}

type Adapter struct {
	gen     Generator
	limiter TextLimiter
	now     func() time.Time
	tracer  trace.Tracer
}

func NewAdapter(gen Generator, limiter TextLimiter) *Adapter {
	return &Adapter{gen: gen, limiter: limiter, now: time.Now, tracer: otel.Tracer(tracerName)}
}

// Adapt rewrites material text against a plan summary. Callers must ensure the
// student's plan is approved before calling.
func (a *Adapter) Adapt(ctx context.Context, text string, meta MaterialMetadata, plan *PlanDocument) (*AdaptationResult, error) {
	if plan == nil {
		return nil, &PreconditionError{Reason: "material adaptation requires a plan"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "material_text", Err: errors.New("material has no text")}
	}
	if a.gen == nil {
		return nil, fmt.Errorf("adapt material: no generator configured")
	}
	meta = NormalizeMetadata(meta)

	truncated := false
	if a.limiter != nil {
		text, truncated = a.limiter.Truncate(text)
	}
	ctx, span := a.tracer.Start(ctx, "pei.adapt", trace.WithAttributes(
		attribute.String("material.subject", meta.Subject),
		attribute.Bool("material.truncated", truncated),
	))
	defer span.End()

	res, err := a.adapt(ctx, text, meta, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if truncated {
		res.Warnings = append(res.Warnings, "Material original truncado para caber no limite de processamento")
	}
	span.SetAttributes(attribute.Int("material.compatibility_score", res.CompatibilityScore))
	return res, nil
}

func (a *Adapter) adapt(ctx context.Context, text string, meta MaterialMetadata, plan *PlanDocument) (*AdaptationResult, error) {
	prompt, err := buildAdaptPrompt(text, meta, plan)
	if err != nil {
		return nil, fmt.Errorf("build adaptation prompt: %w", err)
	}
	out, err := a.gen.Generate(ctx, prompt, adaptSystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("generate adaptation: %w", err)
	}
	m, err := decodeObject(out)
	if err != nil {
		return nil, err
	}
	if err := requirePaths(m, adaptationRequiredPaths); err != nil {
		return nil, err
	}
	score, err := requireScore(m, "pei_compatibility_score")
	if err != nil {
		return nil, err
	}
	m["pei_compatibility_score"] = score
	delete(m, "generated_at")
	delete(m, "original_metadata")

	var res AdaptationResult
	if err := decodeInto(m, &res); err != nil {
		return nil, err
	}
	res.CompatibilityScore = score
	res.OriginalMetadata = meta
	res.GeneratedAt = a.now().UTC()
	return &res, nil
}

func NormalizeMetadata(meta MaterialMetadata) MaterialMetadata {
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Subject = strings.TrimSpace(meta.Subject)
	meta.Grade = strings.TrimSpace(meta.Grade)
	if meta.Title == "" {
		meta.Title = DefaultMaterialTitle
	}
	if meta.Subject == "" {
		meta.Subject = DefaultMaterialField
	}
	if meta.Grade == "" {
		meta.Grade = DefaultMaterialField
	}
	return meta
}
