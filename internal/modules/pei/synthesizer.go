package pei

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/yungbote/peai-backend/internal/modules/pei"

var planRequiredPaths = []string{
	"student_identification",
	"detailed_report",
	"detailed_report.cognitive_development",
	"detailed_report.attention_concentration",
	"detailed_report.socioemotional",
	"detailed_report.communication",
	"strengths",
	"difficulties",
	"educational_goals",
	"educational_goals.short_term",
	"educational_goals.medium_term",
	"educational_goals.long_term",
	"methodological_strategies",
	"methodological_strategies.content_presentation",
	"methodological_strategies.activities",
	"methodological_strategies.environment",
	"assistive_resources",
	"assistive_resources.required",
	"assistive_resources.recommended",
	"evaluation_criteria",
	"evaluation_criteria.adaptations",
	"evaluation_criteria.diversified_instruments",
	"evaluation_criteria.evaluation_focus",
	"confidence_score",
}

// Synthesizer turns a complete response set into a PlanDocument with one
// generation call. It never retries; a failed call is the caller's decision.
type Synthesizer struct {
	gen    Generator
	now    func() time.Time
	tracer trace.Tracer
}

func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen, now: time.Now, tracer: otel.Tracer(tracerName)}
}

func (s *Synthesizer) Synthesize(ctx context.Context, student StudentInfo, responses []ProfessionalResponse) (*PlanDocument, error) {
	if len(responses) == 0 {
		return nil, &ValidationError{Field: "responses", Err: ErrNoResponses}
	}
	if s.gen == nil {
		return nil, fmt.Errorf("synthesize plan: no generator configured")
	}
	ctx, span := s.tracer.Start(ctx, "pei.synthesize", trace.WithAttributes(
		attribute.Int("pei.responses", len(responses)),
	))
	defer span.End()

	doc, err := s.synthesize(ctx, student, responses)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("pei.confidence_score", doc.ConfidenceScore),
		attribute.Int("pei.rubric_score", doc.ConfidenceRubric.Score),
	)
	return doc, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, student StudentInfo, responses []ProfessionalResponse) (*PlanDocument, error) {
	prompt, err := buildPlanPrompt(student, responses)
	if err != nil {
		return nil, fmt.Errorf("build plan prompt: %w", err)
	}
	text, err := s.gen.Generate(ctx, prompt, planSystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	m, err := decodeObject(text)
	if err != nil {
		return nil, err
	}
	if err := requirePaths(m, planRequiredPaths); err != nil {
		return nil, err
	}
	score, err := requireScore(m, "confidence_score")
	if err != nil {
		return nil, err
	}
	m["confidence_score"] = score
	// Local fields are never taken from the model.
	delete(m, "generated_at")
	delete(m, "confidence_rubric")

	var doc PlanDocument
	if err := decodeInto(m, &doc); err != nil {
		return nil, err
	}
	rubric := ScoreResponses(responses)
	doc.ConfidenceScore = score
	doc.ConfidenceRubric = &rubric
	doc.GeneratedAt = s.now().UTC()
	return &doc, nil
}
