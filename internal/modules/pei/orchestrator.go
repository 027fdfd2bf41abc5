package pei

import (
	"context"
	"time"
)

const (
	OutcomeIncomplete = "incomplete"
	OutcomeSuccess    = "success"
)

type PlanOutcome struct {
	Status     string           `json:"status"`
	Message    string           `json:"message,omitempty"`
	Plan       *PlanDocument    `json:"pei_document,omitempty"`
	Completion CompletionStatus `json:"completion_status"`
}

type Option func(*Orchestrator)

// WithTextLimiter bounds material text sent to the adapter.
func WithTextLimiter(l TextLimiter) Option {
	return func(o *Orchestrator) { o.adapter.limiter = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now == nil {
			return
		}
		o.synth.now = now
		o.adapter.now = now
	}
}

// Orchestrator is the single seam callers use to reach the generative components.
type Orchestrator struct {
	synth   *Synthesizer
	adapter *Adapter
}

func NewOrchestrator(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		synth:   NewSynthesizer(gen),
		adapter: NewAdapter(gen, nil),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GeneratePlan only reaches the generator once every expected response is in.
func (o *Orchestrator) GeneratePlan(ctx context.Context, total int, student StudentInfo, responses []ProfessionalResponse) (*PlanOutcome, error) {
	completion := CheckCompletion(total, responses)
	if !completion.IsComplete {
		return &PlanOutcome{
			Status:     OutcomeIncomplete,
			Message:    "Nem todos os profissionais responderam ainda",
			Completion: completion,
		}, nil
	}
	doc, err := o.synth.Synthesize(ctx, student, responses)
	if err != nil {
		return nil, err
	}
	return &PlanOutcome{Status: OutcomeSuccess, Plan: doc, Completion: completion}, nil
}

func (o *Orchestrator) AdaptMaterial(ctx context.Context, text string, meta MaterialMetadata, plan *PlanDocument) (*AdaptationResult, error) {
	return o.adapter.Adapt(ctx, text, meta, plan)
}
