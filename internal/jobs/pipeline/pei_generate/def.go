package pei_generate

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

// Generator runs one plan generation and persists its outcome.
type Generator interface {
	RunGeneration(ctx context.Context, planID uuid.UUID, total int) (*types.PEI, error)
}

type Pipeline struct {
	log *logger.Logger
	gen Generator
}

func New(baseLog *logger.Logger, gen Generator) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", "pei_generate"),
		gen: gen,
	}
}

func (p *Pipeline) Type() string { return "pei_generate" }
