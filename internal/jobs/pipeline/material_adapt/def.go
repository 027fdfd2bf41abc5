package material_adapt

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type Adapter interface {
	RunAdaptation(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, error)
}

type Pipeline struct {
	log     *logger.Logger
	adapter Adapter
}

func New(baseLog *logger.Logger, adapter Adapter) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("job", "material_adapt"),
		adapter: adapter,
	}
}

func (p *Pipeline) Type() string { return "material_adapt" }
