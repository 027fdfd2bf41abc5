package plans

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/db"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type ResponseRepo interface {
	Create(dbc dbctx.Context, resp *types.ProfessionalResponse) error
	ListByPEI(dbc dbctx.Context, peiID uuid.UUID) ([]*types.ProfessionalResponse, error)
	CountByPEI(dbc dbctx.Context, peiID uuid.UUID) (int64, error)
	Exists(dbc dbctx.Context, peiID, professionalID uuid.UUID) (bool, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	return &responseRepo{db: db, log: baseLog.With("repo", "ResponseRepo")}
}

// Create stores a response. A second response from the same participant to
// the same plan fails with pei.ErrDuplicateResponse.
func (r *responseRepo) Create(dbc dbctx.Context, resp *types.ProfessionalResponse) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if resp == nil {
		return nil
	}
	exists, err := r.Exists(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, resp.PEIID, resp.ProfessionalID)
	if err != nil {
		return err
	}
	if exists {
		return pei.ErrDuplicateResponse
	}
	if err := transaction.WithContext(dbc.Context()).Create(resp).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return pei.ErrDuplicateResponse
		}
		return err
	}
	return nil
}

// ListByPEI returns responses in submission order.
func (r *responseRepo) ListByPEI(dbc dbctx.Context, peiID uuid.UUID) ([]*types.ProfessionalResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ProfessionalResponse
	if peiID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Where("pei_id = ?", peiID).
		Order("submitted_at ASC").
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseRepo) CountByPEI(dbc dbctx.Context, peiID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if peiID == uuid.Nil {
		return 0, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Model(&types.ProfessionalResponse{}).
		Where("pei_id = ?", peiID).
		Count(&n).Error
	return n, err
}

func (r *responseRepo) Exists(dbc dbctx.Context, peiID, professionalID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Context()).
		Model(&types.ProfessionalResponse{}).
		Where("pei_id = ? AND professional_id = ?", peiID, professionalID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
