package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type AdaptedMaterialRepo interface {
	Create(dbc dbctx.Context, materials []*types.AdaptedMaterial) ([]*types.AdaptedMaterial, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AdaptedMaterial, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.AdaptedMaterial, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)
}

type adaptedMaterialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdaptedMaterialRepo(db *gorm.DB, baseLog *logger.Logger) AdaptedMaterialRepo {
	return &adaptedMaterialRepo{db: db, log: baseLog.With("repo", "AdaptedMaterialRepo")}
}

func (r *adaptedMaterialRepo) Create(dbc dbctx.Context, materials []*types.AdaptedMaterial) ([]*types.AdaptedMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(materials) == 0 {
		return []*types.AdaptedMaterial{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *adaptedMaterialRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AdaptedMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var m types.AdaptedMaterial
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).Limit(1).Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

// ListByStudent returns the student's materials, most recent upload first.
func (r *adaptedMaterialRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.AdaptedMaterial, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AdaptedMaterial
	if studentID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Order("uploaded_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *adaptedMaterialRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.AdaptedMaterial{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TransitionStatus applies updates only while the material's status is one of from.
func (r *adaptedMaterialRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(from) == 0 {
		return false, nil
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = to
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Context()).
		Model(&types.AdaptedMaterial{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
