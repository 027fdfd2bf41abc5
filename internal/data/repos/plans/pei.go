package plans

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type PEIFilter struct {
	Statuses  []string
	StudentID uuid.UUID
	Limit     int
	Offset    int
}

type PEIRepo interface {
	Create(dbc dbctx.Context, plans []*types.PEI) ([]*types.PEI, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PEI, error)
	GetByStudentID(dbc dbctx.Context, studentID uuid.UUID) (*types.PEI, error)
	List(dbc dbctx.Context, filter PEIFilter) ([]*types.PEI, error)
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListExpiring(dbc dbctx.Context, status string, before time.Time) ([]*types.PEI, error)
	MarkExpiryNotified(dbc dbctx.Context, id uuid.UUID, status string, at time.Time) (bool, error)
}

type peiRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPEIRepo(db *gorm.DB, baseLog *logger.Logger) PEIRepo {
	return &peiRepo{db: db, log: baseLog.With("repo", "PEIRepo")}
}

func (r *peiRepo) Create(dbc dbctx.Context, plans []*types.PEI) ([]*types.PEI, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.PEI{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *peiRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PEI, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.PEI
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

// GetByStudentID returns the student's live plan. There is at most one.
func (r *peiRepo) GetByStudentID(dbc dbctx.Context, studentID uuid.UUID) (*types.PEI, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == uuid.Nil {
		return nil, nil
	}
	var p types.PEI
	err := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *peiRepo) List(dbc dbctx.Context, filter PEIFilter) ([]*types.PEI, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Context()).Model(&types.PEI{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.StudentID != uuid.Nil {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var results []*types.PEI
	if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// TransitionStatus moves a plan to `to` only while its current status is one
// of `from`. It reports whether this call made the move.
func (r *peiRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
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
		Model(&types.PEI{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *peiRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.PEI{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListExpiring returns plans in status whose expiry falls before the cutoff.
func (r *peiRepo) ListExpiring(dbc dbctx.Context, status string, before time.Time) ([]*types.PEI, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PEI
	err := transaction.WithContext(dbc.Context()).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", status, before).
		Order("expires_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MarkExpiryNotified stamps the renewal notice on a plan in status. It reports
// false when the plan moved on or another sweep already stamped it.
func (r *peiRepo) MarkExpiryNotified(dbc dbctx.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Context()).
		Model(&types.PEI{}).
		Where("id = ? AND status = ? AND expiry_notified_at IS NULL", id, status).
		Updates(map[string]interface{}{"expiry_notified_at": at, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
