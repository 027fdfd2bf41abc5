package students

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type RespondentRepo interface {
	Create(dbc dbctx.Context, respondents []*types.Respondent) ([]*types.Respondent, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Respondent, error)
	ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Respondent, error)
	ListByPEI(dbc dbctx.Context, peiID uuid.UUID) ([]*types.Respondent, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type respondentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRespondentRepo(db *gorm.DB, baseLog *logger.Logger) RespondentRepo {
	return &respondentRepo{db: db, log: baseLog.With("repo", "RespondentRepo")}
}

func (r *respondentRepo) Create(dbc dbctx.Context, respondents []*types.Respondent) ([]*types.Respondent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(respondents) == 0 {
		return []*types.Respondent{}, nil
	}
	if err := transaction.WithContext(dbc.Context()).Create(&respondents).Error; err != nil {
		return nil, err
	}
	return respondents, nil
}

func (r *respondentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Respondent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Respondent
	if err := transaction.WithContext(dbc.Context()).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *respondentRepo) ListByStudent(dbc dbctx.Context, studentID uuid.UUID) ([]*types.Respondent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Respondent
	if studentID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Where("student_id = ?", studentID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *respondentRepo) ListByPEI(dbc dbctx.Context, peiID uuid.UUID) ([]*types.Respondent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Respondent
	if peiID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(dbc.Context()).
		Where("pei_id = ?", peiID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *respondentRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Context()).
		Model(&types.Respondent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}
