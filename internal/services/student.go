package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type StudentInput struct {
	Name      *string `json:"name"`
	BirthDate *string `json:"birth_date"`
	Grade     *string `json:"grade"`
	School    *string `json:"school"`
}

type StudentService interface {
	List(ctx context.Context, limit, offset int) ([]*types.Student, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Student, error)
	Create(ctx context.Context, in StudentInput) (*types.Student, error)
	Update(ctx context.Context, id uuid.UUID, in StudentInput) (*types.Student, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListRespondents(ctx context.Context, id uuid.UUID) ([]*types.Respondent, error)
}

type studentService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Repos
}

func NewStudentService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos) StudentService {
	return &studentService{db: db, log: baseLog.With("service", "StudentService"), repos: r}
}

func (s *studentService) List(ctx context.Context, limit, offset int) ([]*types.Student, error) {
	out, err := s.repos.Students.List(dbctx.Context{Ctx: ctx}, limit, offset)
	if err != nil {
		return nil, toAPIError(err)
	}
	return out, nil
}

func (s *studentService) Get(ctx context.Context, id uuid.UUID) (*types.Student, error) {
	st, err := s.repos.Students.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, toAPIError(err)
	}
	if st == nil {
		return nil, toAPIError(ErrStudentNotFound)
	}
	return st, nil
}

func (s *studentService) Create(ctx context.Context, in StudentInput) (*types.Student, error) {
	name := strings.TrimSpace(deref(in.Name))
	if name == "" {
		return nil, toAPIError(&pei.ValidationError{Field: "name", Err: errors.New("is required")})
	}
	st := &types.Student{
		ID:        uuid.New(),
		Name:      name,
		Status:    types.StudentPendingForm,
		BirthDate: strings.TrimSpace(deref(in.BirthDate)),
		Grade:     strings.TrimSpace(deref(in.Grade)),
		School:    strings.TrimSpace(deref(in.School)),
	}
	if _, err := s.repos.Students.Create(dbctx.Context{Ctx: ctx}, []*types.Student{st}); err != nil {
		s.log.Error("Create student failed", "error", err)
		return nil, toAPIError(err)
	}
	return st, nil
}

// Update applies only the fields present in the input.
func (s *studentService) Update(ctx context.Context, id uuid.UUID, in StudentInput) (*types.Student, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, toAPIError(&pei.ValidationError{Field: "name", Err: errors.New("cannot be blank")})
		}
		updates["name"] = name
	}
	if in.BirthDate != nil {
		updates["birth_date"] = strings.TrimSpace(*in.BirthDate)
	}
	if in.Grade != nil {
		updates["grade"] = strings.TrimSpace(*in.Grade)
	}
	if in.School != nil {
		updates["school"] = strings.TrimSpace(*in.School)
	}
	if err := s.repos.Students.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, toAPIError(err)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes the student together with its live plan, so a new
// plan can be started if the student is restored later.
func (s *studentService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := tx.Where("student_id = ?", id).Delete(&types.PEI{}).Error; err != nil {
			return err
		}
		return s.repos.Students.SoftDeleteByIDs(dbc, []uuid.UUID{id})
	})
	if err != nil {
		return toAPIError(err)
	}
	s.log.Info("Student deleted", "student_id", id)
	return nil
}

func (s *studentService) ListRespondents(ctx context.Context, id uuid.UUID) ([]*types.Respondent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.repos.Respondents.ListByStudent(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, toAPIError(err)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
