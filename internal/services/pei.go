package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/db"
	"github.com/yungbote/peai-backend/internal/data/repos"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/llm"
	"github.com/yungbote/peai-backend/internal/platform/lock"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/platform/pdfrender"
)

const (
	surveyValidDays  = 7
	expiryNoticeDays = 30
)

type ProfessionalInput struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreatePEIInput struct {
	StudentID           *uuid.UUID          `json:"student_id"`
	StudentName         string              `json:"student_name"`
	BirthDate           string              `json:"birth_date"`
	Grade               string              `json:"grade"`
	School              string              `json:"school"`
	SpecialNeeds        []string            `json:"special_needs"`
	HasDiagnosis        bool                `json:"has_diagnosis"`
	InitialObservations string              `json:"initial_observations"`
	Professionals       []ProfessionalInput `json:"professionals"`
}

type CreatePEIResult struct {
	PEI         *types.PEI          `json:"pei"`
	Student     *types.Student      `json:"student"`
	Respondents []*types.Respondent `json:"respondents"`
	SurveyLinks map[string]string   `json:"survey_links"`
}

type SubmitResult struct {
	Response   *types.ProfessionalResponse `json:"response"`
	Completion pei.CompletionStatus        `json:"completion_status"`
	Triggered  bool                        `json:"generation_triggered"`
	Job        *types.JobRun               `json:"job,omitempty"`
}

type StatusView struct {
	PEIID      uuid.UUID            `json:"pei_id"`
	Status     string               `json:"status"`
	AIState    string               `json:"ai_processing_status"`
	Completion pei.CompletionStatus `json:"completion_status"`
	Validity   *pei.ValidityInfo    `json:"validity,omitempty"`
	AIError    string               `json:"ai_error,omitempty"`
	Job        *types.JobRun        `json:"job,omitempty"`
}

type ApproveResult struct {
	PEI      *types.PEI       `json:"pei"`
	Validity pei.ValidityInfo `json:"validity"`
	Message  string           `json:"message,omitempty"`
}

type SweepResult struct {
	Expired  int `json:"expired"`
	Notified int `json:"notified"`
}

type PEIConfig struct {
	ValidityMonths int
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type PEIService interface {
	Create(ctx context.Context, in CreatePEIInput) (*CreatePEIResult, error)
	SubmitResponse(ctx context.Context, planID, participantID uuid.UUID, answers map[string]any) (*SubmitResult, error)
	CheckStatus(ctx context.Context, planID uuid.UUID) (*StatusView, error)
	TriggerGeneration(ctx context.Context, planID uuid.UUID) (*types.JobRun, error)
	RunGeneration(ctx context.Context, planID uuid.UUID, total int) (*types.PEI, error)
	Approve(ctx context.Context, planID uuid.UUID) (*ApproveResult, error)
	Validity(ctx context.Context, planID uuid.UUID) (*pei.ValidityInfo, error)
	Remind(ctx context.Context, planID uuid.UUID) ([]Notification, error)
	SendInvites(ctx context.Context, planID uuid.UUID) ([]Notification, error)
	SweepExpiring(ctx context.Context) (*SweepResult, error)
	List(ctx context.Context, filter repos.PEIFilter) ([]*types.PEI, error)
	Get(ctx context.Context, planID uuid.UUID) (*types.PEI, error)
	ListResponses(ctx context.Context, planID uuid.UUID) ([]*types.ProfessionalResponse, error)
	GetForStudent(ctx context.Context, studentID uuid.UUID) (*types.PEI, error)
	RenderPDF(ctx context.Context, planID uuid.UUID) (string, []byte, error)
}

type peiService struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Repos
	jobs    JobService
	notify  NotificationService
	locker  lock.Locker
	orch    *pei.Orchestrator
	metrics *observability.Metrics
	months  int
	now     func() time.Time
}

func NewPEIService(
	db *gorm.DB,
	baseLog *logger.Logger,
	r repos.Repos,
	jobs JobService,
	notify NotificationService,
	locker lock.Locker,
	orch *pei.Orchestrator,
	metrics *observability.Metrics,
	cfg PEIConfig,
) PEIService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	months := cfg.ValidityMonths
	if months <= 0 {
		months = pei.DefaultValidityMonths
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &peiService{
		db:      db,
		log:     baseLog.With("service", "PEIService"),
		repos:   r,
		jobs:    jobs,
		notify:  notify,
		locker:  locker,
		orch:    orch,
		metrics: metrics,
		months:  months,
		now:     now,
	}
}

// withPlanLock serializes every state-changing step on one plan. The lock is
// always taken before the transaction begins.
func (s *peiService) withPlanLock(ctx context.Context, planID uuid.UUID, fn func() error) error {
	release, err := s.locker.Acquire(ctx, "pei:"+planID.String())
	if err != nil {
		return fmt.Errorf("acquire plan lock: %w", err)
	}
	defer release()
	return fn()
}

func (s *peiService) Create(ctx context.Context, in CreatePEIInput) (*CreatePEIResult, error) {
	if err := validateCreate(in); err != nil {
		return nil, toAPIError(err)
	}

	var out CreatePEIResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		var student *types.Student
		if in.StudentID != nil && *in.StudentID != uuid.Nil {
			st, err := s.repos.Students.GetByID(dbc, *in.StudentID)
			if err != nil {
				return err
			}
			if st == nil {
				return ErrStudentNotFound
			}
			student = st
		} else {
			student = &types.Student{
				ID:        uuid.New(),
				Name:      strings.TrimSpace(in.StudentName),
				Status:    types.StudentPendingForm,
				BirthDate: strings.TrimSpace(in.BirthDate),
				Grade:     strings.TrimSpace(in.Grade),
				School:    strings.TrimSpace(in.School),
			}
			if _, err := s.repos.Students.Create(dbc, []*types.Student{student}); err != nil {
				return err
			}
		}

		existing, err := s.repos.PEIs.GetByStudentID(dbc, student.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrPlanExists
		}

		plan := &types.PEI{
			ID:                  uuid.New(),
			StudentID:           student.ID,
			Status:              string(pei.PlanInCollection),
			AIState:             string(pei.AIPending),
			SpecialNeeds:        datatypes.JSONSlice[string](cleanList(in.SpecialNeeds)),
			HasDiagnosis:        in.HasDiagnosis,
			InitialObservations: strings.TrimSpace(in.InitialObservations),
			TotalProfessionals:  len(in.Professionals),
		}
		respondents := make([]*types.Respondent, 0, len(in.Professionals))
		for _, p := range in.Professionals {
			r := &types.Respondent{
				ID:        uuid.New(),
				StudentID: student.ID,
				PEIID:     &plan.ID,
				Role:      strings.TrimSpace(p.Type),
				Name:      strings.TrimSpace(p.Name),
				Email:     strings.TrimSpace(p.Email),
				Phone:     strings.TrimSpace(p.Phone),
				Status:    types.RespondentLink,
			}
			respondents = append(respondents, r)
			plan.Professionals = append(plan.Professionals, types.Professional{
				ID: r.ID, Type: r.Role, Name: r.Name, Email: r.Email, Phone: r.Phone,
			})
		}

		if _, err := s.repos.PEIs.Create(dbc, []*types.PEI{plan}); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrPlanExists
			}
			return err
		}
		if _, err := s.repos.Respondents.Create(dbc, respondents); err != nil {
			return err
		}
		out.PEI = plan
		out.Student = student
		out.Respondents = respondents
		return nil
	})
	if err != nil {
		return nil, toAPIError(err)
	}

	s.metrics.IncPlanTransition(string(pei.PlanInCollection))
	s.log.Info("PEI created", "pei_id", out.PEI.ID, "student_id", out.Student.ID, "professionals", len(out.Respondents))

	links := s.notify.Links()
	out.SurveyLinks = make(map[string]string, len(out.Respondents))
	for _, r := range out.Respondents {
		out.SurveyLinks[r.ID.String()] = links.Survey(out.PEI.ID, r.ID)
		_, _ = s.invite(ctx, out.PEI.ID, out.Student.Name, r)
	}
	return &out, nil
}

func (s *peiService) invite(ctx context.Context, planID uuid.UUID, studentName string, r *types.Respondent) (*Notification, error) {
	return s.notify.Notify(ctx, pei.MessageSurveyInvite, Notification{
		PEIID: planID, Recipient: r.Name, Phone: r.Phone, Email: r.Email,
	}, map[string]any{
		"professional_name": r.Name,
		"student_name":      studentName,
		"survey_link":       s.notify.Links().Survey(planID, r.ID),
	})
}

func validateCreate(in CreatePEIInput) error {
	if (in.StudentID == nil || *in.StudentID == uuid.Nil) && strings.TrimSpace(in.StudentName) == "" {
		return &pei.ValidationError{Field: "student_name", Err: errors.New("is required when student_id is absent")}
	}
	if len(in.Professionals) == 0 {
		return &pei.ValidationError{Field: "professionals", Err: errors.New("at least one professional is required")}
	}
	for i, p := range in.Professionals {
		if strings.TrimSpace(p.Name) == "" {
			return &pei.ValidationError{Field: fmt.Sprintf("professionals[%d].name", i), Err: errors.New("is required")}
		}
		if strings.TrimSpace(p.Type) == "" {
			return &pei.ValidationError{Field: fmt.Sprintf("professionals[%d].type", i), Err: errors.New("is required")}
		}
	}
	return nil
}

// SubmitResponse stores one participant's answers. When that response
// completes the set, the same transaction moves the plan into review and
// enqueues the single generation job for it.
func (s *peiService) SubmitResponse(ctx context.Context, planID, participantID uuid.UUID, answers map[string]any) (*SubmitResult, error) {
	switch {
	case planID == uuid.Nil:
		return nil, toAPIError(&pei.ValidationError{Field: "pei_id", Err: errors.New("is required")})
	case participantID == uuid.Nil:
		return nil, toAPIError(&pei.ValidationError{Field: "professional_id", Err: errors.New("is required")})
	case len(answers) == 0:
		return nil, toAPIError(&pei.ValidationError{Field: "responses", Err: errors.New("must not be empty")})
	}
	answersJSON, err := toJSON(answers)
	if err != nil {
		return nil, toAPIError(&pei.ValidationError{Field: "responses", Err: err})
	}

	var out SubmitResult
	err = s.withPlanLock(ctx, planID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			plan, err := s.repos.PEIs.GetByID(dbc, planID)
			if err != nil {
				return err
			}
			if plan == nil {
				return pei.ErrPlanNotFound
			}
			prof, ok := findProfessional(plan, participantID)
			if !ok {
				return pei.ErrParticipantNotFound
			}
			if pei.PlanStatus(plan.Status) != pei.PlanInCollection {
				exists, err := s.repos.Responses.Exists(dbc, planID, participantID)
				if err != nil {
					return err
				}
				if exists {
					return pei.ErrDuplicateResponse
				}
				return &pei.PreconditionError{Reason: "plan is not collecting responses (status " + plan.Status + ")"}
			}

			resp := &types.ProfessionalResponse{
				ID:               uuid.New(),
				PEIID:            planID,
				ProfessionalID:   participantID,
				ProfessionalType: prof.Type,
				ProfessionalName: prof.Name,
				Answers:          answersJSON,
				SubmittedAt:      s.now(),
			}
			if err := s.repos.Responses.Create(dbc, resp); err != nil {
				return err
			}
			if err := s.repos.Respondents.UpdateStatus(dbc, participantID, types.RespondentCompleted); err != nil {
				return err
			}
			n, err := s.repos.Responses.CountByPEI(dbc, planID)
			if err != nil {
				return err
			}
			out.Response = resp
			out.Completion = pei.CheckCompletionCount(plan.TotalProfessionals, int(n))
			if !out.Completion.IsComplete {
				return nil
			}

			moved, err := s.repos.PEIs.TransitionStatus(dbc, planID,
				[]string{string(pei.PlanInCollection)}, string(pei.PlanInReview),
				map[string]interface{}{"ai_state": string(pei.AIProcessing), "ai_error": ""})
			if err != nil {
				return err
			}
			if !moved {
				return nil
			}
			job, err := s.jobs.Enqueue(dbc, JobTypePEIGenerate, EntityPEI, &planID, map[string]any{
				"pei_id": planID.String(),
				"total":  plan.TotalProfessionals,
			})
			if err != nil {
				return err
			}
			out.Triggered = true
			out.Job = job
			return nil
		})
	})
	if err != nil {
		return nil, toAPIError(err)
	}

	s.log.Info("Response submitted",
		"pei_id", planID,
		"professional_id", participantID,
		"completed", out.Completion.Completed,
		"total", out.Completion.Total,
		"generation_triggered", out.Triggered,
	)
	if out.Triggered {
		s.metrics.IncPlanTransition(string(pei.PlanInReview))
	}
	return &out, nil
}

func findProfessional(plan *types.PEI, id uuid.UUID) (types.Professional, bool) {
	for _, p := range plan.Professionals {
		if p.ID == id {
			return p, true
		}
	}
	return types.Professional{}, false
}

func (s *peiService) CheckStatus(ctx context.Context, planID uuid.UUID) (*StatusView, error) {
	dbc := dbctx.Context{Ctx: ctx}
	plan, err := s.loadPlan(dbc, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	n, err := s.repos.Responses.CountByPEI(dbc, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	view := &StatusView{
		PEIID:      plan.ID,
		Status:     plan.Status,
		AIState:    plan.AIState,
		AIError:    plan.AIError,
		Completion: pei.CheckCompletionCount(plan.TotalProfessionals, int(n)),
	}
	if plan.ApprovedAt != nil {
		info, status, err := s.refreshValidity(ctx, plan)
		if err != nil {
			return nil, toAPIError(err)
		}
		view.Validity = info
		view.Status = status
	}
	job, err := s.jobs.GetLatestForEntity(dbc, EntityPEI, planID, JobTypePEIGenerate)
	if err != nil {
		return nil, toAPIError(err)
	}
	view.Job = job
	return view, nil
}

// TriggerGeneration starts generation by hand using whatever responses exist.
func (s *peiService) TriggerGeneration(ctx context.Context, planID uuid.UUID) (*types.JobRun, error) {
	var job *types.JobRun
	err := s.withPlanLock(ctx, planID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			plan, err := s.loadPlan(dbc, planID)
			if err != nil {
				return err
			}
			from := pei.Strings(pei.RegenerableFrom())
			if pei.AIState(plan.AIState) == pei.AIProcessing {
				active, err := s.jobs.HasActiveForEntity(dbc, EntityPEI, planID, JobTypePEIGenerate)
				if err != nil {
					return err
				}
				if active {
					return &pei.PreconditionError{Reason: "generation already in progress"}
				}
				// The job died without recording an outcome.
				s.log.Warn("Restarting orphaned generation", "pei_id", planID, "status", plan.Status)
				from = append(from, string(pei.PlanInReview))
			}
			n, err := s.repos.Responses.CountByPEI(dbc, planID)
			if err != nil {
				return err
			}
			if n == 0 {
				return &pei.PreconditionError{Reason: "no responses to synthesize", Err: pei.ErrNoResponses}
			}
			moved, err := s.repos.PEIs.TransitionStatus(dbc, planID,
				from, string(pei.PlanInReview),
				map[string]interface{}{"ai_state": string(pei.AIProcessing), "ai_error": ""})
			if err != nil {
				return err
			}
			if !moved {
				return &pei.PreconditionError{
					Reason: fmt.Sprintf("cannot generate from status %s", plan.Status),
					Err:    pei.ErrInvalidTransition,
				}
			}
			job, err = s.jobs.Enqueue(dbc, JobTypePEIGenerate, EntityPEI, &planID, map[string]any{
				"pei_id": planID.String(),
				"total":  int(n),
			})
			return err
		})
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	s.metrics.IncPlanTransition(string(pei.PlanInReview))
	s.log.Info("Generation triggered manually", "pei_id", planID, "job_id", job.ID)
	return job, nil
}

// RunGeneration synthesizes the plan document for a plan in review. The
// backend call happens outside the plan lock; persisting the outcome is a
// conditional move out of in_review under the lock.
func (s *peiService) RunGeneration(ctx context.Context, planID uuid.UUID, total int) (_ *types.PEI, err error) {
	dbc := dbctx.Context{Ctx: ctx}
	// Until the document is stored, any error or panic fails the plan so it
	// can be retried by hand. The move only applies to plans still in review.
	stored := false
	defer func() {
		if stored {
			return
		}
		if r := recover(); r != nil {
			s.failGeneration(context.WithoutCancel(ctx), planID, fmt.Errorf("generation panicked: %v", r))
			panic(r)
		}
		if err != nil {
			s.failGeneration(context.WithoutCancel(ctx), planID, err)
		}
	}()

	plan, err := s.loadPlan(dbc, planID)
	if err != nil {
		return nil, err
	}
	if pei.PlanStatus(plan.Status) != pei.PlanInReview {
		return nil, &pei.PreconditionError{Reason: "plan is not awaiting generation (status " + plan.Status + ")"}
	}
	student, err := s.repos.Students.GetByID(dbc, plan.StudentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repos.Responses.ListByPEI(dbc, planID)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		total = plan.TotalProfessionals
	}

	start := time.Now()
	outcome, genErr := s.orch.GeneratePlan(llm.WithKind(ctx, "plan"), total, studentInfo(student, plan), coreResponses(rows))
	if genErr == nil && outcome.Status != pei.OutcomeSuccess {
		genErr = &pei.PreconditionError{Reason: outcome.Message, Err: pei.ErrNoResponses}
	}
	if genErr != nil {
		return nil, genErr
	}

	docJSON, err := toJSON(outcome.Plan)
	if err != nil {
		return nil, err
	}
	err = s.withPlanLock(ctx, planID, func() error {
		moved, err := s.repos.PEIs.TransitionStatus(dbc, planID,
			[]string{string(pei.PlanInReview)}, string(pei.PlanCompleted),
			map[string]interface{}{
				"document":         docJSON,
				"confidence_score": outcome.Plan.ConfidenceScore,
				"ai_state":         string(pei.AICompleted),
				"ai_error":         "",
				"ai_processed_at":  s.now(),
				"generation_count": gorm.Expr("generation_count + 1"),
			})
		if err != nil {
			return err
		}
		if !moved {
			return &pei.PreconditionError{Reason: "plan left review during generation", Err: pei.ErrInvalidTransition}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	stored = true
	s.metrics.IncPlanTransition(string(pei.PlanCompleted))
	s.log.Info("PEI generated",
		"pei_id", planID,
		"responses", len(rows),
		"confidence_score", outcome.Plan.ConfidenceScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	name := ""
	if student != nil {
		name = student.Name
	}
	_, _ = s.notify.Notify(ctx, pei.MessagePlanReady, Notification{PEIID: planID, Recipient: "coordination"}, map[string]any{
		"student_name":   name,
		"dashboard_link": s.notify.Links().Dashboard(planID),
	})
	return s.repos.PEIs.GetByID(dbc, planID)
}

func (s *peiService) failGeneration(ctx context.Context, planID uuid.UUID, cause error) {
	msg := "generation failed"
	if cause != nil {
		msg = cause.Error()
	}
	moved := false
	err := s.withPlanLock(ctx, planID, func() error {
		var err error
		moved, err = s.repos.PEIs.TransitionStatus(dbctx.Context{Ctx: ctx}, planID,
			[]string{string(pei.PlanInReview)}, string(pei.PlanFailed),
			map[string]interface{}{"ai_state": string(pei.AIFailed), "ai_error": msg})
		return err
	})
	if err != nil {
		s.log.Error("Recording generation failure failed", "pei_id", planID, "error", err)
		return
	}
	if !moved {
		return
	}
	s.metrics.IncPlanTransition(string(pei.PlanFailed))
	s.log.Warn("PEI generation failed", "pei_id", planID, "error", msg)
}

func (s *peiService) Approve(ctx context.Context, planID uuid.UUID) (*ApproveResult, error) {
	now := s.now()
	expires := pei.ExpiryDate(now, s.months)
	var student *types.Student
	err := s.withPlanLock(ctx, planID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			plan, err := s.loadPlan(dbc, planID)
			if err != nil {
				return err
			}
			if pei.AIState(plan.AIState) != pei.AICompleted || pei.PlanStatus(plan.Status) != pei.PlanCompleted {
				return &pei.PreconditionError{
					Reason: fmt.Sprintf("plan must be generated before approval (status %s, ai %s)", plan.Status, plan.AIState),
				}
			}
			moved, err := s.repos.PEIs.TransitionStatus(dbc, planID,
				[]string{string(pei.PlanCompleted)}, string(pei.PlanApproved),
				map[string]interface{}{"approved_at": now, "expires_at": expires, "expiry_notified_at": nil})
			if err != nil {
				return err
			}
			if !moved {
				return &pei.PreconditionError{Reason: "plan changed during approval", Err: pei.ErrInvalidTransition}
			}
			if err := s.repos.Students.UpdateFields(dbc, plan.StudentID, map[string]interface{}{
				"has_access": true,
				"status":     types.StudentActive,
			}); err != nil {
				return err
			}
			student, err = s.repos.Students.GetByID(dbc, plan.StudentID)
			return err
		})
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	s.metrics.IncPlanTransition(string(pei.PlanApproved))

	plan, err := s.repos.PEIs.GetByID(dbctx.Context{Ctx: ctx}, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := &ApproveResult{PEI: plan, Validity: pei.ComputeValidity(now, s.months, now)}
	name := ""
	if student != nil {
		name = student.Name
	}
	if n, err := s.notify.Notify(ctx, pei.MessagePlanApproved, Notification{PEIID: planID, Recipient: name}, map[string]any{
		"student_name":   name,
		"validity_date":  out.Validity.ExpiryDate,
		"dashboard_link": s.notify.Links().Dashboard(planID),
	}); err == nil {
		out.Message = n.Body
	}
	s.log.Info("PEI approved", "pei_id", planID, "expires_at", expires)
	return out, nil
}

func (s *peiService) Validity(ctx context.Context, planID uuid.UUID) (*pei.ValidityInfo, error) {
	plan, err := s.loadPlan(dbctx.Context{Ctx: ctx}, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if plan.ApprovedAt == nil {
		return nil, toAPIError(&pei.PreconditionError{Reason: "plan has not been approved"})
	}
	info, _, err := s.refreshValidity(ctx, plan)
	if err != nil {
		return nil, toAPIError(err)
	}
	return info, nil
}

// refreshValidity computes validity and marks an approved plan expired once
// its period has elapsed. It returns the plan's resulting status.
func (s *peiService) refreshValidity(ctx context.Context, plan *types.PEI) (*pei.ValidityInfo, string, error) {
	info := pei.ComputeValidity(*plan.ApprovedAt, s.months, s.now())
	status := plan.Status
	if info.Status != pei.ValidityExpired || pei.PlanStatus(plan.Status) != pei.PlanApproved {
		return &info, status, nil
	}
	err := s.withPlanLock(ctx, plan.ID, func() error {
		moved, err := s.repos.PEIs.TransitionStatus(dbctx.Context{Ctx: ctx}, plan.ID,
			[]string{string(pei.PlanApproved)}, string(pei.PlanExpired), nil)
		if err != nil {
			return err
		}
		if moved {
			s.metrics.IncPlanTransition(string(pei.PlanExpired))
			s.log.Info("PEI expired", "pei_id", plan.ID)
		}
		return nil
	})
	if err != nil {
		return nil, status, err
	}
	return &info, string(pei.PlanExpired), nil
}

// pendingRoster loads a collecting plan's student name and the roster members
// who have not answered yet.
func (s *peiService) pendingRoster(dbc dbctx.Context, planID uuid.UUID) (*types.PEI, string, []*types.Respondent, error) {
	plan, err := s.loadPlan(dbc, planID)
	if err != nil {
		return nil, "", nil, err
	}
	if pei.PlanStatus(plan.Status) != pei.PlanInCollection {
		return nil, "", nil, &pei.PreconditionError{Reason: "plan is not collecting responses (status " + plan.Status + ")"}
	}
	student, err := s.repos.Students.GetByID(dbc, plan.StudentID)
	if err != nil {
		return nil, "", nil, err
	}
	respondents, err := s.repos.Respondents.ListByPEI(dbc, planID)
	if err != nil {
		return nil, "", nil, err
	}
	name := ""
	if student != nil {
		name = student.Name
	}
	pending := make([]*types.Respondent, 0, len(respondents))
	for _, r := range respondents {
		done, err := s.repos.Responses.Exists(dbc, planID, r.ID)
		if err != nil {
			return nil, "", nil, err
		}
		if !done {
			pending = append(pending, r)
		}
	}
	return plan, name, pending, nil
}

// SendInvites re-sends the original survey invite to every roster member still
// missing a response.
func (s *peiService) SendInvites(ctx context.Context, planID uuid.UUID) ([]Notification, error) {
	_, name, pending, err := s.pendingRoster(dbctx.Context{Ctx: ctx}, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	out := []Notification{}
	for _, r := range pending {
		n, err := s.invite(ctx, planID, name, r)
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	s.log.Info("Survey invites re-sent", "pei_id", planID, "sent", len(out))
	return out, nil
}

// Remind composes a reminder for every roster member still missing a response.
func (s *peiService) Remind(ctx context.Context, planID uuid.UUID) ([]Notification, error) {
	plan, name, pending, err := s.pendingRoster(dbctx.Context{Ctx: ctx}, planID)
	if err != nil {
		return nil, toAPIError(err)
	}

	deadline := plan.CreatedAt.Add(surveyValidDays * 24 * time.Hour)
	daysLeft := int(math.Ceil(deadline.Sub(s.now()).Hours() / 24))
	if daysLeft < 0 {
		daysLeft = 0
	}
	links := s.notify.Links()
	out := []Notification{}
	for _, r := range pending {
		n, err := s.notify.Notify(ctx, pei.MessageReminder, Notification{
			PEIID: planID, Recipient: r.Name, Phone: r.Phone, Email: r.Email,
		}, map[string]any{
			"student_name": name,
			"survey_link":  links.Survey(planID, r.ID),
			"days_left":    daysLeft,
		})
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

// SweepExpiring expires elapsed plans and sends a renewal notice for plans
// inside the renewal window.
func (s *peiService) SweepExpiring(ctx context.Context) (*SweepResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	cutoff := s.now().Add(expiryNoticeDays * 24 * time.Hour)
	plans, err := s.repos.PEIs.ListExpiring(dbc, string(pei.PlanApproved), cutoff)
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	for _, p := range plans {
		if p.ApprovedAt == nil {
			continue
		}
		info, status, err := s.refreshValidity(ctx, p)
		if err != nil {
			s.log.Warn("Validity refresh failed", "pei_id", p.ID, "error", err)
			continue
		}
		if status == string(pei.PlanExpired) {
			res.Expired++
			continue
		}
		if p.ExpiryNotifiedAt != nil {
			continue
		}
		student, err := s.repos.Students.GetByID(dbc, p.StudentID)
		if err != nil || student == nil {
			continue
		}
		// One notice per approval; the stamp is taken before sending so
		// concurrent sweeps cannot both send.
		claimed, err := s.repos.PEIs.MarkExpiryNotified(dbc, p.ID, string(pei.PlanApproved), s.now())
		if err != nil {
			s.log.Warn("Marking expiry notice failed", "pei_id", p.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		if _, err := s.notify.Notify(ctx, pei.MessagePlanExpiring, Notification{PEIID: p.ID, Recipient: student.Name}, map[string]any{
			"student_name":      student.Name,
			"days_until_expiry": info.DaysUntilExpiry,
			"dashboard_link":    s.notify.Links().Dashboard(p.ID),
		}); err != nil {
			if uerr := s.repos.PEIs.UpdateFields(dbc, p.ID, map[string]interface{}{"expiry_notified_at": nil}); uerr != nil {
				s.log.Warn("Releasing expiry notice failed", "pei_id", p.ID, "error", uerr)
			}
			continue
		}
		res.Notified++
	}
	return res, nil
}

func (s *peiService) List(ctx context.Context, filter repos.PEIFilter) ([]*types.PEI, error) {
	out, err := s.repos.PEIs.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, toAPIError(err)
	}
	return out, nil
}

func (s *peiService) Get(ctx context.Context, planID uuid.UUID) (*types.PEI, error) {
	plan, err := s.loadPlan(dbctx.Context{Ctx: ctx}, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return plan, nil
}

func (s *peiService) ListResponses(ctx context.Context, planID uuid.UUID) ([]*types.ProfessionalResponse, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.loadPlan(dbc, planID); err != nil {
		return nil, toAPIError(err)
	}
	out, err := s.repos.Responses.ListByPEI(dbc, planID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return out, nil
}

func (s *peiService) GetForStudent(ctx context.Context, studentID uuid.UUID) (*types.PEI, error) {
	plan, err := s.repos.PEIs.GetByStudentID(dbctx.Context{Ctx: ctx}, studentID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if plan == nil {
		return nil, toAPIError(pei.ErrPlanNotFound)
	}
	return plan, nil
}

// RenderPDF returns a suggested file name and the rendered plan.
func (s *peiService) RenderPDF(ctx context.Context, planID uuid.UUID) (string, []byte, error) {
	dbc := dbctx.Context{Ctx: ctx}
	plan, err := s.loadPlan(dbc, planID)
	if err != nil {
		return "", nil, toAPIError(err)
	}
	doc, err := planDocument(plan)
	if err != nil {
		return "", nil, toAPIError(&pei.RenderingError{Err: err})
	}
	if doc == nil {
		return "", nil, toAPIError(&pei.PreconditionError{Reason: "plan has no generated document"})
	}
	student, err := s.repos.Students.GetByID(dbc, plan.StudentID)
	if err != nil {
		return "", nil, toAPIError(err)
	}
	name := ""
	if student != nil {
		name = student.Name
	}
	var buf bytes.Buffer
	if err := pdfrender.RenderPlan(&buf, pdfrender.PlanHeader{
		StudentName:         name,
		Status:              pei.PlanStatus(plan.Status),
		CreatedAt:           plan.CreatedAt,
		ApprovedAt:          plan.ApprovedAt,
		ExpiresAt:           plan.ExpiresAt,
		SpecialNeeds:        plan.SpecialNeeds,
		InitialObservations: plan.InitialObservations,
	}, doc); err != nil {
		s.log.Error("Plan rendering failed", "pei_id", planID, "error", err)
		return "", nil, toAPIError(&pei.RenderingError{Err: err})
	}
	return "PEI_" + fileSafe(name) + ".pdf", buf.Bytes(), nil
}

func (s *peiService) loadPlan(dbc dbctx.Context, planID uuid.UUID) (*types.PEI, error) {
	plan, err := s.repos.PEIs.GetByID(dbc, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pei.ErrPlanNotFound
	}
	return plan, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func fileSafe(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "documento"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}
