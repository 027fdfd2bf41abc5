package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/llm"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/platform/pdfrender"
	"github.com/yungbote/peai-backend/internal/platform/pdftext"
)

const maxUploadBytes = 20 << 20

type UploadInput struct {
	StudentID uuid.UUID
	Filename  string
	MimeType  string
	Data      []byte
	Title     string
	Subject   string
	Grade     string
}

type MaterialConfig struct {
	// PDFDir is where rendered adaptations are stored. Empty disables storage;
	// downloads then render on demand.
	PDFDir string
	Now    func() time.Time
}

type MaterialService interface {
	Upload(ctx context.Context, in UploadInput) (*types.AdaptedMaterial, *types.JobRun, error)
	Regenerate(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, *types.JobRun, error)
	RunAdaptation(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, error)
	Get(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]*types.AdaptedMaterial, error)
	DownloadPDF(ctx context.Context, materialID uuid.UUID) (string, []byte, error)
}

type materialService struct {
	db     *gorm.DB
	log    *logger.Logger
	repos  repos.Repos
	jobs   JobService
	orch   *pei.Orchestrator
	pdfDir string
	now    func() time.Time
}

func NewMaterialService(
	db *gorm.DB,
	baseLog *logger.Logger,
	r repos.Repos,
	jobs JobService,
	orch *pei.Orchestrator,
	cfg MaterialConfig,
) MaterialService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &materialService{
		db:     db,
		log:    baseLog.With("service", "MaterialService"),
		repos:  r,
		jobs:   jobs,
		orch:   orch,
		pdfDir: strings.TrimSpace(cfg.PDFDir),
		now:    now,
	}
}

// Upload stores a teaching material for a student with an approved plan and
// queues its adaptation.
func (s *materialService) Upload(ctx context.Context, in UploadInput) (*types.AdaptedMaterial, *types.JobRun, error) {
	if in.StudentID == uuid.Nil {
		return nil, nil, toAPIError(&pei.ValidationError{Field: "student_id", Err: errors.New("is required")})
	}
	if len(in.Data) > maxUploadBytes {
		return nil, nil, toAPIError(&pei.ValidationError{Field: "file", Err: fmt.Errorf("larger than %d bytes", maxUploadBytes)})
	}
	text, err := pdftext.Extract(in.Filename, in.MimeType, in.Data)
	if err != nil {
		return nil, nil, toAPIError(&pei.ValidationError{Field: "file", Err: err})
	}
	meta := pei.NormalizeMetadata(pei.MaterialMetadata{
		Title:   firstNonEmpty(in.Title, strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))),
		Subject: in.Subject,
		Grade:   in.Grade,
	})

	var (
		material *types.AdaptedMaterial
		job      *types.JobRun
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		student, err := s.repos.Students.GetByID(dbc, in.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return ErrStudentNotFound
		}
		plan, err := s.approvedPlan(dbc, in.StudentID)
		if err != nil {
			return err
		}
		material = &types.AdaptedMaterial{
			ID:               uuid.New(),
			StudentID:        in.StudentID,
			PEIID:            &plan.ID,
			OriginalFilename: strings.TrimSpace(in.Filename),
			OriginalContent:  text,
			Title:            meta.Title,
			Subject:          meta.Subject,
			Grade:            meta.Grade,
			Status:           string(pei.MaterialProcessing),
			UploadedAt:       s.now(),
		}
		if _, err := s.repos.Materials.Create(dbc, []*types.AdaptedMaterial{material}); err != nil {
			return err
		}
		job, err = s.jobs.Enqueue(dbc, JobTypeMaterialAdapt, EntityMaterial, &material.ID, map[string]any{
			"material_id": material.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, nil, toAPIError(err)
	}
	s.log.Info("Material uploaded",
		"material_id", material.ID,
		"student_id", in.StudentID,
		"chars", len([]rune(text)),
		"job_id", job.ID,
	)
	return material, job, nil
}

func (s *materialService) Regenerate(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, *types.JobRun, error) {
	var job *types.JobRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		m, err := s.loadMaterial(dbc, materialID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(m.OriginalContent) == "" {
			return &pei.PreconditionError{Reason: "material has no stored text to adapt"}
		}
		if _, err := s.approvedPlan(dbc, m.StudentID); err != nil {
			return err
		}
		from := []string{string(pei.MaterialCompleted), string(pei.MaterialError)}
		if pei.MaterialStatus(m.Status) == pei.MaterialProcessing {
			active, err := s.jobs.HasActiveForEntity(dbc, EntityMaterial, materialID, JobTypeMaterialAdapt)
			if err != nil {
				return err
			}
			if !active {
				// The job died without recording an outcome.
				s.log.Warn("Restarting orphaned adaptation", "material_id", materialID)
				from = append(from, string(pei.MaterialProcessing))
			}
		}
		moved, err := s.repos.Materials.TransitionStatus(dbc, materialID,
			from, string(pei.MaterialProcessing),
			map[string]interface{}{"error": ""})
		if err != nil {
			return err
		}
		if !moved {
			return &pei.PreconditionError{Reason: "material is already being processed", Err: pei.ErrInvalidTransition}
		}
		job, err = s.jobs.Enqueue(dbc, JobTypeMaterialAdapt, EntityMaterial, &materialID, map[string]any{
			"material_id": materialID.String(),
		})
		return err
	})
	if err != nil {
		return nil, nil, toAPIError(err)
	}
	m, err := s.repos.Materials.GetByID(dbctx.Context{Ctx: ctx}, materialID)
	if err != nil {
		return nil, nil, toAPIError(err)
	}
	return m, job, nil
}

// RunAdaptation adapts a processing material against the student's approved
// plan. Rendering the PDF is best effort: a RenderingError is logged and the
// structured result is kept.
func (s *materialService) RunAdaptation(ctx context.Context, materialID uuid.UUID) (_ *types.AdaptedMaterial, err error) {
	dbc := dbctx.Context{Ctx: ctx}
	// Until the result is stored, any error or panic marks the material so it
	// can be regenerated. The move only applies while it is processing.
	stored := false
	defer func() {
		if stored {
			return
		}
		if r := recover(); r != nil {
			s.markError(context.WithoutCancel(ctx), materialID, fmt.Errorf("adaptation panicked: %v", r))
			panic(r)
		}
		if err != nil {
			s.markError(context.WithoutCancel(ctx), materialID, err)
		}
	}()

	m, err := s.loadMaterial(dbc, materialID)
	if err != nil {
		return nil, err
	}
	if pei.MaterialStatus(m.Status) != pei.MaterialProcessing {
		return nil, &pei.PreconditionError{Reason: "material is not awaiting adaptation (status " + m.Status + ")"}
	}

	result, err := s.adapt(ctx, dbc, m)
	if err != nil {
		return nil, err
	}
	resultJSON, err := toJSON(result)
	if err != nil {
		return nil, err
	}

	pdfPath := ""
	if s.pdfDir != "" {
		student, _ := s.repos.Students.GetByID(dbc, m.StudentID)
		name := ""
		if student != nil {
			name = student.Name
		}
		path, rerr := s.storePDF(materialID, name, result)
		if rerr != nil {
			s.log.Warn("Adapted material PDF not stored", "material_id", materialID, "error", &pei.RenderingError{Err: rerr})
		} else {
			pdfPath = path
		}
	}

	now := s.now()
	moved, err := s.repos.Materials.TransitionStatus(dbc, materialID,
		[]string{string(pei.MaterialProcessing)}, string(pei.MaterialCompleted),
		map[string]interface{}{
			"result":       resultJSON,
			"pdf_path":     pdfPath,
			"error":        "",
			"processed_at": now,
		})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, &pei.PreconditionError{Reason: "material changed during adaptation", Err: pei.ErrInvalidTransition}
	}
	stored = true
	s.log.Info("Material adapted",
		"material_id", materialID,
		"compatibility_score", result.CompatibilityScore,
		"blocks", len(result.AdaptedContent.Blocks),
	)
	return s.repos.Materials.GetByID(dbc, materialID)
}

func (s *materialService) adapt(ctx context.Context, dbc dbctx.Context, m *types.AdaptedMaterial) (*pei.AdaptationResult, error) {
	plan, err := s.approvedPlan(dbc, m.StudentID)
	if err != nil {
		return nil, err
	}
	doc, err := planDocument(plan)
	if err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	if doc == nil {
		return nil, &pei.PreconditionError{Reason: "approved plan has no document"}
	}
	meta := pei.MaterialMetadata{Title: m.Title, Subject: m.Subject, Grade: m.Grade}
	return s.orch.AdaptMaterial(llm.WithKind(ctx, "adaptation"), m.OriginalContent, meta, doc)
}

func (s *materialService) markError(ctx context.Context, materialID uuid.UUID, cause error) {
	msg := "adaptation failed"
	if cause != nil {
		msg = cause.Error()
	}
	moved, err := s.repos.Materials.TransitionStatus(dbctx.Context{Ctx: ctx}, materialID,
		[]string{string(pei.MaterialProcessing)}, string(pei.MaterialError),
		map[string]interface{}{"error": msg, "processed_at": s.now()})
	if err != nil {
		s.log.Error("Recording adaptation failure failed", "material_id", materialID, "error", err)
		return
	}
	if !moved {
		return
	}
	s.log.Warn("Material adaptation failed", "material_id", materialID, "error", msg)
}

func (s *materialService) storePDF(materialID uuid.UUID, studentName string, res *pei.AdaptationResult) (string, error) {
	if err := os.MkdirAll(s.pdfDir, 0o755); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := pdfrender.RenderAdaptation(&buf, studentName, res); err != nil {
		return "", err
	}
	path := filepath.Join(s.pdfDir, materialID.String()+".pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *materialService) Get(ctx context.Context, materialID uuid.UUID) (*types.AdaptedMaterial, error) {
	m, err := s.loadMaterial(dbctx.Context{Ctx: ctx}, materialID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return m, nil
}

func (s *materialService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]*types.AdaptedMaterial, error) {
	dbc := dbctx.Context{Ctx: ctx}
	st, err := s.repos.Students.GetByID(dbc, studentID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if st == nil {
		return nil, toAPIError(ErrStudentNotFound)
	}
	out, err := s.repos.Materials.ListByStudent(dbc, studentID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return out, nil
}

// DownloadPDF serves the stored rendering when present and renders on demand otherwise.
func (s *materialService) DownloadPDF(ctx context.Context, materialID uuid.UUID) (string, []byte, error) {
	dbc := dbctx.Context{Ctx: ctx}
	m, err := s.loadMaterial(dbc, materialID)
	if err != nil {
		return "", nil, toAPIError(err)
	}
	if pei.MaterialStatus(m.Status) != pei.MaterialCompleted {
		return "", nil, toAPIError(&pei.PreconditionError{Reason: "material adaptation is not completed (status " + m.Status + ")"})
	}
	filename := "Material_Adaptado_" + fileSafe(m.Title) + ".pdf"
	if m.PDFPath != "" {
		if b, err := os.ReadFile(m.PDFPath); err == nil {
			return filename, b, nil
		}
		s.log.Warn("Stored PDF unreadable, rendering on demand", "material_id", materialID, "path", m.PDFPath)
	}
	res, err := adaptationResult(m)
	if err == nil && res == nil {
		err = errors.New("no stored adaptation result")
	}
	if err != nil {
		return "", nil, toAPIError(&pei.RenderingError{Err: err})
	}
	student, _ := s.repos.Students.GetByID(dbc, m.StudentID)
	name := ""
	if student != nil {
		name = student.Name
	}
	var buf bytes.Buffer
	if err := pdfrender.RenderAdaptation(&buf, name, res); err != nil {
		return "", nil, toAPIError(&pei.RenderingError{Err: err})
	}
	return filename, buf.Bytes(), nil
}

func (s *materialService) approvedPlan(dbc dbctx.Context, studentID uuid.UUID) (*types.PEI, error) {
	plan, err := s.repos.PEIs.GetByStudentID(dbc, studentID)
	if err != nil {
		return nil, err
	}
	if plan == nil || pei.PlanStatus(plan.Status) != pei.PlanApproved {
		return nil, &pei.PreconditionError{Reason: "material adaptation requires an approved plan", Err: ErrNoApprovedPlan}
	}
	return plan, nil
}

func (s *materialService) loadMaterial(dbc dbctx.Context, id uuid.UUID) (*types.AdaptedMaterial, error) {
	m, err := s.repos.Materials.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMaterialNotFound
	}
	return m, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
