package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos"
	"github.com/yungbote/peai-backend/internal/jobs/pipeline/material_adapt"
	"github.com/yungbote/peai-backend/internal/jobs/pipeline/pei_generate"
	jobrt "github.com/yungbote/peai-backend/internal/jobs/runtime"
	"github.com/yungbote/peai-backend/internal/jobs/worker"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/services"
)

type Services struct {
	Jobs          services.JobService
	Notifications services.NotificationService
	Students      services.StudentService
	PEIs          services.PEIService
	Materials     services.MaterialService

	Orchestrator *pei.Orchestrator
	JobWorker    *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r repos.Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	var out Services

	opts := []pei.Option{}
	if clients.Limiter != nil {
		opts = append(opts, pei.WithTextLimiter(clients.Limiter))
	}
	out.Orchestrator = pei.NewOrchestrator(clients.Generator, opts...)

	out.Jobs = services.NewJobService(db, log, r.JobRuns)
	out.Notifications = services.NewNotificationService(
		log,
		services.NewLogSink(log),
		services.Links{BaseURL: cfg.PublicBaseURL},
		metrics,
	)
	out.Students = services.NewStudentService(db, log, r)
	out.PEIs = services.NewPEIService(
		db,
		log,
		r,
		out.Jobs,
		out.Notifications,
		clients.Locker,
		out.Orchestrator,
		metrics,
		services.PEIConfig{ValidityMonths: cfg.ValidityMonths},
	)
	out.Materials = services.NewMaterialService(
		db,
		log,
		r,
		out.Jobs,
		out.Orchestrator,
		services.MaterialConfig{PDFDir: cfg.AdaptedPDFDir},
	)

	reg := jobrt.NewRegistry()
	if err := reg.Register(pei_generate.New(log, out.PEIs)); err != nil {
		return out, fmt.Errorf("register pei_generate: %w", err)
	}
	if err := reg.Register(material_adapt.New(log, out.Materials)); err != nil {
		return out, fmt.Errorf("register material_adapt: %w", err)
	}
	out.JobWorker = worker.NewWorker(db, log, r.JobRuns, reg, metrics, worker.ConfigFromEnv())
	return out, nil
}
