package app

import (
	"gorm.io/gorm"

	apphttp "github.com/yungbote/peai-backend/internal/http"
	httpH "github.com/yungbote/peai-backend/internal/http/handlers"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

func wireRouterConfig(db *gorm.DB, log *logger.Logger, cfg Config, svc Services, metrics *observability.Metrics) apphttp.RouterConfig {
	log.Info("Wiring handlers...")
	rc := apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		StudentHandler:  httpH.NewStudentHandler(svc.Students),
		PEIHandler:      httpH.NewPEIHandler(svc.PEIs),
		MaterialHandler: httpH.NewMaterialHandler(log, svc.Materials),
		JobHandler:      httpH.NewJobHandler(svc.Jobs),
		HealthHandler:   httpH.NewHealthHandler(db),
	}
	if cfg.OtelEnabled {
		rc.ServiceName = cfg.ServiceName
	}
	return rc
}
