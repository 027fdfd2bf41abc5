package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/peai-backend/internal/http/handlers"
	httpMW "github.com/yungbote/peai-backend/internal/http/middleware"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	StudentHandler  *httpH.StudentHandler
	PEIHandler      *httpH.PEIHandler
	MaterialHandler *httpH.MaterialHandler
	JobHandler      *httpH.JobHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/api/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Students
		if cfg.StudentHandler != nil {
			api.GET("/students", cfg.StudentHandler.List)
			api.POST("/students", cfg.StudentHandler.Create)
			api.GET("/students/:id", cfg.StudentHandler.Get)
			api.PUT("/students/:id", cfg.StudentHandler.Update)
			api.DELETE("/students/:id", cfg.StudentHandler.Delete)
			api.GET("/students/:id/respondents", cfg.StudentHandler.ListRespondents)
		}

		// PEI
		if cfg.PEIHandler != nil {
			api.GET("/peis", cfg.PEIHandler.List)
			api.POST("/pei", cfg.PEIHandler.Create)
			api.GET("/pei/:id", cfg.PEIHandler.Get)
			api.GET("/pei/:id/status", cfg.PEIHandler.Status)
			api.GET("/pei/:id/validity", cfg.PEIHandler.Validity)
			api.POST("/pei/:id/responses", cfg.PEIHandler.SubmitResponse)
			api.GET("/pei/:id/responses", cfg.PEIHandler.ListResponses)
			api.POST("/pei/:id/remind", cfg.PEIHandler.Remind)
			api.POST("/pei/:id/invites", cfg.PEIHandler.SendInvites)
			api.POST("/pei/:id/process-ai", cfg.PEIHandler.ProcessAI)
			api.POST("/pei/:id/approve", cfg.PEIHandler.Approve)
			api.GET("/pei/:id/download-pdf", cfg.PEIHandler.DownloadPDF)
			api.GET("/students/:id/pei", cfg.PEIHandler.GetForStudent)
		}

		// Materials
		if cfg.MaterialHandler != nil {
			api.POST("/students/:id/materials/upload", cfg.MaterialHandler.Upload)
			api.GET("/students/:id/materials", cfg.MaterialHandler.ListForStudent)
			api.GET("/materials/:id", cfg.MaterialHandler.Get)
			api.POST("/materials/:id/regenerate", cfg.MaterialHandler.Regenerate)
			api.GET("/materials/:id/download-pdf", cfg.MaterialHandler.DownloadPDF)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
