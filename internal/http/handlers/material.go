package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/peai-backend/internal/http/response"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/services"
)

// maxUploadBytes bounds the multipart body; the service enforces the file limit.
const maxUploadBytes = 21 << 20

type MaterialHandler struct {
	log       *logger.Logger
	materials services.MaterialService
}

func NewMaterialHandler(log *logger.Logger, materials services.MaterialService) *MaterialHandler {
	return &MaterialHandler{
		log:       log.With("handler", "MaterialHandler"),
		materials: materials,
	}
}

// POST /api/students/:id/materials/upload (multipart: file, title, subject, grade)
func (h *MaterialHandler) Upload(c *gin.Context) {
	studentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	m, job, err := h.materials.Upload(c.Request.Context(), services.UploadInput{
		StudentID: studentID,
		Filename:  fh.Filename,
		MimeType:  fh.Header.Get("Content-Type"),
		Data:      data,
		Title:     strings.TrimSpace(c.PostForm("title")),
		Subject:   strings.TrimSpace(c.PostForm("subject")),
		Grade:     strings.TrimSpace(c.PostForm("grade")),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Debug("Material upload accepted", "material_id", m.ID, "bytes", len(data))
	response.RespondAccepted(c, gin.H{
		"material_id": m.ID,
		"status":      m.Status,
		"job_id":      job.ID,
		"material":    m,
	})
}

// GET /api/students/:id/materials
func (h *MaterialHandler) ListForStudent(c *gin.Context) {
	studentID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.materials.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.materials.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, m)
}

// POST /api/materials/:id/regenerate
func (h *MaterialHandler) Regenerate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, job, err := h.materials.Regenerate(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"material_id": m.ID,
		"status":      m.Status,
		"job_id":      job.ID,
	})
}

// GET /api/materials/:id/download-pdf
func (h *MaterialHandler) DownloadPDF(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	name, body, err := h.materials.DownloadPDF(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondPDF(c, name, body)
}
