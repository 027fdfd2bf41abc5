package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/peai-backend/internal/data/repos"
	"github.com/yungbote/peai-backend/internal/http/response"
	"github.com/yungbote/peai-backend/internal/services"
)

type PEIHandler struct {
	peis services.PEIService
}

func NewPEIHandler(peis services.PEIService) *PEIHandler {
	return &PEIHandler{peis: peis}
}

type submitResponseBody struct {
	ProfessionalID string         `json:"professional_id" binding:"required"`
	Responses      map[string]any `json:"responses"`
}

// GET /api/peis?status=&student_id=&limit=&skip=
func (h *PEIHandler) List(c *gin.Context) {
	filter := repos.PEIFilter{
		Limit:  queryInt(c, "limit", 100),
		Offset: queryInt(c, "skip", 0),
	}
	for _, s := range c.QueryArray("status") {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Statuses = append(filter.Statuses, part)
			}
		}
	}
	if raw := strings.TrimSpace(c.Query("student_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_student_id", err)
			return
		}
		filter.StudentID = id
	}
	out, err := h.peis.List(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/pei
func (h *PEIHandler) Create(c *gin.Context) {
	var in services.CreatePEIInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	out, err := h.peis.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/pei/:id
func (h *PEIHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.peis.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, plan)
}

// GET /api/students/:id/pei
func (h *PEIHandler) GetForStudent(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.peis.GetForStudent(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, plan)
}

// GET /api/pei/:id/status
func (h *PEIHandler) Status(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.peis.CheckStatus(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/pei/:id/validity
func (h *PEIHandler) Validity(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	info, err := h.peis.Validity(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, info)
}

// POST /api/pei/:id/responses
//
// Answers 202 with the job id when the response completed the set and
// generation was queued, 201 otherwise.
func (h *PEIHandler) SubmitResponse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body submitResponseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	profID, err := uuid.Parse(strings.TrimSpace(body.ProfessionalID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_professional_id", err)
		return
	}
	out, err := h.peis.SubmitResponse(c.Request.Context(), id, profID, body.Responses)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if out.Triggered && out.Job != nil {
		response.RespondAccepted(c, gin.H{
			"response":             out.Response,
			"completion_status":    out.Completion,
			"generation_triggered": true,
			"job_id":               out.Job.ID,
		})
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/pei/:id/responses
func (h *PEIHandler) ListResponses(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.peis.ListResponses(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/pei/:id/remind
func (h *PEIHandler) Remind(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	sent, err := h.peis.Remind(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"pei_id":                  id,
		"notifications_generated": len(sent),
		"notifications":           sent,
	})
}

// POST /api/pei/:id/invites
func (h *PEIHandler) SendInvites(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	sent, err := h.peis.SendInvites(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"pei_id":                  id,
		"notifications_generated": len(sent),
		"notifications":           sent,
	})
}

// POST /api/pei/:id/process-ai
func (h *PEIHandler) ProcessAI(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	job, err := h.peis.TriggerGeneration(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"pei_id": id, "job_id": job.ID, "job": job})
}

// POST /api/pei/:id/approve
func (h *PEIHandler) Approve(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.peis.Approve(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/pei/:id/download-pdf
func (h *PEIHandler) DownloadPDF(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	name, body, err := h.peis.RenderPDF(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondPDF(c, name, body)
}
