package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yungbote/peai-backend/internal/data/repos"
	"github.com/yungbote/peai-backend/internal/data/repos/testutil"
	apphttp "github.com/yungbote/peai-backend/internal/http"
	httpH "github.com/yungbote/peai-backend/internal/http/handlers"
	"github.com/yungbote/peai-backend/internal/jobs/pipeline/material_adapt"
	"github.com/yungbote/peai-backend/internal/jobs/pipeline/pei_generate"
	jobrt "github.com/yungbote/peai-backend/internal/jobs/runtime"
	"github.com/yungbote/peai-backend/internal/jobs/worker"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/lock"
	"github.com/yungbote/peai-backend/internal/services"
)

const planJSON = `{
  "student_identification": {"name": "Caio Reis", "birth_date": "10/05/2012", "age": 12, "grade": "7º Ano", "special_needs": ["TEA Nível 1"]},
  "detailed_report": {"cognitive_development": "a", "attention_concentration": "b", "socioemotional": "c", "communication": "d", "sources": {}},
  "strengths": ["lógica"],
  "difficulties": ["interação em grupo"],
  "educational_goals": {"short_term": ["x"], "medium_term": ["y"], "long_term": ["z"]},
  "methodological_strategies": {"content_presentation": ["visual"], "activities": ["roteiro"], "environment": ["silêncio"]},
  "assistive_resources": {"required": ["agenda visual"], "recommended": []},
  "evaluation_criteria": {"adaptations": ["tempo extra"], "diversified_instruments": {"adapted_tests": 100}, "evaluation_focus": "processo"},
  "confidence_score": 78,
  "warnings": []
}`

const adaptJSON = `{
  "original_analysis": {"content_type": "teórico", "complexity_level": "baixo", "main_concepts": ["ciclo da água"], "learning_objectives": ["descrever o ciclo"], "estimated_time": 40},
  "adaptations_applied": ["diagrama"],
  "adapted_content_structure": {"title": "O ciclo da água", "introduction": {"hook": "Chuva", "objective": "Entender o ciclo"}, "blocks": [{"block_number": 1, "duration_minutes": 15, "title": "Evaporação", "content_type": "visual", "content": "O sol aquece a água.", "visual_aids": [], "activity": "", "pause": "não"}], "practice_activities": [], "summary": "Água circula.", "evaluation_suggestion": "Desenho"},
  "pei_compatibility_score": 88,
  "compatibility_analysis": {"strengths_addressed": [], "needs_met": [], "strategies_applied": []}
}`

type app struct {
	router *gin.Engine
	worker *worker.Worker
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testutil.Logger(t)
	db := testutil.DB(t)
	r := repos.New(db, log)

	gen := pei.GeneratorFunc(func(ctx context.Context, prompt, system string) (string, error) {
		if strings.Contains(system, "adaptação de materiais") {
			return adaptJSON, nil
		}
		return planJSON, nil
	})
	orch := pei.NewOrchestrator(gen)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	jobs := services.NewJobService(db, log, r.JobRuns)
	notify := services.NewNotificationService(log, &services.MemorySink{}, services.Links{BaseURL: "https://peai.test"}, metrics)
	students := services.NewStudentService(db, log, r)
	peis := services.NewPEIService(db, log, r, jobs, notify, lock.NewLocal(), orch, metrics, services.PEIConfig{})
	materials := services.NewMaterialService(db, log, r, jobs, orch, services.MaterialConfig{})

	reg := jobrt.NewRegistry()
	if err := reg.Register(pei_generate.New(log, peis)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(material_adapt.New(log, materials)); err != nil {
		t.Fatalf("register: %v", err)
	}

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		StudentHandler:  httpH.NewStudentHandler(students),
		PEIHandler:      httpH.NewPEIHandler(peis),
		MaterialHandler: httpH.NewMaterialHandler(log, materials),
		JobHandler:      httpH.NewJobHandler(jobs),
		HealthHandler:   httpH.NewHealthHandler(db),
	})
	return &app{
		router: router,
		worker: worker.NewWorker(db, log, r.JobRuns, reg, metrics, worker.Config{}),
	}
}

func (a *app) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *app) drain(t *testing.T) {
	t.Helper()
	for {
		ran, err := a.worker.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if !ran {
			return
		}
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: got=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
}

func wantCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, rec, status)
	env := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, rec)
	if env.Error.Code != code {
		t.Fatalf("error code: got=%q want=%q", env.Error.Code, code)
	}
}

type createdPlan struct {
	PEI struct {
		ID uuid.UUID `json:"id"`
	} `json:"pei"`
	Student struct {
		ID uuid.UUID `json:"id"`
	} `json:"student"`
	Respondents []struct {
		ID uuid.UUID `json:"id"`
	} `json:"respondents"`
}

func TestPlanWorkflowOverHTTP(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/api/pei", map[string]any{
		"student_name":  "Caio Reis",
		"grade":         "7º Ano",
		"special_needs": []string{"TEA Nível 1"},
		"professionals": []map[string]string{
			{"type": "psicologo", "name": "Dra. Marta", "phone": "+55 11 90000-0001"},
			{"type": "professor", "name": "Prof. Luís", "email": "luis@escola.example"},
		},
	})
	wantStatus(t, rec, http.StatusCreated)
	created := decode[createdPlan](t, rec)
	planPath := "/api/pei/" + created.PEI.ID.String()

	rec = a.do(t, http.MethodPost, planPath+"/responses", map[string]any{
		"professional_id": created.Respondents[0].ID,
		"responses":       map[string]any{"q1": "Atenção dispersa em sala"},
	})
	wantStatus(t, rec, http.StatusCreated)

	rec = a.do(t, http.MethodPost, planPath+"/responses", map[string]any{
		"professional_id": created.Respondents[0].ID,
		"responses":       map[string]any{"q1": "de novo"},
	})
	wantCode(t, rec, http.StatusConflict, "duplicate_response")

	rec = a.do(t, http.MethodPost, planPath+"/remind", nil)
	wantStatus(t, rec, http.StatusOK)
	if n := decode[map[string]any](t, rec)["notifications_generated"]; n != float64(1) {
		t.Fatalf("reminders: got=%v want=1", n)
	}

	rec = a.do(t, http.MethodPost, planPath+"/invites", nil)
	wantStatus(t, rec, http.StatusOK)
	invites := decode[struct {
		Generated     int `json:"notifications_generated"`
		Notifications []struct {
			Kind      string `json:"kind"`
			Recipient string `json:"recipient"`
		} `json:"notifications"`
	}](t, rec)
	if invites.Generated != 1 || invites.Notifications[0].Recipient != "Prof. Luís" {
		t.Fatalf("invites: got=%+v", invites)
	}

	rec = a.do(t, http.MethodPost, planPath+"/responses", map[string]any{
		"professional_id": created.Respondents[1].ID,
		"responses":       map[string]any{"q1": "Bom raciocínio lógico"},
	})
	wantStatus(t, rec, http.StatusAccepted)
	jobID := decode[map[string]any](t, rec)["job_id"].(string)

	rec = a.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	wantStatus(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodPost, planPath+"/process-ai", nil)
	wantCode(t, rec, http.StatusUnprocessableEntity, "precondition_failed")

	rec = a.do(t, http.MethodPost, planPath+"/invites", nil)
	wantCode(t, rec, http.StatusUnprocessableEntity, "precondition_failed")

	a.drain(t)

	rec = a.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	job := decode[struct {
		Job struct {
			Status string `json:"status"`
		} `json:"job"`
	}](t, rec)
	if job.Job.Status != "succeeded" {
		t.Fatalf("job status: got=%s", job.Job.Status)
	}

	rec = a.do(t, http.MethodGet, planPath+"/status", nil)
	wantStatus(t, rec, http.StatusOK)
	status := decode[map[string]any](t, rec)
	if status["status"] != string(pei.PlanCompleted) || status["ai_processing_status"] != string(pei.AICompleted) {
		t.Fatalf("status view: got=%v", status)
	}

	rec = a.do(t, http.MethodGet, planPath+"/validity", nil)
	wantCode(t, rec, http.StatusUnprocessableEntity, "precondition_failed")

	rec = a.do(t, http.MethodPost, planPath+"/approve", nil)
	wantStatus(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodGet, planPath+"/validity", nil)
	wantStatus(t, rec, http.StatusOK)
	if v := decode[map[string]any](t, rec)["status"]; v != string(pei.ValidityValid) {
		t.Fatalf("validity: got=%v", v)
	}

	rec = a.do(t, http.MethodGet, planPath+"/download-pdf", nil)
	wantStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: got=%q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "PEI_Caio_Reis.pdf") {
		t.Fatalf("content disposition: got=%q", cd)
	}

	rec = a.do(t, http.MethodGet, "/api/students/"+created.Student.ID.String()+"/pei", nil)
	wantStatus(t, rec, http.StatusOK)
	rec = a.do(t, http.MethodGet, planPath+"/responses", nil)
	wantStatus(t, rec, http.StatusOK)
	if n := len(decode[[]any](t, rec)); n != 2 {
		t.Fatalf("responses: got=%d want=2", n)
	}
	rec = a.do(t, http.MethodGet, "/api/peis?status=concluido", nil)
	wantStatus(t, rec, http.StatusOK)
	if n := len(decode[[]any](t, rec)); n != 1 {
		t.Fatalf("approved plans: got=%d want=1", n)
	}

	// Materials
	studentPath := "/api/students/" + created.Student.ID.String()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "ciclo.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("O ciclo da água\n\nA água evapora, condensa e precipita."))
	_ = mw.WriteField("title", "Ciclo da Água")
	_ = mw.WriteField("subject", "ciências")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, studentPath+"/materials/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	wantStatus(t, rec, http.StatusAccepted)
	materialID := decode[map[string]any](t, rec)["material_id"].(string)

	rec = a.do(t, http.MethodGet, "/api/materials/"+materialID+"/download-pdf", nil)
	wantCode(t, rec, http.StatusUnprocessableEntity, "precondition_failed")

	a.drain(t)

	rec = a.do(t, http.MethodGet, "/api/materials/"+materialID, nil)
	wantStatus(t, rec, http.StatusOK)
	if s := decode[map[string]any](t, rec)["status"]; s != string(pei.MaterialCompleted) {
		t.Fatalf("material status: got=%v", s)
	}
	rec = a.do(t, http.MethodGet, "/api/materials/"+materialID+"/download-pdf", nil)
	wantStatus(t, rec, http.StatusOK)
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("material download is not a PDF")
	}
	rec = a.do(t, http.MethodGet, studentPath+"/materials", nil)
	wantStatus(t, rec, http.StatusOK)
	if n := len(decode[[]any](t, rec)); n != 1 {
		t.Fatalf("materials: got=%d want=1", n)
	}
	rec = a.do(t, http.MethodPost, "/api/materials/"+materialID+"/regenerate", nil)
	wantStatus(t, rec, http.StatusAccepted)
}

func TestStudentsOverHTTP(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/api/students", map[string]any{"name": "Lia Prado", "grade": "3º ano"})
	wantStatus(t, rec, http.StatusCreated)
	id := decode[map[string]any](t, rec)["id"].(string)

	rec = a.do(t, http.MethodPut, "/api/students/"+id, map[string]any{"school": "EM Sol"})
	wantStatus(t, rec, http.StatusOK)
	if s := decode[map[string]any](t, rec)["school"]; s != "EM Sol" {
		t.Fatalf("school: got=%v", s)
	}

	rec = a.do(t, http.MethodGet, "/api/students", nil)
	wantStatus(t, rec, http.StatusOK)
	rec = a.do(t, http.MethodGet, "/api/students/"+id+"/respondents", nil)
	wantStatus(t, rec, http.StatusOK)

	rec = a.do(t, http.MethodDelete, "/api/students/"+id, nil)
	wantStatus(t, rec, http.StatusNoContent)
	rec = a.do(t, http.MethodGet, "/api/students/"+id, nil)
	wantCode(t, rec, http.StatusNotFound, "student_not_found")

	rec = a.do(t, http.MethodGet, "/api/students/not-a-uuid", nil)
	wantCode(t, rec, http.StatusBadRequest, "invalid_id")

	rec = a.do(t, http.MethodPost, "/api/students/"+uuid.NewString()+"/materials/upload", nil)
	wantCode(t, rec, http.StatusBadRequest, "missing_file")
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodGet, "/healthcheck", nil)
	wantStatus(t, rec, http.StatusOK)
	if s := decode[map[string]any](t, rec)["status"]; s != "healthy" {
		t.Fatalf("health: got=%v", s)
	}

	_ = a.do(t, http.MethodGet, "/api/pei/"+uuid.NewString(), nil)
	rec = a.do(t, http.MethodGet, "/metrics", nil)
	wantStatus(t, rec, http.StatusOK)
	for _, name := range []string{"go_goroutines", "peai_api_requests_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
