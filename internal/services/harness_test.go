package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos"
	"github.com/yungbote/peai-backend/internal/data/repos/testutil"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/apierr"
	"github.com/yungbote/peai-backend/internal/platform/lock"
)

const planReply = `{
  "student_identification": {"name": "Ana Souza", "birth_date": "01/02/2011", "age": 14, "grade": "9º Ano", "special_needs": ["TDAH"]},
  "detailed_report": {
    "cognitive_development": "Raciocínio lógico preservado.",
    "attention_concentration": "Perde o foco após 15 minutos.",
    "socioemotional": "Boa relação com colegas.",
    "communication": "Comunicação oral clara.",
    "sources": {"cognitive_development": ["Profissional A (psicologo)"]}
  },
  "strengths": ["memória visual"],
  "difficulties": ["atenção sustentada"],
  "educational_goals": {"short_term": ["concluir tarefas curtas"], "medium_term": ["organizar a rotina"], "long_term": ["autonomia nos estudos"]},
  "methodological_strategies": {"content_presentation": ["recursos visuais"], "activities": ["blocos curtos"], "environment": ["sentar à frente"]},
  "assistive_resources": {"required": ["cronômetro visual"], "recommended": ["fones abafadores"]},
  "evaluation_criteria": {"adaptations": ["tempo estendido"], "diversified_instruments": {"practical_projects": 30, "visual_presentations": 20, "classroom_activities": 30, "adapted_tests": 20}, "evaluation_focus": "processo"},
  "confidence_score": 87,
  "warnings": [],
  "suggestions": ["reavaliar em 3 meses"]
}`

const adaptationReply = `{
  "original_analysis": {"content_type": "teórico", "complexity_level": "médio", "main_concepts": ["frações"], "learning_objectives": ["somar frações"], "estimated_time": 50},
  "adaptations_applied": ["blocos curtos", "exemplos concretos"],
  "adapted_content_structure": {
    "title": "Frações no dia a dia",
    "introduction": {"hook": "Dividindo uma pizza", "objective": "Somar frações simples"},
    "blocks": [
      {"block_number": 1, "duration_minutes": 15, "title": "O que é fração", "content_type": "visual", "content": "Uma pizza dividida em partes.", "visual_aids": ["pizza"], "activity": "Recortar papel", "pause": "sim"}
    ],
    "practice_activities": [],
    "summary": "Fração é parte de um todo.",
    "evaluation_suggestion": "Atividade prática"
  },
  "pei_compatibility_score": 92,
  "compatibility_analysis": {"strengths_addressed": ["memória visual"], "needs_met": ["atenção"], "strategies_applied": ["blocos curtos"]},
  "teacher_notes": [],
  "warnings": []
}`

// stubBackend answers plan and adaptation prompts with fixed documents and
// counts calls per kind.
type stubBackend struct {
	planCalls  atomic.Int32
	adaptCalls atomic.Int32
	planErr    error
	planPanic  bool
	adaptPanic bool
}

func (b *stubBackend) generate(_ context.Context, prompt, system string) (string, error) {
	if strings.Contains(system, "adaptação de materiais") {
		b.adaptCalls.Add(1)
		if b.adaptPanic {
			panic("adaptation backend crashed")
		}
		return adaptationReply, nil
	}
	b.planCalls.Add(1)
	if b.planPanic {
		panic("plan backend crashed")
	}
	if b.planErr != nil {
		return "", b.planErr
	}
	return planReply, nil
}

// recovered runs fn and returns whatever it panicked with.
func recovered(fn func()) (r any) {
	defer func() { r = recover() }()
	fn()
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	db       *gorm.DB
	repos    repos.Repos
	backend  *stubBackend
	sink     *MemorySink
	clock    *clock
	jobs     JobService
	notify   NotificationService
	students StudentService
	peis     PEIService
	material MaterialService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testutil.Logger(t)
	gdb := testutil.DB(t)
	r := repos.New(gdb, log)

	h := &harness{
		db:      gdb,
		repos:   r,
		backend: &stubBackend{},
		sink:    &MemorySink{},
		clock:   &clock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	orch := pei.NewOrchestrator(pei.GeneratorFunc(h.backend.generate), pei.WithClock(h.clock.Now))
	h.jobs = NewJobService(gdb, log, r.JobRuns)
	h.notify = NewNotificationService(log, h.sink, Links{BaseURL: "https://peai.test"}, nil)
	h.students = NewStudentService(gdb, log, r)
	h.peis = NewPEIService(gdb, log, r, h.jobs, h.notify, lock.NewLocal(), orch, nil, PEIConfig{Now: h.clock.Now})
	h.material = NewMaterialService(gdb, log, r, h.jobs, orch, MaterialConfig{PDFDir: t.TempDir(), Now: h.clock.Now})
	return h
}

// createPlan registers a student with n professionals and returns the new plan.
func (h *harness) createPlan(t *testing.T, n int) *CreatePEIResult {
	t.Helper()
	in := CreatePEIInput{
		StudentName:  "Ana Souza",
		BirthDate:    "2011-02-01",
		Grade:        "9º Ano",
		SpecialNeeds: []string{"TDAH", " "},
	}
	roles := []string{"psicologo", "professor", "mae", "terapeuta"}
	for i := 0; i < n; i++ {
		in.Professionals = append(in.Professionals, ProfessionalInput{
			Type:  roles[i%len(roles)],
			Name:  "Profissional " + string(rune('A'+i)),
			Phone: "+55 11 91234-567" + string(rune('0'+i)),
		})
	}
	res, err := h.peis.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res
}

func answersFor(i int) map[string]any {
	return map[string]any{
		"q1": "Demonstra interesse por atividades visuais e organizadas",
		"q2": []any{"leitura", "matemática"},
		"q3": i,
	}
}

// completePlan submits every response and returns the last result.
func (h *harness) completePlan(t *testing.T, res *CreatePEIResult) *SubmitResult {
	t.Helper()
	var last *SubmitResult
	for i, r := range res.Respondents {
		out, err := h.peis.SubmitResponse(context.Background(), res.PEI.ID, r.ID, answersFor(i))
		if err != nil {
			t.Fatalf("SubmitResponse(%d): %v", i, err)
		}
		last = out
	}
	return last
}

// approvedPlan drives a plan all the way to approval.
func (h *harness) approvedPlan(t *testing.T, n int) *CreatePEIResult {
	t.Helper()
	res := h.createPlan(t, n)
	h.completePlan(t, res)
	if _, err := h.peis.RunGeneration(context.Background(), res.PEI.ID, n); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	h.settleJobs(t)
	if _, err := h.peis.Approve(context.Background(), res.PEI.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return res
}

// settleJobs marks every open job succeeded, standing in for the worker when a
// test drives RunGeneration or RunAdaptation directly.
func (h *harness) settleJobs(t *testing.T) {
	t.Helper()
	err := h.db.Model(&types.JobRun{}).
		Where("status IN ?", []string{types.JobStatusQueued, types.JobStatusRunning}).
		Update("status", types.JobStatusSucceeded).Error
	if err != nil {
		t.Fatalf("settle jobs: %v", err)
	}
}

func wantAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected api error %d/%s, got nil", status, code)
	}
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T: %v", err, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("api error: got=%d/%s want=%d/%s (%v)", ae.Status, ae.Code, status, code, err)
	}
}

func kinds(ns []Notification) map[pei.MessageKind]int {
	out := map[pei.MessageKind]int{}
	for _, n := range ns {
		out[n.Kind]++
	}
	return out
}

func mustPayload(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return m
}
