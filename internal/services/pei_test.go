package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/peai-backend/internal/data/repos"
	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
)

func TestPEICreate(t *testing.T) {
	h := newHarness(t)
	res := h.createPlan(t, 3)

	if res.PEI.Status != string(pei.PlanInCollection) || res.PEI.AIState != string(pei.AIPending) {
		t.Fatalf("new plan state: got=%s/%s", res.PEI.Status, res.PEI.AIState)
	}
	if res.PEI.TotalProfessionals != 3 || len(res.Respondents) != 3 || len(res.PEI.Professionals) != 3 {
		t.Fatalf("roster: total=%d respondents=%d professionals=%d", res.PEI.TotalProfessionals, len(res.Respondents), len(res.PEI.Professionals))
	}
	if got := []string(res.PEI.SpecialNeeds); len(got) != 1 || got[0] != "TDAH" {
		t.Fatalf("special needs: got=%v", got)
	}
	for _, r := range res.Respondents {
		want := "https://peai.test/form/" + res.PEI.ID.String() + "/" + r.ID.String()
		if res.SurveyLinks[r.ID.String()] != want {
			t.Fatalf("survey link: got=%q want=%q", res.SurveyLinks[r.ID.String()], want)
		}
	}
	sent := h.sink.All()
	if kinds(sent)[pei.MessageSurveyInvite] != 3 {
		t.Fatalf("invites: got=%v", kinds(sent))
	}
	if !strings.Contains(sent[0].Body, "Ana Souza") {
		t.Fatalf("invite body should name the student: %q", sent[0].Body)
	}

	// One live plan per student.
	_, err := h.peis.Create(context.Background(), CreatePEIInput{
		StudentID:     &res.Student.ID,
		Professionals: []ProfessionalInput{{Type: "professor", Name: "Outro"}},
	})
	wantAPIError(t, err, http.StatusConflict, "pei_already_exists")
}

func TestPEICreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.peis.Create(ctx, CreatePEIInput{Professionals: []ProfessionalInput{{Type: "professor", Name: "A"}}})
	wantAPIError(t, err, http.StatusBadRequest, "validation_failed")

	_, err = h.peis.Create(ctx, CreatePEIInput{StudentName: "Ana"})
	wantAPIError(t, err, http.StatusBadRequest, "validation_failed")

	_, err = h.peis.Create(ctx, CreatePEIInput{StudentName: "Ana", Professionals: []ProfessionalInput{{Name: "A"}}})
	wantAPIError(t, err, http.StatusBadRequest, "validation_failed")

	missing := uuid.New()
	_, err = h.peis.Create(ctx, CreatePEIInput{StudentID: &missing, Professionals: []ProfessionalInput{{Type: "professor", Name: "A"}}})
	wantAPIError(t, err, http.StatusNotFound, "student_not_found")
}

func TestPEISubmitResponse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 2)
	planID := res.PEI.ID

	first, err := h.peis.SubmitResponse(ctx, planID, res.Respondents[0].ID, answersFor(0))
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if first.Triggered || first.Job != nil {
		t.Fatalf("first response must not trigger generation")
	}
	if first.Completion.Completed != 1 || first.Completion.Total != 2 || first.Completion.Percentage != 50 {
		t.Fatalf("completion: got=%+v", first.Completion)
	}
	if first.Response.ProfessionalType != "psicologo" || first.Response.ProfessionalName != "Profissional A" {
		t.Fatalf("response roster data: got=%s/%s", first.Response.ProfessionalType, first.Response.ProfessionalName)
	}

	_, err = h.peis.SubmitResponse(ctx, planID, res.Respondents[0].ID, answersFor(0))
	wantAPIError(t, err, http.StatusConflict, "duplicate_response")

	_, err = h.peis.SubmitResponse(ctx, planID, uuid.New(), answersFor(0))
	wantAPIError(t, err, http.StatusNotFound, "participant_not_found")

	_, err = h.peis.SubmitResponse(ctx, uuid.New(), res.Respondents[1].ID, answersFor(1))
	wantAPIError(t, err, http.StatusNotFound, "pei_not_found")

	_, err = h.peis.SubmitResponse(ctx, planID, res.Respondents[1].ID, nil)
	wantAPIError(t, err, http.StatusBadRequest, "validation_failed")

	last, err := h.peis.SubmitResponse(ctx, planID, res.Respondents[1].ID, answersFor(1))
	if err != nil {
		t.Fatalf("SubmitResponse last: %v", err)
	}
	if !last.Triggered || last.Job == nil {
		t.Fatalf("completing response must trigger generation")
	}
	if !last.Completion.IsComplete || last.Completion.Percentage != 100 {
		t.Fatalf("completion: got=%+v", last.Completion)
	}
	if last.Job.JobType != JobTypePEIGenerate || last.Job.Status != types.JobStatusQueued {
		t.Fatalf("job: got=%s/%s", last.Job.JobType, last.Job.Status)
	}
	payload := mustPayload(t, last.Job.Payload)
	if payload["pei_id"] != planID.String() || payload["total"] != float64(2) {
		t.Fatalf("payload: got=%v", payload)
	}

	plan, err := h.peis.Get(ctx, planID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if plan.Status != string(pei.PlanInReview) || plan.AIState != string(pei.AIProcessing) {
		t.Fatalf("plan state: got=%s/%s", plan.Status, plan.AIState)
	}

	// Collection is closed; a repeat is still reported as a duplicate.
	_, err = h.peis.SubmitResponse(ctx, planID, res.Respondents[1].ID, answersFor(1))
	wantAPIError(t, err, http.StatusConflict, "duplicate_response")

	rows, err := h.peis.ListResponses(ctx, planID)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(rows) != 2 || rows[0].ProfessionalID != res.Respondents[0].ID {
		t.Fatalf("responses: got=%d", len(rows))
	}
	roster, err := h.students.ListRespondents(ctx, res.Student.ID)
	if err != nil {
		t.Fatalf("ListRespondents: %v", err)
	}
	for _, r := range roster {
		if r.Status != types.RespondentCompleted {
			t.Fatalf("respondent %s status: got=%s", r.ID, r.Status)
		}
	}
}

func TestPEIConcurrentCompletionEnqueuesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 4)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		triggered int
		errs      []error
	)
	for round := 0; round < 3; round++ {
		for i, r := range res.Respondents {
			wg.Add(1)
			go func(i int, id uuid.UUID) {
				defer wg.Done()
				out, err := h.peis.SubmitResponse(ctx, res.PEI.ID, id, answersFor(i))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if out.Triggered {
					triggered++
				}
			}(i, r.ID)
		}
	}
	wg.Wait()

	if triggered != 1 {
		t.Fatalf("generation triggered: got=%d want=1", triggered)
	}
	if len(errs) != 8 {
		t.Fatalf("rejected submissions: got=%d want=8", len(errs))
	}
	for _, err := range errs {
		wantAPIError(t, err, http.StatusConflict, "duplicate_response")
	}

	n, err := h.repos.Responses.CountByPEI(dbctx.Context{Ctx: ctx}, res.PEI.ID)
	if err != nil {
		t.Fatalf("CountByPEI: %v", err)
	}
	if n != 4 {
		t.Fatalf("stored responses: got=%d want=4", n)
	}
	var jobs int64
	if err := h.db.Model(&types.JobRun{}).Where("entity_id = ?", res.PEI.ID).Count(&jobs).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if jobs != 1 {
		t.Fatalf("jobs: got=%d want=1", jobs)
	}
}

func TestPEITriggerGeneration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 3)
	planID := res.PEI.ID

	_, err := h.peis.TriggerGeneration(ctx, planID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")
	if !errors.Is(err, pei.ErrNoResponses) {
		t.Fatalf("expected ErrNoResponses in chain, got %v", err)
	}

	if _, err := h.peis.SubmitResponse(ctx, planID, res.Respondents[0].ID, answersFor(0)); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		jobs []*types.JobRun
		errs []error
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := h.peis.TriggerGeneration(ctx, planID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			jobs = append(jobs, job)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")
	}
	if len(jobs) != 1 {
		t.Fatalf("manual triggers accepted: got=%d want=1", len(jobs))
	}
	if total := mustPayload(t, jobs[0].Payload)["total"]; total != float64(1) {
		t.Fatalf("manual trigger total: got=%v want=1", total)
	}

	_, err = h.peis.TriggerGeneration(ctx, uuid.New())
	wantAPIError(t, err, http.StatusNotFound, "pei_not_found")
}

func TestPEIRunGeneration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 2)
	h.completePlan(t, res)

	plan, err := h.peis.RunGeneration(ctx, res.PEI.ID, 2)
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if plan.Status != string(pei.PlanCompleted) || plan.AIState != string(pei.AICompleted) {
		t.Fatalf("plan state: got=%s/%s", plan.Status, plan.AIState)
	}
	if plan.ConfidenceScore == nil || *plan.ConfidenceScore != 87 {
		t.Fatalf("confidence score: got=%v", plan.ConfidenceScore)
	}
	if plan.AIProcessedAt == nil || !plan.AIProcessedAt.Equal(h.clock.Now()) {
		t.Fatalf("ai_processed_at: got=%v", plan.AIProcessedAt)
	}
	if plan.GenerationCount != 1 {
		t.Fatalf("generation_count: got=%d want=1", plan.GenerationCount)
	}
	doc, err := planDocument(plan)
	if err != nil || doc == nil {
		t.Fatalf("stored document: %v", err)
	}
	if doc.StudentIdentification.Name != "Ana Souza" || len(doc.Strengths) != 1 {
		t.Fatalf("document: got=%+v", doc.StudentIdentification)
	}
	if h.backend.planCalls.Load() != 1 {
		t.Fatalf("backend calls: got=%d want=1", h.backend.planCalls.Load())
	}
	if kinds(h.sink.All())[pei.MessagePlanReady] != 1 {
		t.Fatalf("plan_ready notifications: got=%v", kinds(h.sink.All()))
	}

	// Completed plans are not regenerated by a stale job.
	_, err = h.peis.RunGeneration(ctx, res.PEI.ID, 2)
	var pe *pei.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("second run: expected PreconditionError, got %v", err)
	}
	if h.backend.planCalls.Load() != 1 {
		t.Fatalf("backend calls after stale run: got=%d want=1", h.backend.planCalls.Load())
	}

	view, err := h.peis.CheckStatus(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if view.Status != string(pei.PlanCompleted) || view.Job == nil || view.Job.JobType != JobTypePEIGenerate {
		t.Fatalf("status view: got=%+v", view)
	}
}

func TestPEIRunGenerationFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 1)
	h.completePlan(t, res)
	h.backend.planErr = errors.New("upstream unavailable")

	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err == nil {
		t.Fatalf("expected generation error")
	}
	plan, err := h.peis.Get(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if plan.Status != string(pei.PlanFailed) || plan.AIState != string(pei.AIFailed) {
		t.Fatalf("plan state: got=%s/%s", plan.Status, plan.AIState)
	}
	if !strings.Contains(plan.AIError, "upstream unavailable") {
		t.Fatalf("ai_error: got=%q", plan.AIError)
	}
	if plan.Document != nil && len(plan.Document) > 0 && string(plan.Document) != "null" {
		t.Fatalf("failed plan must not carry a document: %s", plan.Document)
	}

	// A failed plan can be retried by hand.
	h.settleJobs(t)
	h.backend.planErr = nil
	if _, err := h.peis.TriggerGeneration(ctx, res.PEI.ID); err != nil {
		t.Fatalf("TriggerGeneration after failure: %v", err)
	}
	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err != nil {
		t.Fatalf("RunGeneration retry: %v", err)
	}
}

func TestPEIRunGenerationIncompleteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 3)
	if _, err := h.peis.SubmitResponse(ctx, res.PEI.ID, res.Respondents[0].ID, answersFor(0)); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if _, err := h.peis.TriggerGeneration(ctx, res.PEI.ID); err != nil {
		t.Fatalf("TriggerGeneration: %v", err)
	}

	_, err := h.peis.RunGeneration(ctx, res.PEI.ID, 3)
	if !errors.Is(err, pei.ErrNoResponses) {
		t.Fatalf("expected ErrNoResponses, got %v", err)
	}
	if h.backend.planCalls.Load() != 0 {
		t.Fatalf("backend must not be called for an incomplete set")
	}
	plan, _ := h.peis.Get(ctx, res.PEI.ID)
	if plan.Status != string(pei.PlanFailed) {
		t.Fatalf("plan status: got=%s", plan.Status)
	}
}

func TestPEIRunGenerationPanicFailsPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 1)
	h.completePlan(t, res)
	h.backend.planPanic = true

	r := recovered(func() { _, _ = h.peis.RunGeneration(ctx, res.PEI.ID, 1) })
	if r == nil {
		t.Fatalf("expected the backend panic to propagate to the worker")
	}
	plan, err := h.peis.Get(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if plan.Status != string(pei.PlanFailed) || plan.AIState != string(pei.AIFailed) {
		t.Fatalf("plan state after panic: got=%s/%s", plan.Status, plan.AIState)
	}
	if !strings.Contains(plan.AIError, "panicked") {
		t.Fatalf("ai_error: got=%q", plan.AIError)
	}

	h.settleJobs(t)
	h.backend.planPanic = false
	if _, err := h.peis.TriggerGeneration(ctx, res.PEI.ID); err != nil {
		t.Fatalf("TriggerGeneration after panic: %v", err)
	}
	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err != nil {
		t.Fatalf("RunGeneration retry: %v", err)
	}
}

func TestPEITriggerGenerationRestartsOrphanedRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 1)
	h.completePlan(t, res)

	// The auto-triggered job is still queued.
	_, err := h.peis.TriggerGeneration(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	// The job dies without touching the plan, as after a stale reap or crash.
	err = h.db.Model(&types.JobRun{}).
		Where("entity_id = ?", res.PEI.ID).
		Update("status", types.JobStatusFailed).Error
	if err != nil {
		t.Fatalf("fail job: %v", err)
	}
	plan, _ := h.peis.Get(ctx, res.PEI.ID)
	if plan.Status != string(pei.PlanInReview) || plan.AIState != string(pei.AIProcessing) {
		t.Fatalf("orphaned plan state: got=%s/%s", plan.Status, plan.AIState)
	}

	job, err := h.peis.TriggerGeneration(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("TriggerGeneration on orphaned plan: %v", err)
	}
	if job.Status != types.JobStatusQueued {
		t.Fatalf("new job status: got=%s", job.Status)
	}
	done, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1)
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if done.Status != string(pei.PlanCompleted) {
		t.Fatalf("status: got=%s", done.Status)
	}
}

func TestPEIRegenerateApprovedPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.approvedPlan(t, 1)

	if _, err := h.peis.TriggerGeneration(ctx, res.PEI.ID); err != nil {
		t.Fatalf("TriggerGeneration on approved plan: %v", err)
	}
	plan, _ := h.peis.Get(ctx, res.PEI.ID)
	if plan.Status != string(pei.PlanInReview) {
		t.Fatalf("status: got=%s", plan.Status)
	}
	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	h.settleJobs(t)

	h.clock.Advance(10 * 24 * time.Hour)
	again, err := h.peis.Approve(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("re-Approve: %v", err)
	}
	if again.PEI.GenerationCount != 2 {
		t.Fatalf("generation_count: got=%d want=2", again.PEI.GenerationCount)
	}
	wantExpiry := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	if again.PEI.ExpiresAt == nil || !again.PEI.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at: got=%v want=%v", again.PEI.ExpiresAt, wantExpiry)
	}
}

func TestPEIApproveAndValidity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 1)

	_, err := h.peis.Approve(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	_, err = h.peis.Validity(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	h.completePlan(t, res)
	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	approved, err := h.peis.Approve(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.PEI.Status != string(pei.PlanApproved) {
		t.Fatalf("status: got=%s", approved.PEI.Status)
	}
	wantExpiry := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	if approved.PEI.ExpiresAt == nil || !approved.PEI.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at: got=%v want=%v", approved.PEI.ExpiresAt, wantExpiry)
	}
	if approved.Validity.Status != pei.ValidityValid || approved.Validity.DaysUntilExpiry != 360 {
		t.Fatalf("validity: got=%+v", approved.Validity)
	}
	if approved.Message == "" {
		t.Fatalf("approval message should be rendered")
	}
	student, err := h.students.Get(ctx, res.Student.ID)
	if err != nil {
		t.Fatalf("students.Get: %v", err)
	}
	if !student.HasAccess || student.Status != types.StudentActive {
		t.Fatalf("student after approval: access=%v status=%s", student.HasAccess, student.Status)
	}

	_, err = h.peis.Approve(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	h.clock.Advance(340 * 24 * time.Hour)
	info, err := h.peis.Validity(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Validity: %v", err)
	}
	if info.Status != pei.ValidityExpiringSoon || info.DaysUntilExpiry != 20 {
		t.Fatalf("validity near expiry: got=%+v", info)
	}

	h.clock.Advance(30 * 24 * time.Hour)
	info, err = h.peis.Validity(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Validity: %v", err)
	}
	if info.Status != pei.ValidityExpired {
		t.Fatalf("validity after expiry: got=%+v", info)
	}
	plan, _ := h.peis.Get(ctx, res.PEI.ID)
	if plan.Status != string(pei.PlanExpired) {
		t.Fatalf("expired plan status: got=%s", plan.Status)
	}
}

func TestPEISweepExpiring(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	soon := h.approvedPlan(t, 1)

	// A plan still in collection is never swept.
	h.createPlan(t, 1)

	h.clock.Advance(350 * 24 * time.Hour)
	out, err := h.peis.SweepExpiring(ctx)
	if err != nil {
		t.Fatalf("SweepExpiring: %v", err)
	}
	if out.Notified != 1 || out.Expired != 0 {
		t.Fatalf("sweep: got=%+v", out)
	}
	if kinds(h.sink.All())[pei.MessagePlanExpiring] != 1 {
		t.Fatalf("expiring notices: got=%v", kinds(h.sink.All()))
	}
	plan, _ := h.peis.Get(ctx, soon.PEI.ID)
	if plan.ExpiryNotifiedAt == nil || !plan.ExpiryNotifiedAt.Equal(h.clock.Now()) {
		t.Fatalf("expiry_notified_at: got=%v", plan.ExpiryNotifiedAt)
	}

	// Later ticks inside the window do not repeat the notice.
	h.clock.Advance(24 * time.Hour)
	out, err = h.peis.SweepExpiring(ctx)
	if err != nil {
		t.Fatalf("SweepExpiring: %v", err)
	}
	if out.Notified != 0 || out.Expired != 0 {
		t.Fatalf("repeat sweep: got=%+v", out)
	}
	if kinds(h.sink.All())[pei.MessagePlanExpiring] != 1 {
		t.Fatalf("expiring notices after repeat sweep: got=%v", kinds(h.sink.All()))
	}

	h.clock.Advance(19 * 24 * time.Hour)
	out, err = h.peis.SweepExpiring(ctx)
	if err != nil {
		t.Fatalf("SweepExpiring: %v", err)
	}
	if out.Expired != 1 {
		t.Fatalf("sweep after expiry: got=%+v", out)
	}
	plan, _ = h.peis.Get(ctx, soon.PEI.ID)
	if plan.Status != string(pei.PlanExpired) {
		t.Fatalf("status: got=%s", plan.Status)
	}

	// Expired plans can be regenerated.
	h.settleJobs(t)
	if _, err := h.peis.TriggerGeneration(ctx, soon.PEI.ID); err != nil {
		t.Fatalf("TriggerGeneration on expired plan: %v", err)
	}
}

func TestPEIRemind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 3)
	if _, err := h.peis.SubmitResponse(ctx, res.PEI.ID, res.Respondents[1].ID, answersFor(1)); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}

	sent, err := h.peis.Remind(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("Remind: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("reminders: got=%d want=2", len(sent))
	}
	for _, n := range sent {
		if n.Kind != pei.MessageReminder {
			t.Fatalf("kind: got=%s", n.Kind)
		}
		if n.Recipient == res.Respondents[1].Name {
			t.Fatalf("respondent who answered was reminded")
		}
		if !strings.Contains(n.Body, "https://peai.test/form/"+res.PEI.ID.String()) {
			t.Fatalf("reminder body should carry the survey link: %q", n.Body)
		}
	}

	h.completePlanFrom(t, res, 0, 2)
	_, err = h.peis.Remind(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")
}

func TestPEISendInvites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 3)
	if _, err := h.peis.SubmitResponse(ctx, res.PEI.ID, res.Respondents[0].ID, answersFor(0)); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}

	sent, err := h.peis.SendInvites(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("SendInvites: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("invites: got=%d want=2", len(sent))
	}
	pending := map[string]string{}
	for _, r := range res.Respondents[1:] {
		pending[r.Name] = "https://peai.test/form/" + res.PEI.ID.String() + "/" + r.ID.String()
	}
	for _, n := range sent {
		link, ok := pending[n.Recipient]
		if n.Kind != pei.MessageSurveyInvite || !ok {
			t.Fatalf("invite: got=%s/%s", n.Kind, n.Recipient)
		}
		if !strings.Contains(n.Body, link) {
			t.Fatalf("invite body should carry the respondent's link: %q", n.Body)
		}
		delete(pending, n.Recipient)
	}
	// Three from creation plus the two re-sent.
	if kinds(h.sink.All())[pei.MessageSurveyInvite] != 5 {
		t.Fatalf("invites recorded: got=%v", kinds(h.sink.All()))
	}

	h.completePlanFrom(t, res, 1, 2)
	_, err = h.peis.SendInvites(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	_, err = h.peis.SendInvites(ctx, uuid.New())
	wantAPIError(t, err, http.StatusNotFound, "pei_not_found")
}

func (h *harness) completePlanFrom(t *testing.T, res *CreatePEIResult, idx ...int) {
	t.Helper()
	for _, i := range idx {
		if _, err := h.peis.SubmitResponse(context.Background(), res.PEI.ID, res.Respondents[i].ID, answersFor(i)); err != nil {
			t.Fatalf("SubmitResponse(%d): %v", i, err)
		}
	}
}

func TestPEIListAndLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.createPlan(t, 1)
	b := h.createPlan(t, 2)
	h.completePlan(t, b)

	all, err := h.peis.List(ctx, repos.PEIFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List: got=%d want=2", len(all))
	}
	inReview, err := h.peis.List(ctx, repos.PEIFilter{Statuses: []string{string(pei.PlanInReview)}})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(inReview) != 1 || inReview[0].ID != b.PEI.ID {
		t.Fatalf("List filtered: got=%d", len(inReview))
	}

	got, err := h.peis.GetForStudent(ctx, a.Student.ID)
	if err != nil {
		t.Fatalf("GetForStudent: %v", err)
	}
	if got.ID != a.PEI.ID {
		t.Fatalf("GetForStudent: got=%s want=%s", got.ID, a.PEI.ID)
	}
	_, err = h.peis.GetForStudent(ctx, uuid.New())
	wantAPIError(t, err, http.StatusNotFound, "pei_not_found")
}

func TestPEIRenderPDF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createPlan(t, 1)

	_, _, err := h.peis.RenderPDF(ctx, res.PEI.ID)
	wantAPIError(t, err, http.StatusUnprocessableEntity, "precondition_failed")

	h.completePlan(t, res)
	if _, err := h.peis.RunGeneration(ctx, res.PEI.ID, 1); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	name, b, err := h.peis.RenderPDF(ctx, res.PEI.ID)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if name != "PEI_Ana_Souza.pdf" {
		t.Fatalf("filename: got=%q", name)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}
