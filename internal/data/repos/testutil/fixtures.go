package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
)

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Student {
	tb.Helper()
	s := &types.Student{
		ID:        uuid.New(),
		Name:      name,
		Status:    types.StudentPendingForm,
		BirthDate: "12/05/2012",
		Grade:     "7º Ano",
		School:    "EMEF Paulo Freire",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return s
}

// SeedPEI creates a plan in collection with n respondents on its roster.
func SeedPEI(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID uuid.UUID, n int) (*types.PEI, []*types.Respondent) {
	tb.Helper()
	plan := &types.PEI{
		ID:                 uuid.New(),
		StudentID:          studentID,
		Status:             string(pei.PlanInCollection),
		AIState:            string(pei.AIPending),
		SpecialNeeds:       datatypes.JSONSlice[string]{"TDAH"},
		TotalProfessionals: n,
	}
	roles := []string{"psicologo", "professor", "mae", "terapeuta"}
	var rs []*types.Respondent
	for i := 0; i < n; i++ {
		r := &types.Respondent{
			ID:        uuid.New(),
			StudentID: studentID,
			PEIID:     PtrUUID(plan.ID),
			Role:      roles[i%len(roles)],
			Name:      "Profissional " + string(rune('A'+i)),
			Phone:     "+55 11 90000-000" + string(rune('0'+i%10)),
			Status:    types.RespondentLink,
		}
		rs = append(rs, r)
		plan.Professionals = append(plan.Professionals, types.Professional{ID: r.ID, Type: r.Role, Name: r.Name, Phone: r.Phone})
	}
	if err := tx.WithContext(ctx).Create(plan).Error; err != nil {
		tb.Fatalf("seed pei: %v", err)
	}
	for _, r := range rs {
		if err := tx.WithContext(ctx).Create(r).Error; err != nil {
			tb.Fatalf("seed respondent: %v", err)
		}
	}
	return plan, rs
}

func SeedResponse(tb testing.TB, ctx context.Context, tx *gorm.DB, planID uuid.UUID, r *types.Respondent, at time.Time) *types.ProfessionalResponse {
	tb.Helper()
	resp := &types.ProfessionalResponse{
		ID:               uuid.New(),
		PEIID:            planID,
		ProfessionalID:   r.ID,
		ProfessionalType: r.Role,
		ProfessionalName: r.Name,
		Answers:          datatypes.JSON([]byte(`{"strengths":"Boa memória visual","challenges":"Dispersa em aulas longas"}`)),
		SubmittedAt:      at,
	}
	if err := tx.WithContext(ctx).Create(resp).Error; err != nil {
		tb.Fatalf("seed response: %v", err)
	}
	return resp
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
