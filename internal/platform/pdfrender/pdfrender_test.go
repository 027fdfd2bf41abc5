package pdfrender

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/pdftext"
)

func samplePlan() *pei.PlanDocument {
	return &pei.PlanDocument{
		StudentIdentification: pei.StudentIdentification{Name: "Ana Souza", Grade: "7º Ano", SpecialNeeds: []string{"TDAH"}},
		DetailedReport: pei.DetailedReport{
			CognitiveDevelopment: "Boa memória visual.",
			Sources:              map[string][]string{"cognitive_development": {"Carla (Psicóloga)"}},
		},
		Strengths:        []string{"Criatividade"},
		Difficulties:     []string{"Atenção sustentada"},
		EducationalGoals: pei.EducationalGoals{ShortTerm: []string{"Concluir tarefas curtas"}},
		EvaluationCriteria: pei.EvaluationCriteria{
			DiversifiedInstruments: map[string]pei.FlexInt{"practical_projects": 40, "adapted_tests": 60},
		},
		ConfidenceScore: 82,
		Warnings:        []string{"Revisar com a família ⚠️"},
	}
}

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPlan(&buf, PlanHeader{
		StudentName: "Ana Souza",
		Status:      pei.PlanCompleted,
		CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, samplePlan())
	require.NoError(t, err)
	assert.True(t, pdftext.IsPDF(buf.Bytes()))
}

func TestRenderPlanRequiresDocument(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, RenderPlan(&buf, PlanHeader{}, nil))
	assert.Zero(t, buf.Len())
}

func TestRenderAdaptation(t *testing.T) {
	res := &pei.AdaptationResult{
		AdaptationsApplied: []string{"Blocos curtos"},
		AdaptedContent: pei.AdaptedContent{
			Title:  "Frações com pizza",
			Blocks: []pei.ContentBlock{{Title: "O que é metade?", DurationMinutes: 15, Content: "Divida a pizza.", Pause: true}},
			PracticeActivities: []pei.PracticeActivity{
				{Title: "Recortes", Type: "manipulável", DurationMinutes: 10, Instructions: []string{"Recorte o círculo"}},
			},
		},
		CompatibilityScore: 90,
		OriginalMetadata:   pei.MaterialMetadata{Title: "Frações", Subject: "Matemática", Grade: "5º Ano"},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderAdaptation(&buf, "Ana Souza", res))
	assert.True(t, pdftext.IsPDF(buf.Bytes()))
}

func TestLabelFallback(t *testing.T) {
	assert.Equal(t, "Projetos Práticos", label("practical_projects"))
	assert.Equal(t, "Peer tutoring", label("peer_tutoring"))
}
