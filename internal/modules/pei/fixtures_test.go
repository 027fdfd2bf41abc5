package pei

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

type countingGenerator struct {
	calls  atomic.Int32
	reply  string
	err    error
	prompt string
	system string
}

func (g *countingGenerator) Generate(_ context.Context, prompt, system string) (string, error) {
	g.calls.Add(1)
	g.prompt = prompt
	g.system = system
	return g.reply, g.err
}

func validPlanMap() map[string]any {
	return map[string]any{
		"student_identification": map[string]any{
			"name":          "Pedro Oliveira",
			"birth_date":    "15/03/2010",
			"age":           15,
			"grade":         "9º Ano",
			"special_needs": []any{"TEA (Nível 1)", "TDAH"},
		},
		"detailed_report": map[string]any{
			"cognitive_development":   "Raciocínio espacial acima da média.",
			"attention_concentration": "Foco de 15 a 20 minutos.",
			"socioemotional":          "Ansiedade antes de provas.",
			"communication":           "Comunicação objetiva.",
			"sources": map[string]any{
				"cognitive_development": []any{"Ana Costa (Psicóloga)"},
			},
		},
		"strengths":    []any{"Memória visual"},
		"difficulties": []any{"Interpretação de texto"},
		"educational_goals": map[string]any{
			"short_term":  []any{"Ampliar concentração (3 meses)"},
			"medium_term": []any{"Técnicas de estudo (6 meses)"},
			"long_term":   []any{"Independência acadêmica (12 meses)"},
		},
		"methodological_strategies": map[string]any{
			"content_presentation": []any{"Mapas mentais"},
			"activities":           []any{"Atividades manipuláveis"},
			"environment":          []any{"Ambiente silencioso"},
		},
		"assistive_resources": map[string]any{
			"required":    []any{"Timer visual"},
			"recommended": []any{"Tablet"},
		},
		"evaluation_criteria": map[string]any{
			"adaptations": []any{"Tempo adicional"},
			"diversified_instruments": map[string]any{
				"practical_projects": 30,
				"adapted_tests":      "20%",
			},
			"evaluation_focus": "Processo de aprendizagem.",
		},
		"confidence_score": 87,
		"warnings":         []any{"Revisar metas de médio prazo"},
	}
}

func validAdaptationMap() map[string]any {
	return map[string]any{
		"original_analysis": map[string]any{
			"content_type":        "teórico",
			"complexity_level":    "médio",
			"main_concepts":       []any{"equação do 2º grau"},
			"learning_objectives": []any{"resolver equações"},
			"estimated_time":      "50 minutos",
		},
		"adaptations_applied": []any{"Dividido em blocos de 15 minutos"},
		"adapted_content_structure": map[string]any{
			"title":        "Equações do 2º Grau",
			"introduction": map[string]any{"hook": "Um jogo de lançar bolas", "objective": "Resolver equações"},
			"blocks": []any{
				map[string]any{
					"block_number":     1,
					"duration_minutes": "15",
					"title":            "O que é",
					"content_type":     "visual",
					"content":          "ax² + bx + c = 0",
					"pause":            "sim",
				},
				map[string]any{
					"block_number":     2,
					"duration_minutes": 20,
					"title":            "Bhaskara",
					"content_type":     "prático",
					"content":          "Passo a passo",
					"pause":            "não",
				},
			},
			"practice_activities":   []any{},
			"summary":               "Resumo",
			"evaluation_suggestion": "Avaliação prática",
		},
		"pei_compatibility_score": "92",
		"compatibility_analysis": map[string]any{
			"strengths_addressed": []any{"Memória visual"},
			"needs_met":           []any{"Blocos curtos"},
			"strategies_applied":  []any{"Mapas mentais"},
		},
		"teacher_notes": []any{"Aplicar em sala silenciosa"},
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(b)
}

func sampleStudent() StudentInfo {
	return StudentInfo{
		Name:         "Pedro Oliveira",
		BirthDate:    "15/03/2010",
		Grade:        "9º Ano",
		SpecialNeeds: []string{"TEA (Nível 1)", "TDAH"},
		HasDiagnosis: true,
	}
}

func sampleResponses(n int) []ProfessionalResponse {
	base := []ProfessionalResponse{
		{
			ProfessionalID: "prof_001",
			Role:           "psicologo",
			Name:           "Ana Costa",
			Answers: map[string]any{
				"attention_concentration": "Mantém foco por 15-20 minutos com atividades manipuláveis.",
				"learning_style":          "Visual e cinestésico, responde bem a diagramas.",
			},
			SubmittedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ProfessionalID: "prof_002",
			Role:           "professor",
			Name:           "Roberto Lima",
			Answers: map[string]any{
				"classroom_performance": "Excelente em matemática com diagramas visuais.",
				"strategies_that_work":  "Mapas mentais e atividades manipuláveis.",
			},
			SubmittedAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ProfessionalID: "prof_003",
			Role:           "responsavel",
			Name:           "Márcia Oliveira",
			Answers: map[string]any{
				"home_behavior": "Organizado com checklist visual.",
				"challenges":    "",
			},
			SubmittedAt: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
		},
	}
	if n > len(base) {
		n = len(base)
	}
	return base[:n]
}
