package pdfrender

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/yungbote/peai-backend/internal/modules/pei"
)

const footerText = "Documento gerado automaticamente pelo Sistema PE.AI"

var statusLabels = map[pei.PlanStatus]string{
	pei.PlanDraft:        "Rascunho",
	pei.PlanInCollection: "Em Coleta",
	pei.PlanInReview:     "Em Revisão",
	pei.PlanCompleted:    "Processado pela IA",
	pei.PlanFailed:       "Falha na Geração",
	pei.PlanApproved:     "Concluído",
	pei.PlanExpired:      "Expirado",
}

var fieldLabels = map[string]string{
	"content_presentation":    "Apresentação do Conteúdo",
	"activities":              "Atividades",
	"environment":             "Ambiente",
	"practical_projects":      "Projetos Práticos",
	"visual_presentations":    "Apresentações Visuais",
	"classroom_activities":    "Atividades em Sala",
	"adapted_tests":           "Provas Adaptadas",
	"cognitive_development":   "Desenvolvimento Cognitivo",
	"attention_concentration": "Atenção e Concentração",
	"socioemotional":          "Socioemocional",
	"communication":           "Comunicação",
}

// PlanHeader carries the record-level fields printed above the plan body.
type PlanHeader struct {
	StudentName         string
	Status              pei.PlanStatus
	CreatedAt           time.Time
	ApprovedAt          *time.Time
	ExpiresAt           *time.Time
	SpecialNeeds        []string
	InitialObservations string
}

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDoc() *doc {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(20, 20, 20)
	p.SetAutoPageBreak(true, 20)
	d := &doc{pdf: p, tr: p.UnicodeTranslatorFromDescriptor("")}
	p.SetFooterFunc(func() {
		p.SetY(-15)
		p.SetFont("Helvetica", "I", 8)
		p.CellFormat(0, 10, d.tr(fmt.Sprintf("%s - página %d", footerText, p.PageNo())), "", 0, "C", false, 0, "")
	})
	p.AddPage()
	return d
}

func (d *doc) title(s string) {
	d.pdf.SetFont("Helvetica", "B", 16)
	d.pdf.MultiCell(0, 8, d.tr(s), "", "C", false)
	d.pdf.Ln(2)
}

func (d *doc) heading(s string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.MultiCell(0, 7, d.tr(s), "", "L", false)
	d.pdf.Ln(1)
}

func (d *doc) labeled(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.MultiCell(0, 5, d.tr(label+":"), "", "L", false)
	d.para(value)
}

func (d *doc) para(s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, 5, d.tr(s), "", "J", false)
	d.pdf.Ln(1)
}

func (d *doc) bullets(label string, items []string) {
	if len(items) == 0 {
		return
	}
	if label != "" {
		d.pdf.SetFont("Helvetica", "B", 10)
		d.pdf.MultiCell(0, 5, d.tr(label+":"), "", "L", false)
	}
	d.pdf.SetFont("Helvetica", "", 10)
	for _, it := range items {
		d.pdf.SetX(25)
		d.pdf.MultiCell(0, 5, d.tr("- "+it), "", "L", false)
	}
	d.pdf.Ln(1)
}

func (d *doc) finish(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return err
	}
	return d.pdf.Output(w)
}

func label(key string) string {
	if l, ok := fieldLabels[key]; ok {
		return l
	}
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderPlan writes the plan as a PDF document.
func RenderPlan(w io.Writer, h PlanHeader, plan *pei.PlanDocument) error {
	if plan == nil {
		return fmt.Errorf("render plan: no document")
	}
	d := newDoc()
	d.title("PLANO EDUCACIONAL INDIVIDUALIZADO (PEI)")
	d.title(h.StudentName)

	status := statusLabels[h.Status]
	if status == "" {
		status = string(h.Status)
	}
	d.labeled("Status", status)
	if !h.CreatedAt.IsZero() {
		d.labeled("Data de Criação", h.CreatedAt.Format("02/01/2006"))
	}
	if h.ApprovedAt != nil {
		d.labeled("Aprovado em", h.ApprovedAt.Format("02/01/2006"))
	}
	if h.ExpiresAt != nil {
		d.labeled("Válido até", h.ExpiresAt.Format("02/01/2006"))
	}
	d.labeled("Confiança da síntese", fmt.Sprintf("%d%%", plan.ConfidenceScore))

	d.heading("1. IDENTIFICAÇÃO DO ESTUDANTE")
	d.labeled("Nome", h.StudentName)
	needs := h.SpecialNeeds
	if len(needs) == 0 {
		needs = plan.StudentIdentification.SpecialNeeds
	}
	d.labeled("Necessidades Educacionais Especiais", strings.Join(needs, ", "))
	d.labeled("Série", plan.StudentIdentification.Grade)
	d.labeled("Observações Iniciais", h.InitialObservations)

	d.heading("2. RELATÓRIO CIRCUNSTANCIADO")
	report := []struct{ key, text string }{
		{"cognitive_development", plan.DetailedReport.CognitiveDevelopment},
		{"attention_concentration", plan.DetailedReport.AttentionConcentration},
		{"socioemotional", plan.DetailedReport.Socioemotional},
		{"communication", plan.DetailedReport.Communication},
	}
	for _, r := range report {
		d.labeled(label(r.key), r.text)
		if src := plan.DetailedReport.Sources[r.key]; len(src) > 0 {
			d.para("Fontes: " + strings.Join(src, "; "))
		}
	}

	d.heading("3. HABILIDADES E PONTOS FORTES")
	d.bullets("", plan.Strengths)

	d.heading("4. DIFICULDADES E NECESSIDADES")
	d.bullets("", plan.Difficulties)

	d.heading("5. OBJETIVOS EDUCACIONAIS")
	d.bullets("Curto Prazo", plan.EducationalGoals.ShortTerm)
	d.bullets("Médio Prazo", plan.EducationalGoals.MediumTerm)
	d.bullets("Longo Prazo", plan.EducationalGoals.LongTerm)

	d.heading("6. ESTRATÉGIAS PEDAGÓGICAS")
	d.bullets(label("content_presentation"), plan.MethodologicalStrategies.ContentPresentation)
	d.bullets(label("activities"), plan.MethodologicalStrategies.Activities)
	d.bullets(label("environment"), plan.MethodologicalStrategies.Environment)

	d.heading("7. RECURSOS DE APOIO")
	d.bullets("Necessários", plan.AssistiveResources.Required)
	d.bullets("Recomendados", plan.AssistiveResources.Recommended)

	d.heading("8. MÉTODOS DE AVALIAÇÃO")
	d.bullets("Adaptações", plan.EvaluationCriteria.Adaptations)
	if len(plan.EvaluationCriteria.DiversifiedInstruments) > 0 {
		keys := make([]string, 0, len(plan.EvaluationCriteria.DiversifiedInstruments))
		for k := range plan.EvaluationCriteria.DiversifiedInstruments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			items = append(items, fmt.Sprintf("%s: %d%%", label(k), plan.EvaluationCriteria.DiversifiedInstruments[k]))
		}
		d.bullets("Instrumentos Diversificados", items)
	}
	d.labeled("Foco da Avaliação", plan.EvaluationCriteria.EvaluationFocus)

	if len(plan.Warnings) > 0 || len(plan.Suggestions) > 0 {
		d.heading("9. ALERTAS E SUGESTÕES")
		d.bullets("Alertas", plan.Warnings)
		d.bullets("Sugestões", plan.Suggestions)
	}
	return d.finish(w)
}

// RenderAdaptation writes an adapted material as a PDF document.
func RenderAdaptation(w io.Writer, studentName string, res *pei.AdaptationResult) error {
	if res == nil {
		return fmt.Errorf("render adaptation: no result")
	}
	d := newDoc()
	title := res.AdaptedContent.Title
	if title == "" {
		title = res.OriginalMetadata.Title
	}
	d.title("MATERIAL ADAPTADO")
	d.title(title)
	d.labeled("Aluno", studentName)
	d.labeled("Disciplina", res.OriginalMetadata.Subject)
	d.labeled("Série", res.OriginalMetadata.Grade)
	d.labeled("Material Original", res.OriginalMetadata.Title)

	d.heading("1. ANÁLISE DO MATERIAL ORIGINAL")
	d.labeled("Tipo de Conteúdo", res.OriginalAnalysis.ContentType)
	d.labeled("Nível de Complexidade", res.OriginalAnalysis.ComplexityLevel)
	d.bullets("Principais Conceitos", res.OriginalAnalysis.MainConcepts)
	d.bullets("Objetivos de Aprendizagem", res.OriginalAnalysis.LearningObjectives)

	d.heading("2. ADAPTAÇÕES APLICADAS")
	d.bullets("", res.AdaptationsApplied)

	d.heading("3. CONTEÚDO ADAPTADO")
	d.labeled("Gancho Inicial", res.AdaptedContent.Introduction.Hook)
	d.labeled("Objetivo", res.AdaptedContent.Introduction.Objective)
	for i, b := range res.AdaptedContent.Blocks {
		d.labeled(fmt.Sprintf("Bloco %d: %s", i+1, b.Title),
			fmt.Sprintf("Duração: %d minutos | Tipo: %s", int(b.DurationMinutes), b.ContentType))
		d.para(b.Content)
		d.bullets("Recursos Visuais", b.VisualAids)
		d.labeled("Atividade", b.Activity)
		if b.Pause {
			d.para("Pausa sugerida ao final deste bloco.")
		}
	}

	if len(res.AdaptedContent.PracticeActivities) > 0 {
		d.heading("4. ATIVIDADES PRÁTICAS")
		for _, a := range res.AdaptedContent.PracticeActivities {
			name := a.Title
			if name == "" {
				name = "Atividade"
			}
			d.labeled(name, fmt.Sprintf("Tipo: %s | Duração: %d minutos", a.Type, int(a.DurationMinutes)))
			d.bullets("Instruções", a.Instructions)
			d.bullets("Materiais Necessários", a.MaterialsNeeded)
		}
	}

	d.heading("5. RESUMO DOS PONTOS-CHAVE")
	d.para(res.AdaptedContent.Summary)

	d.heading("6. SUGESTÃO DE AVALIAÇÃO")
	d.para(res.AdaptedContent.EvaluationSuggestion)

	d.heading("7. COMPATIBILIDADE COM O PEI")
	d.labeled("Score de Compatibilidade", fmt.Sprintf("%d%%", res.CompatibilityScore))
	d.bullets("Forças do Aluno Exploradas", res.CompatibilityAnalysis.StrengthsAddressed)
	d.bullets("Necessidades Atendidas", res.CompatibilityAnalysis.NeedsMet)
	d.bullets("Estratégias Aplicadas", res.CompatibilityAnalysis.StrategiesApplied)

	if len(res.TeacherNotes) > 0 || len(res.Warnings) > 0 {
		d.heading("8. NOTAS PARA O PROFESSOR")
		d.bullets("", res.TeacherNotes)
		d.bullets("Alertas", res.Warnings)
	}
	return d.finish(w)
}
