package pei

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

const planSystemInstruction = `
Você é um especialista em educação especial e elaboração de Planos
Educacionais Individualizados (PEI) no Brasil.

Sua expertise inclui:
- Lei Brasileira de Inclusão (LBI - Lei 13.146/2015)
- Diretrizes Nacionais para Educação Especial
- Neuropsicologia educacional
- Estratégias pedagógicas inclusivas
- Tecnologias assistivas

Você deve analisar as respostas de múltiplos profissionais (psicólogos,
professores, pais, terapeutas) e sintetizar um PEI completo, coerente
e alinhado com a legislação brasileira.`

const planSchema = `
Responda APENAS em JSON com este formato:
{
  "student_identification": {
    "name": "nome do aluno",
    "birth_date": "DD/MM/YYYY",
    "age": 15,
    "grade": "9º Ano",
    "special_needs": ["TEA Nível 1", "TDAH"]
  },
  "detailed_report": {
    "cognitive_development": "texto descritivo detalhado (3-4 parágrafos)",
    "attention_concentration": "texto descritivo detalhado (2-3 parágrafos)",
    "socioemotional": "texto descritivo detalhado (2-3 parágrafos)",
    "communication": "texto descritivo detalhado (2-3 parágrafos)",
    "sources": {
      "cognitive_development": ["Nome (Função)"],
      "attention_concentration": ["Nome (Função)"],
      "socioemotional": ["Nome (Função)"],
      "communication": ["Nome (Função)"]
    }
  },
  "strengths": ["força 1", "força 2"],
  "difficulties": ["dificuldade 1", "dificuldade 2"],
  "educational_goals": {
    "short_term": ["objetivo (3 meses)"],
    "medium_term": ["objetivo (6 meses)"],
    "long_term": ["objetivo (12 meses)"]
  },
  "methodological_strategies": {
    "content_presentation": ["estratégia"],
    "activities": ["estratégia"],
    "environment": ["estratégia"]
  },
  "assistive_resources": {
    "required": ["recurso"],
    "recommended": ["recurso"]
  },
  "evaluation_criteria": {
    "adaptations": ["adaptação"],
    "diversified_instruments": {
      "practical_projects": 30,
      "visual_presentations": 20,
      "classroom_activities": 30,
      "adapted_tests": 20
    },
    "evaluation_focus": "foco qualitativo da avaliação"
  },
  "confidence_score": 95,
  "warnings": ["alerta para a equipe"],
  "suggestions": ["sugestão de acompanhamento"]
}`

var planPromptTmpl = template.Must(template.New("plan").Option("missingkey=zero").Parse(`
Analise cuidadosamente as respostas de {{.Count}} profissionais sobre o aluno
e gere um Plano Educacional Individualizado (PEI) completo, seguindo ESTRITAMENTE o SCHEMA.

=== INFORMAÇÕES DO ALUNO ===
Nome: {{.Student.Name}}
Data de Nascimento: {{.Student.BirthDate}}
Série: {{.Student.Grade}}
Necessidades Especiais: {{.SpecialNeeds}}
Possui Laudo: {{if .Student.HasDiagnosis}}Sim{{else}}Não{{end}}

=== RESPOSTAS DOS PROFISSIONAIS ===
{{.Transcript}}

=== INSTRUÇÕES IMPORTANTES ===
1. Identifique padrões e convergências nas respostas
2. Sintetize informações de forma coerente e objetiva
3. Base suas recomendações na LBI (Lei 13.146/2015)
4. Use linguagem clara e acessível para educadores
5. Seja específico e prático nas estratégias
6. Sempre cite a fonte (profissional) das informações
7. Calcule confidence_score (inteiro de 0 a 100) baseado em:
   - Completude das respostas (40%)
   - Convergência entre profissionais (30%)
   - Especificidade das informações (30%)
{{.Schema}}`))

const adaptSystemInstruction = `
Você é um especialista em adaptação de materiais pedagógicos para educação inclusiva.

Sua expertise inclui:
- Desenho Universal para Aprendizagem (DUA)
- Adaptação curricular
- Simplificação de linguagem
- Criação de recursos visuais
- Atividades práticas e manipuláveis
- Estratégias multissensoriais

Você deve transformar materiais didáticos padrão em versões adaptadas
que atendam às necessidades específicas do aluno conforme seu PEI.`

const adaptSchema = `
Responda APENAS em JSON com este formato, sem emojis ou markdown, apenas texto corrido puro:
{
  "original_analysis": {
    "content_type": "teórico|prático|misto",
    "complexity_level": "baixo|médio|alto",
    "main_concepts": ["conceito1", "conceito2"],
    "learning_objectives": ["objetivo1", "objetivo2"],
    "estimated_time": 50
  },
  "adaptations_applied": ["adaptação aplicada"],
  "adapted_content_structure": {
    "title": "Título visual e objetivo claro",
    "introduction": {
      "hook": "Analogia ou exemplo concreto para engajar",
      "objective": "O que vamos aprender hoje (linguagem simples)"
    },
    "blocks": [
      {
        "block_number": 1,
        "duration_minutes": 15,
        "title": "Título do bloco",
        "content_type": "visual|prático|textual",
        "content": "Conteúdo adaptado do bloco",
        "visual_aids": ["diagrama1", "imagem2"],
        "activity": "Atividade prática opcional",
        "pause": "sim|não"
      }
    ],
    "practice_activities": [
      {
        "title": "Nome da atividade",
        "type": "individual|grupo|manipulável",
        "duration_minutes": 10,
        "instructions": ["passo 1", "passo 2"],
        "materials_needed": ["material1", "material2"]
      }
    ],
    "summary": "Resumo visual dos pontos-chave",
    "evaluation_suggestion": "Forma de avaliar aprendizado adaptada ao aluno"
  },
  "pei_compatibility_score": 95,
  "compatibility_analysis": {
    "strengths_addressed": ["força do PEI explorada"],
    "needs_met": ["necessidade atendida"],
    "strategies_applied": ["estratégia do PEI"]
  },
  "teacher_notes": ["nota para o professor"],
  "warnings": ["alerta de aplicação"]
}`

// AdaptationDirectives are the fixed rules every adaptation follows.
var AdaptationDirectives = []string{
	"VISUAL: Transformar conceitos abstratos em representações visuais",
	"PRÁTICO: Criar atividades hands-on sempre que possível",
	"BLOCOS CURTOS: Dividir em segmentos de 15-20 minutos",
	"PAUSAS: Incluir momentos estratégicos de intervalo",
	"LINGUAGEM: Simplificar sem perder rigor conceitual",
	"EXEMPLOS: Usar situações concretas e do cotidiano",
	"ORIENTAÇÃO: Adicionar ícones e cores para guiar",
	"INTERATIVIDADE: Transformar exposição em participação",
}

var adaptPromptTmpl = template.Must(template.New("adapt").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Option("missingkey=zero").
	Parse(`
Adapte o material didático abaixo para atender às necessidades específicas do aluno
conforme seu PEI. Siga ESTRITAMENTE o SCHEMA.

=== MATERIAL ORIGINAL ===
Título: {{.Meta.Title}}
Disciplina: {{.Meta.Subject}}
Série: {{.Meta.Grade}}

Conteúdo:
{{.Text}}

=== RESUMO DO PEI DO ALUNO ===
{{.PlanSummary}}

=== DIRETRIZES DE ADAPTAÇÃO ===
{{range $i, $d := .Directives}}{{inc $i}}. {{$d}}
{{end}}
=== TRANSFORMAÇÕES ESPERADAS ===
- Texto denso → Título visual + objetivos claros
- Definições abstratas → Analogias concretas
- Fórmulas/conceitos → Diagramas color-coded
- Exemplos teóricos → Atividades passo a passo
- Blocos longos → Segmentos curtos com pausas
- Apenas teoria → Teoria + prática integrada
{{.Schema}}`))

// Transcript renders responses as labeled blocks in submission order.
func Transcript(responses []ProfessionalResponse) string {
	parts := make([]string, 0, len(responses))
	for _, r := range responses {
		answers := r.Answers
		if answers == nil {
			answers = map[string]any{}
		}
		parts = append(parts, fmt.Sprintf("=== %s - %s ===\nTimestamp: %s\nRespostas:\n%s",
			strings.ToUpper(r.Role), r.Name, r.SubmittedAt.Format(time.RFC3339), pretty(answers)))
	}
	return strings.Join(parts, "\n\n")
}

func buildPlanPrompt(student StudentInfo, responses []ProfessionalResponse) (string, error) {
	var buf bytes.Buffer
	err := planPromptTmpl.Execute(&buf, map[string]any{
		"Count":        len(responses),
		"Student":      student,
		"SpecialNeeds": strings.Join(student.SpecialNeeds, ", "),
		"Transcript":   Transcript(responses),
		"Schema":       planSchema,
	})
	if err != nil {
		return "", err
	}
	return buf.String() + strictJSONSuffix, nil
}

// PlanSummary is the slice of a plan the material adapter is allowed to see.
type PlanSummary struct {
	SpecialNeeds             []string                 `json:"special_needs"`
	Strengths                []string                 `json:"strengths"`
	Difficulties             []string                 `json:"difficulties"`
	MethodologicalStrategies MethodologicalStrategies `json:"methodological_strategies"`
	EvaluationCriteria       EvaluationCriteria       `json:"evaluation_criteria"`
}

func SummarizePlan(plan *PlanDocument) PlanSummary {
	if plan == nil {
		return PlanSummary{}
	}
	return PlanSummary{
		SpecialNeeds:             plan.StudentIdentification.SpecialNeeds,
		Strengths:                plan.Strengths,
		Difficulties:             plan.Difficulties,
		MethodologicalStrategies: plan.MethodologicalStrategies,
		EvaluationCriteria:       plan.EvaluationCriteria,
	}
}

func buildAdaptPrompt(text string, meta MaterialMetadata, plan *PlanDocument) (string, error) {
	var buf bytes.Buffer
	err := adaptPromptTmpl.Execute(&buf, map[string]any{
		"Meta":        meta,
		"Text":        text,
		"PlanSummary": pretty(SummarizePlan(plan)),
		"Directives":  AdaptationDirectives,
		"Schema":      adaptSchema,
	})
	if err != nil {
		return "", err
	}
	return buf.String() + strictJSONSuffix, nil
}

func pretty(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
