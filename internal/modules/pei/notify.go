package pei

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type MessageKind string

const (
	MessageSurveyInvite MessageKind = "survey_invite"
	MessageReminder     MessageKind = "reminder"
	MessagePlanReady    MessageKind = "plan_ready"
	MessagePlanApproved MessageKind = "plan_approved"
	MessagePlanExpiring MessageKind = "plan_expiring"
)

const FallbackMessage = "Notificação do PE.AI"

type messageTemplate struct {
	required []string
	render   func(c map[string]string) string
}

var messageTemplates = map[MessageKind]messageTemplate{
	MessageSurveyInvite: {
		required: []string{"professional_name", "student_name", "survey_link"},
		render: func(c map[string]string) string {
			return fmt.Sprintf("Olá %s!\n\n"+
				"Você foi convidado(a) a participar da elaboração do PEI do aluno %s.\n\n"+
				"Acesse: %s\n\n"+
				"Válido por 7 dias.\n\n"+
				"PE.AI - Educação Inclusiva",
				c["professional_name"], c["student_name"], c["survey_link"])
		},
	},
	MessageReminder: {
		required: []string{"student_name", "survey_link", "days_left"},
		render: func(c map[string]string) string {
			return fmt.Sprintf("Lembrete: Sua contribuição para o PEI de %s ainda está pendente.\n\n"+
				"Acesse: %s\n\n"+
				"Expira em %s dias.\n\n"+
				"PE.AI",
				c["student_name"], c["survey_link"], c["days_left"])
		},
	},
	MessagePlanReady: {
		required: []string{"student_name", "dashboard_link"},
		render: func(c map[string]string) string {
			return fmt.Sprintf("✨ PEI Provisório Gerado!\n\n"+
				"O PEI de %s foi gerado automaticamente pela IA.\n\n"+
				"Próximo passo: Encaminhar para revisão do auditor.\n\n"+
				"Acessar: %s",
				c["student_name"], c["dashboard_link"])
		},
	},
	MessagePlanApproved: {
		required: []string{"student_name", "validity_date", "dashboard_link"},
		render: func(c map[string]string) string {
			return fmt.Sprintf("✅ PEI Aprovado!\n\n"+
				"O PEI de %s foi aprovado pelo auditor.\n\n"+
				"Válido até: %s\n\n"+
				"Acessar: %s",
				c["student_name"], c["validity_date"], c["dashboard_link"])
		},
	},
	MessagePlanExpiring: {
		required: []string{"student_name", "days_until_expiry", "dashboard_link"},
		render: func(c map[string]string) string {
			return fmt.Sprintf("⚠️ PEI Próximo do Vencimento\n\n"+
				"O PEI de %s vence em %s dias.\n\n"+
				"Inicie novo processo de coleta em breve.\n\n"+
				"Acessar: %s",
				c["student_name"], c["days_until_expiry"], c["dashboard_link"])
		},
	},
}

// Composer renders notification text. The zero value is ready to use.
type Composer struct{}

// Render fails only when a known kind is missing context keys; unknown kinds
// get the generic fallback so notifications never block the workflow.
func (Composer) Render(kind MessageKind, ctx map[string]any) (string, error) {
	tpl, ok := messageTemplates[kind]
	if !ok {
		return FallbackMessage, nil
	}
	values := make(map[string]string, len(tpl.required))
	var missing []string
	for _, key := range tpl.required {
		v, ok := ctx[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		values[key] = formatContextValue(v)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingContextError{Kind: kind, Keys: missing}
	}
	return tpl.render(values), nil
}

// RequiredKeys returns the context keys a kind needs, or nil for unknown kinds.
func RequiredKeys(kind MessageKind) []string {
	tpl, ok := messageTemplates[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), tpl.required...)
}

func formatContextValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format("02/01/2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("02/01/2006")
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
