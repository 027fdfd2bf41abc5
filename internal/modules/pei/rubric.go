package pei

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	weightCompleteness = 0.4
	weightConvergence  = 0.3
	weightSpecificity  = 0.3

	specificWordsPerAnswer = 40
	minSignalWordLen       = 5
)

// ConfidenceRubric is a deterministic estimate of input quality computed from
// the responses alone. It sits next to the model-reported score.
type ConfidenceRubric struct {
	Completeness int `json:"completeness"`
	Convergence  int `json:"convergence"`
	Specificity  int `json:"specificity"`
	Score        int `json:"score"`
}

func ScoreResponses(responses []ProfessionalResponse) ConfidenceRubric {
	if len(responses) == 0 {
		return ConfidenceRubric{}
	}
	completeness := completenessOf(responses)
	convergence := convergenceOf(responses)
	specificity := specificityOf(responses)
	score := weightCompleteness*completeness + weightConvergence*convergence + weightSpecificity*specificity
	return ConfidenceRubric{
		Completeness: int(math.Round(completeness)),
		Convergence:  int(math.Round(convergence)),
		Specificity:  int(math.Round(specificity)),
		Score:        clampScore(int(math.Round(score))),
	}
}

// completenessOf is the mean share of non-blank answers per response.
func completenessOf(responses []ProfessionalResponse) float64 {
	total := 0.0
	for _, r := range responses {
		if len(r.Answers) == 0 {
			continue
		}
		answered := 0
		for _, v := range r.Answers {
			if strings.TrimSpace(flattenAnswer(v)) != "" {
				answered++
			}
		}
		total += float64(answered) / float64(len(r.Answers))
	}
	return total / float64(len(responses)) * 100
}

// convergenceOf is the mean share of each response's signal words that
// another participant also used. A lone response scores a neutral 50.
func convergenceOf(responses []ProfessionalResponse) float64 {
	if len(responses) < 2 {
		return 50
	}
	vocab := make([]map[string]struct{}, len(responses))
	for i, r := range responses {
		vocab[i] = signalWords(r.Answers)
	}
	total := 0.0
	for i, words := range vocab {
		if len(words) == 0 {
			continue
		}
		shared := 0
		for w := range words {
			for j, other := range vocab {
				if j == i {
					continue
				}
				if _, ok := other[w]; ok {
					shared++
					break
				}
			}
		}
		total += float64(shared) / float64(len(words))
	}
	return total / float64(len(responses)) * 100
}

// specificityOf saturates at specificWordsPerAnswer words per answer.
func specificityOf(responses []ProfessionalResponse) float64 {
	answers, words := 0, 0
	for _, r := range responses {
		for _, v := range r.Answers {
			text := strings.TrimSpace(flattenAnswer(v))
			if text == "" {
				continue
			}
			answers++
			words += len(strings.Fields(text))
		}
	}
	if answers == 0 {
		return 0
	}
	avg := float64(words) / float64(answers)
	return math.Min(avg/specificWordsPerAnswer, 1) * 100
}

func signalWords(answers map[string]any) map[string]struct{} {
	out := map[string]struct{}{}
	for _, v := range answers {
		for _, w := range strings.FieldsFunc(strings.ToLower(flattenAnswer(v)), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			if len([]rune(w)) >= minSignalWordLen {
				out[w] = struct{}{}
			}
		}
	}
	return out
}

func flattenAnswer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, flattenAnswer(item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(t))
		for _, k := range keys {
			parts = append(parts, flattenAnswer(t[k]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
