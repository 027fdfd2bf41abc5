package pei

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// StudentInfo is the immutable student input to synthesis.
type StudentInfo struct {
	Name         string   `json:"name"`
	BirthDate    string   `json:"birth_date"`
	Grade        string   `json:"grade"`
	SpecialNeeds []string `json:"special_needs"`
	HasDiagnosis bool     `json:"has_diagnosis"`
}

// ProfessionalResponse is one participant's answer set. Never mutated once created.
type ProfessionalResponse struct {
	ProfessionalID string         `json:"professional_id"`
	Role           string         `json:"professional_type"`
	Name           string         `json:"professional_name"`
	Answers        map[string]any `json:"responses"`
	SubmittedAt    time.Time      `json:"submitted_at"`
}

type PlanDocument struct {
	StudentIdentification    StudentIdentification    `json:"student_identification"`
	DetailedReport           DetailedReport           `json:"detailed_report"`
	Strengths                []string                 `json:"strengths"`
	Difficulties             []string                 `json:"difficulties"`
	EducationalGoals         EducationalGoals         `json:"educational_goals"`
	MethodologicalStrategies MethodologicalStrategies `json:"methodological_strategies"`
	AssistiveResources       AssistiveResources       `json:"assistive_resources"`
	EvaluationCriteria       EvaluationCriteria       `json:"evaluation_criteria"`
	ConfidenceScore          int                      `json:"confidence_score"`
	ConfidenceRubric         *ConfidenceRubric        `json:"confidence_rubric,omitempty"`
	Warnings                 []string                 `json:"warnings,omitempty"`
	Suggestions              []string                 `json:"suggestions,omitempty"`
	GeneratedAt              time.Time                `json:"generated_at"`
}

type StudentIdentification struct {
	Name         string   `json:"name"`
	BirthDate    string   `json:"birth_date,omitempty"`
	Age          FlexInt  `json:"age,omitempty"`
	Grade        string   `json:"grade,omitempty"`
	SpecialNeeds []string `json:"special_needs"`
}

type DetailedReport struct {
	CognitiveDevelopment   string              `json:"cognitive_development"`
	AttentionConcentration string              `json:"attention_concentration"`
	Socioemotional         string              `json:"socioemotional"`
	Communication          string              `json:"communication"`
	Sources                map[string][]string `json:"sources,omitempty"`
}

type EducationalGoals struct {
	ShortTerm  []string `json:"short_term"`
	MediumTerm []string `json:"medium_term"`
	LongTerm   []string `json:"long_term"`
}

type MethodologicalStrategies struct {
	ContentPresentation []string `json:"content_presentation"`
	Activities          []string `json:"activities"`
	Environment         []string `json:"environment"`
}

type AssistiveResources struct {
	Required    []string `json:"required"`
	Recommended []string `json:"recommended"`
}

type EvaluationCriteria struct {
	Adaptations            []string           `json:"adaptations"`
	DiversifiedInstruments map[string]FlexInt `json:"diversified_instruments"`
	EvaluationFocus        string             `json:"evaluation_focus"`
}

// MaterialMetadata describes an uploaded teaching material.
type MaterialMetadata struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Grade   string `json:"grade"`
}

type AdaptationResult struct {
	OriginalAnalysis      OriginalAnalysis      `json:"original_analysis"`
	AdaptationsApplied    []string              `json:"adaptations_applied"`
	AdaptedContent        AdaptedContent        `json:"adapted_content_structure"`
	CompatibilityScore    int                   `json:"pei_compatibility_score"`
	CompatibilityAnalysis CompatibilityAnalysis `json:"compatibility_analysis"`
	TeacherNotes          []string              `json:"teacher_notes,omitempty"`
	Warnings              []string              `json:"warnings,omitempty"`
	OriginalMetadata      MaterialMetadata      `json:"original_metadata"`
	GeneratedAt           time.Time             `json:"generated_at"`
}

type OriginalAnalysis struct {
	ContentType        string   `json:"content_type"`
	ComplexityLevel    string   `json:"complexity_level"`
	MainConcepts       []string `json:"main_concepts"`
	LearningObjectives []string `json:"learning_objectives"`
	EstimatedTime      FlexInt  `json:"estimated_time"`
}

type AdaptedContent struct {
	Title                string             `json:"title"`
	Introduction         Introduction       `json:"introduction"`
	Blocks               []ContentBlock     `json:"blocks"`
	PracticeActivities   []PracticeActivity `json:"practice_activities,omitempty"`
	Summary              string             `json:"summary"`
	EvaluationSuggestion string             `json:"evaluation_suggestion"`
}

type Introduction struct {
	Hook      string `json:"hook"`
	Objective string `json:"objective"`
}

// ContentBlock is one time-boxed segment of adapted content.
type ContentBlock struct {
	BlockNumber     FlexInt  `json:"block_number"`
	DurationMinutes FlexInt  `json:"duration_minutes"`
	Title           string   `json:"title"`
	ContentType     string   `json:"content_type"`
	Content         string   `json:"content"`
	VisualAids      []string `json:"visual_aids,omitempty"`
	Activity        string   `json:"activity,omitempty"`
	Pause           FlexBool `json:"pause"`
}

type PracticeActivity struct {
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	DurationMinutes FlexInt  `json:"duration_minutes"`
	Instructions    []string `json:"instructions"`
	MaterialsNeeded []string `json:"materials_needed,omitempty"`
}

type CompatibilityAnalysis struct {
	StrengthsAddressed []string `json:"strengths_addressed"`
	NeedsMet           []string `json:"needs_met"`
	StrategiesApplied  []string `json:"strategies_applied"`
}

// FlexInt accepts JSON numbers and numeric strings ("30", "30%", "15 min").
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, ok := leadingNumber(s)
		if !ok {
			if strings.TrimSpace(s) == "" {
				*f = 0
				return nil
			}
			return fmt.Errorf("not a number: %q", s)
		}
		*f = FlexInt(math.Round(n))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexInt(math.Round(n))
	return nil
}

// FlexBool accepts JSON booleans and yes/no words in Portuguese or English.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = false
		return nil
	}
	if b[0] != '"' {
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "sim"), strings.HasPrefix(s, "yes"), s == "true", s == "s", s == "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' || (end == 0 && c == '-') {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
