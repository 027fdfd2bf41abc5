package services

import (
	"encoding/json"

	"gorm.io/datatypes"

	types "github.com/yungbote/peai-backend/internal/domain"
	"github.com/yungbote/peai-backend/internal/modules/pei"
)

func studentInfo(s *types.Student, plan *types.PEI) pei.StudentInfo {
	info := pei.StudentInfo{}
	if s != nil {
		info.Name = s.Name
		info.BirthDate = s.BirthDate
		info.Grade = s.Grade
	}
	if plan != nil {
		info.SpecialNeeds = append([]string(nil), plan.SpecialNeeds...)
		info.HasDiagnosis = plan.HasDiagnosis
	}
	return info
}

func coreResponses(rows []*types.ProfessionalResponse) []pei.ProfessionalResponse {
	out := make([]pei.ProfessionalResponse, 0, len(rows))
	for _, r := range rows {
		answers := map[string]any{}
		if len(r.Answers) > 0 {
			_ = json.Unmarshal(r.Answers, &answers)
		}
		out = append(out, pei.ProfessionalResponse{
			ProfessionalID: r.ProfessionalID.String(),
			Role:           r.ProfessionalType,
			Name:           r.ProfessionalName,
			Answers:        answers,
			SubmittedAt:    r.SubmittedAt,
		})
	}
	return out
}

// planDocument decodes a stored plan document. A plan without one yields nil.
func planDocument(p *types.PEI) (*pei.PlanDocument, error) {
	if p == nil || len(p.Document) == 0 || string(p.Document) == "null" {
		return nil, nil
	}
	var doc pei.PlanDocument
	if err := json.Unmarshal(p.Document, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func adaptationResult(m *types.AdaptedMaterial) (*pei.AdaptationResult, error) {
	if m == nil || len(m.Result) == 0 || string(m.Result) == "null" {
		return nil, nil
	}
	var res pei.AdaptationResult
	if err := json.Unmarshal(m.Result, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
