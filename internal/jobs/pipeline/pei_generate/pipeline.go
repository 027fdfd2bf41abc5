package pei_generate

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/peai-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	planID, ok := jc.PayloadUUID("pei_id")
	if !ok || planID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing pei_id"))
		return nil
	}
	total := payloadInt(jc.Payload()["total"])

	jc.Progress("synthesize", 10, "Gerando PEI")
	plan, err := p.gen.RunGeneration(jc.Ctx, planID, total)
	if err != nil {
		jc.Fail("synthesize", err)
		return nil
	}

	result := map[string]any{"pei_id": planID.String()}
	if plan != nil {
		result["status"] = plan.Status
		if plan.ConfidenceScore != nil {
			result["confidence_score"] = *plan.ConfidenceScore
		}
	}
	jc.Succeed("done", result)
	return nil
}

// payloadInt reads JSON numbers, which decode as float64.
func payloadInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n))
	case int:
		return n
	default:
		return 0
	}
}
