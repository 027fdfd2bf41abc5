package material_adapt

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/peai-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	materialID, ok := jc.PayloadUUID("material_id")
	if !ok || materialID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing material_id"))
		return nil
	}

	jc.Progress("adapt", 10, "Adaptando material")
	m, err := p.adapter.RunAdaptation(jc.Ctx, materialID)
	if err != nil {
		jc.Fail("adapt", err)
		return nil
	}

	result := map[string]any{"material_id": materialID.String()}
	if m != nil {
		result["status"] = m.Status
		result["has_pdf"] = m.PDFPath != ""
	}
	jc.Succeed("done", result)
	return nil
}
