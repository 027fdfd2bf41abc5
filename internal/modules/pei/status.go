package pei

type PlanStatus string

const (
	PlanDraft        PlanStatus = "draft"
	PlanInCollection PlanStatus = "in_collection"
	PlanInReview     PlanStatus = "in_review"
	PlanCompleted    PlanStatus = "completed"
	PlanFailed       PlanStatus = "failed"
	// PlanApproved keeps the stored value used by existing records.
	PlanApproved PlanStatus = "concluido"
	PlanExpired  PlanStatus = "expired"
)

type AIState string

const (
	AIPending    AIState = "pending"
	AIProcessing AIState = "processing"
	AICompleted  AIState = "completed"
	AIFailed     AIState = "failed"
)

type MaterialStatus string

const (
	MaterialProcessing MaterialStatus = "processing"
	MaterialCompleted  MaterialStatus = "completed"
	MaterialError      MaterialStatus = "error"
)

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanDraft:        {PlanInCollection},
	PlanInCollection: {PlanInReview},
	PlanInReview:     {PlanCompleted, PlanFailed},
	PlanCompleted:    {PlanApproved, PlanInReview},
	PlanFailed:       {PlanInReview},
	PlanApproved:     {PlanExpired, PlanInReview},
	PlanExpired:      {PlanInReview},
}

// CanTransition reports whether a plan may move from one status to another.
// Only an explicit regeneration moves a plan back, and it always re-enters at in_review.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	for _, next := range planTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// RegenerableFrom lists the statuses from which generation may be (re)started.
func RegenerableFrom() []PlanStatus {
	var out []PlanStatus
	for _, from := range []PlanStatus{PlanDraft, PlanInCollection, PlanInReview, PlanCompleted, PlanFailed, PlanApproved, PlanExpired} {
		if from.CanTransition(PlanInReview) {
			out = append(out, from)
		}
	}
	return out
}

func (s PlanStatus) Valid() bool {
	_, ok := planTransitions[s]
	return ok
}

func (s MaterialStatus) CanTransition(to MaterialStatus) bool {
	switch s {
	case MaterialProcessing:
		return to == MaterialCompleted || to == MaterialError
	case MaterialCompleted, MaterialError:
		return to == MaterialProcessing
	default:
		return false
	}
}

func (s MaterialStatus) Terminal() bool {
	return s == MaterialCompleted || s == MaterialError
}

func Strings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
