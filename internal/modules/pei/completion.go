package pei

import "math"

const (
	CompletionComplete   = "complete"
	CompletionInProgress = "in_progress"
)

type CompletionStatus struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Pending    int     `json:"pending"`
	Percentage float64 `json:"percentage"`
	IsComplete bool    `json:"is_complete"`
	Status     string  `json:"status"`
}

func CheckCompletion(total int, responses []ProfessionalResponse) CompletionStatus {
	return CheckCompletionCount(total, len(responses))
}

// CheckCompletionCount is CheckCompletion for callers that only hold a row count.
// A zero target is complete only while nothing has been received.
func CheckCompletionCount(total, received int) CompletionStatus {
	if total < 0 {
		total = 0
	}
	if received < 0 {
		received = 0
	}
	pending := total - received
	if pending < 0 {
		pending = 0
	}
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(received)/float64(total)*1000) / 10
		if pct > 100 {
			pct = 100
		}
	}
	complete := received >= total
	if total == 0 {
		complete = received == 0
	}
	st := CompletionInProgress
	if complete {
		st = CompletionComplete
	}
	return CompletionStatus{
		Total:      total,
		Completed:  received,
		Pending:    pending,
		Percentage: pct,
		IsComplete: complete,
		Status:     st,
	}
}
