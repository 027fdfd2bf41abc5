package domain

import (
	"github.com/yungbote/peai-backend/internal/domain/jobs"
	"github.com/yungbote/peai-backend/internal/domain/materials"
	"github.com/yungbote/peai-backend/internal/domain/plans"
	"github.com/yungbote/peai-backend/internal/domain/students"
)

const (
	StudentPendingForm = students.StudentPendingForm
	StudentResendForm  = students.StudentResendForm
	StudentActive      = students.StudentActive

	RespondentLink      = students.RespondentLink
	RespondentAccess    = students.RespondentAccess
	RespondentCompleted = students.RespondentCompleted

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)

type Student = students.Student
type Respondent = students.Respondent

type PEI = plans.PEI
type Professional = plans.Professional
type ProfessionalResponse = plans.ProfessionalResponse

type AdaptedMaterial = materials.AdaptedMaterial

type JobRun = jobs.JobRun

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&Student{},
		&Respondent{},
		&PEI{},
		&ProfessionalResponse{},
		&AdaptedMaterial{},
		&JobRun{},
	}
}
