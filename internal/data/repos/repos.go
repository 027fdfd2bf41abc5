package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos/jobs"
	"github.com/yungbote/peai-backend/internal/data/repos/materials"
	"github.com/yungbote/peai-backend/internal/data/repos/plans"
	"github.com/yungbote/peai-backend/internal/data/repos/students"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type StudentRepo = students.StudentRepo
type RespondentRepo = students.RespondentRepo

type PEIRepo = plans.PEIRepo
type PEIFilter = plans.PEIFilter
type ResponseRepo = plans.ResponseRepo

type AdaptedMaterialRepo = materials.AdaptedMaterialRepo

type JobRunRepo = jobs.JobRunRepo

// Repos bundles every repository over one database handle.
type Repos struct {
	Students    StudentRepo
	Respondents RespondentRepo
	PEIs        PEIRepo
	Responses   ResponseRepo
	Materials   AdaptedMaterialRepo
	JobRuns     JobRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Students:    students.NewStudentRepo(db, log),
		Respondents: students.NewRespondentRepo(db, log),
		PEIs:        plans.NewPEIRepo(db, log),
		Responses:   plans.NewResponseRepo(db, log),
		Materials:   materials.NewAdaptedMaterialRepo(db, log),
		JobRuns:     jobs.NewJobRunRepo(db, log),
	}
}
