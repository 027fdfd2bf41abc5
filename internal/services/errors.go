package services

import (
	"errors"
	"net/http"

	"github.com/yungbote/peai-backend/internal/modules/pei"
	"github.com/yungbote/peai-backend/internal/platform/apierr"
)

var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrMaterialNotFound = errors.New("material not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyActive = errors.New("a job of this type is already queued or running for this entity")
	ErrPlanExists       = errors.New("student already has a plan")
	ErrNoApprovedPlan   = errors.New("student has no approved plan")
)

// toAPIError maps core and service errors onto HTTP-facing errors. Errors
// that already carry an apierr.Error pass through unchanged.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return err
	}
	var ve *pei.ValidationError
	var pe *pei.PreconditionError
	switch {
	case errors.As(err, &ve):
		return apierr.BadRequest("validation_failed", err)
	case errors.Is(err, pei.ErrPlanNotFound):
		return apierr.NotFound("pei_not_found", err)
	case errors.Is(err, pei.ErrParticipantNotFound):
		return apierr.NotFound("participant_not_found", err)
	case errors.Is(err, ErrStudentNotFound):
		return apierr.NotFound("student_not_found", err)
	case errors.Is(err, ErrMaterialNotFound):
		return apierr.NotFound("material_not_found", err)
	case errors.Is(err, ErrJobNotFound):
		return apierr.NotFound("job_not_found", err)
	case errors.Is(err, pei.ErrDuplicateResponse):
		return apierr.Conflict("duplicate_response", err)
	case errors.Is(err, ErrJobAlreadyActive):
		return apierr.Conflict("job_already_active", err)
	case errors.Is(err, ErrPlanExists):
		return apierr.Conflict("pei_already_exists", err)
	case errors.As(err, &pe):
		return apierr.New(http.StatusUnprocessableEntity, "precondition_failed", err)
	case pei.IsGenerationError(err):
		return apierr.New(http.StatusBadGateway, "generation_failed", err)
	}
	var re *pei.RenderingError
	if errors.As(err, &re) {
		return apierr.Internal("rendering_failed", err)
	}
	return apierr.Internal("internal_error", err)
}
