package plans

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Professional is one roster entry stored on the plan. ID matches the
// Respondent row created for it.
type Professional struct {
	ID    uuid.UUID `json:"id"`
	Type  string    `json:"type"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

type PEI struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`
	Status    string    `gorm:"column:status;not null;index" json:"status"`
	AIState   string    `gorm:"column:ai_state;not null;index" json:"ai_processing_status"`

	SpecialNeeds        datatypes.JSONSlice[string]       `gorm:"column:special_needs" json:"special_needs"`
	HasDiagnosis        bool                              `gorm:"column:has_diagnosis;not null;default:false" json:"has_diagnosis"`
	InitialObservations string                            `gorm:"column:initial_observations" json:"initial_observations,omitempty"`
	Professionals       datatypes.JSONSlice[Professional] `gorm:"column:professionals" json:"professionals"`
	TotalProfessionals  int                               `gorm:"column:total_professionals;not null;default:0" json:"total_professionals"`

	Document        datatypes.JSON `gorm:"column:document" json:"document,omitempty"`
	ConfidenceScore *int           `gorm:"column:confidence_score" json:"ai_confidence_score,omitempty"`
	AIError         string         `gorm:"column:ai_error" json:"ai_error,omitempty"`
	AIProcessedAt   *time.Time     `gorm:"column:ai_processed_at" json:"ai_processed_at,omitempty"`
	GenerationCount int            `gorm:"column:generation_count;not null;default:0" json:"generation_count"`

	ApprovedAt *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ExpiresAt  *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	// ExpiryNotifiedAt is set once the renewal notice for the current approval
	// has gone out.
	ExpiryNotifiedAt *time.Time `gorm:"column:expiry_notified_at" json:"expiry_notified_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PEI) TableName() string { return "pei" }

func (p *PEI) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
