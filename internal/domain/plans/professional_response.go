package plans

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProfessionalResponse is immutable once stored. The unique index enforces
// one response per participant per plan.
type ProfessionalResponse struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PEIID            uuid.UUID      `gorm:"type:uuid;column:pei_id;not null;uniqueIndex:idx_response_pei_professional" json:"pei_id"`
	ProfessionalID   uuid.UUID      `gorm:"type:uuid;column:professional_id;not null;uniqueIndex:idx_response_pei_professional" json:"professional_id"`
	ProfessionalType string         `gorm:"column:professional_type;not null" json:"professional_type"`
	ProfessionalName string         `gorm:"column:professional_name;not null" json:"professional_name"`
	Answers          datatypes.JSON `gorm:"column:answers;not null" json:"responses"`
	SubmittedAt      time.Time      `gorm:"column:submitted_at;not null;index" json:"submitted_at"`
}

func (ProfessionalResponse) TableName() string { return "professional_response" }

func (r *ProfessionalResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
