package students

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RespondentLink      = "link"
	RespondentAccess    = "access"
	RespondentCompleted = "completed"
)

// Respondent is a professional or family member asked to answer a plan's
// survey. Its ID is the participant id used in survey links.
type Respondent struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_id"`
	PEIID     *uuid.UUID `gorm:"type:uuid;column:pei_id;index" json:"pei_id,omitempty"`
	Role      string     `gorm:"column:role;not null" json:"role"`
	Name      string     `gorm:"column:name;not null" json:"name"`
	Email     string     `gorm:"column:email" json:"email,omitempty"`
	Phone     string     `gorm:"column:phone" json:"phone,omitempty"`
	Status    string     `gorm:"column:status;not null;index" json:"status"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Respondent) TableName() string { return "respondent" }

func (r *Respondent) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
