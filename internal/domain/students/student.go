package students

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StudentPendingForm = "pending_form"
	StudentResendForm  = "resend_form"
	StudentActive      = "active"
)

type Student struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Status    string    `gorm:"column:status;not null;index" json:"status"`
	HasAccess bool      `gorm:"column:has_access;not null;default:false" json:"has_access"`
	BirthDate string    `gorm:"column:birth_date" json:"birth_date,omitempty"`
	Grade     string    `gorm:"column:grade" json:"grade,omitempty"`
	School    string    `gorm:"column:school" json:"school,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Student) TableName() string { return "student" }

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
