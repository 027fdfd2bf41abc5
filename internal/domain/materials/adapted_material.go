package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AdaptedMaterial struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"student_id"`
	PEIID            *uuid.UUID `gorm:"type:uuid;column:pei_id;index" json:"pei_id,omitempty"`
	OriginalFilename string     `gorm:"column:original_filename;not null" json:"original_filename"`
	OriginalContent  string     `gorm:"column:original_content" json:"-"`

	Title   string `gorm:"column:title;not null" json:"title"`
	Subject string `gorm:"column:subject" json:"subject"`
	Grade   string `gorm:"column:grade" json:"grade"`

	Status  string         `gorm:"column:status;not null;index" json:"status"`
	Result  datatypes.JSON `gorm:"column:result" json:"adaptation_result,omitempty"`
	PDFPath string         `gorm:"column:pdf_path" json:"adapted_pdf_path,omitempty"`
	Error   string         `gorm:"column:error" json:"error,omitempty"`

	UploadedAt  time.Time      `gorm:"column:uploaded_at;not null;index" json:"uploaded_at"`
	ProcessedAt *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AdaptedMaterial) TableName() string { return "adapted_material" }

func (m *AdaptedMaterial) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
