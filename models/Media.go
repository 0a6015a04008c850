package models

import "time"

// Media owner resource types for confirm/view authorization.
const (
	MediaOwnerTask    = "task"
	MediaOwnerMessage = "message"
)

// Media is the metadata row for a confirmed attachment upload. Until confirm,
// only an object-store key reservation exists and no row is written. Exactly
// one of TaskID/MessageID is set (mutually exclusive by convention).
type Media struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	StorageKey string `json:"storageKey" gorm:"size:512;uniqueIndex;not null"`
	FileName   string `json:"fileName" gorm:"size:256"`
	MimeType   string `json:"mimeType" gorm:"size:128"`
	SizeBytes  int64  `json:"sizeBytes"`

	UploaderID uint `json:"uploaderID" gorm:"not null;index"`
	Uploader   User `json:"-" gorm:"foreignKey:UploaderID"`

	TaskID    *uint `json:"taskID" gorm:"index"`
	MessageID *uint `json:"messageID" gorm:"index"`

	CreatedAt time.Time `json:"createdAt"`
}
