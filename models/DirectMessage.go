package models

import (
	"fmt"
	"time"
)

// DirectMessage is a pairwise conversation. PairKey is the unordered pair
// "minID:maxID" with a unique index, so two racing find-or-create calls for
// the same pair collapse onto one row.
type DirectMessage struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	PairKey string `json:"-" gorm:"size:48;uniqueIndex"`

	Participants []DirectMessageParticipant `json:"participants" gorm:"foreignKey:DirectMessageID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DirectMessagePairKey normalizes an unordered user pair to its conversation key.
func DirectMessagePairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

type DirectMessageParticipant struct {
	ID              uint `json:"id" gorm:"primaryKey"`
	DirectMessageID uint `json:"directMessageID" gorm:"not null;uniqueIndex:idx_dm_participant"`
	UserID          uint `json:"userID" gorm:"not null;uniqueIndex:idx_dm_participant"`
	User            User `json:"user" gorm:"foreignKey:UserID"`

	LastReadAt *time.Time `json:"lastReadAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DirectMessageContent struct {
	ID              uint `json:"id" gorm:"primaryKey"`
	DirectMessageID uint `json:"directMessageID" gorm:"not null;index"`

	SenderID uint `json:"senderID" gorm:"not null;index"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID"`

	Content string `json:"content" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}
