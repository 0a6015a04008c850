package models

import "time"

// Message is an append-only channel message. ParentID supports one-level
// threads (a reply's parent is always a top-level message). Deletion is soft:
// content is cleared and DeletedAt stamped so the row stays resolvable as a
// thread parent.
type Message struct {
	ID        uint     `json:"id" gorm:"primaryKey"`
	ChannelID uint     `json:"channelID" gorm:"not null;index"`
	ParentID  *uint    `json:"parentID" gorm:"index"`
	Parent    *Message `json:"-" gorm:"foreignKey:ParentID"`

	SenderID uint `json:"senderID" gorm:"not null;index"`
	Sender   User `json:"sender" gorm:"foreignKey:SenderID"`

	Content       string `json:"content" gorm:"type:text"`
	AttachmentURL string `json:"attachmentURL" gorm:"size:512"`

	CreatedAt time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"index"`
}

func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// PinnedMessage records a pin over the message store. MessageID is unique so a
// message can be pinned at most once; ChannelID is denormalized for listing.
type PinnedMessage struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	MessageID uint    `json:"messageID" gorm:"not null;uniqueIndex"`
	Message   Message `json:"message" gorm:"foreignKey:MessageID"`
	ChannelID uint    `json:"channelID" gorm:"not null;index"`

	PinnedByID uint `json:"pinnedByID" gorm:"not null"`
	PinnedBy   User `json:"pinnedBy" gorm:"foreignKey:PinnedByID"`

	PinnedAt time.Time `json:"pinnedAt" gorm:"index"`
}
