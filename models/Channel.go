package models

import "time"

// Channel visibility and posting-policy values.
const (
	ChannelPublic  = "public"
	ChannelPrivate = "private"

	ChannelTypeNormal       = "normal"
	ChannelTypeAnnouncement = "announcement"
)

// UncategorizedSlug is the reserved slug of the synthetic bucket that receives
// channels when their category is deleted.
const UncategorizedSlug = "uncategorized"

type ChannelCategory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:80;not null"`
	Slug      string    `json:"slug" gorm:"size:96;uniqueIndex"`
	SortOrder int       `json:"sortOrder" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Channel is a named group-messaging space. type=announcement restricts
// posting to elevated roles but not reading.
type Channel struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Name        string           `json:"name" gorm:"size:80;not null"`
	Slug        string           `json:"slug" gorm:"size:96;uniqueIndex"`
	Description string           `json:"description" gorm:"size:512"`
	Visibility  string           `json:"visibility" gorm:"size:16;default:public;index"` // public | private
	Type        string           `json:"type" gorm:"size:16;default:normal;index"`       // normal | announcement
	CategoryID  *uint            `json:"categoryID" gorm:"index"`
	Category    *ChannelCategory `json:"category" gorm:"foreignKey:CategoryID"`

	CreatedByID uint `json:"createdByID" gorm:"index"`
	CreatedBy   User `json:"-" gorm:"foreignKey:CreatedByID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChannelMember tracks membership and the per-user read cursor. Created
// implicitly on first read/post/open; LastReadAt nil means never read.
type ChannelMember struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	ChannelID uint `json:"channelID" gorm:"not null;uniqueIndex:idx_channel_member"`
	UserID    uint `json:"userID" gorm:"not null;uniqueIndex:idx_channel_member"`
	User      User `json:"user" gorm:"foreignKey:UserID"`

	LastReadAt *time.Time `json:"lastReadAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
