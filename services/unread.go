package services

import (
	"errors"
	"time"

	"teamops-server/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Unread counts are recomputed from the message store on every request rather
// than cached, so they are always consistent with the latest writes.

// ChannelUnreadCount counts non-deleted messages strictly newer than the
// caller's read cursor. No membership row or a nil cursor means never read,
// so everything counts.
func ChannelUnreadCount(db *gorm.DB, channelID, userID uint) (int64, error) {
	var member models.ChannelMember
	var cursor *time.Time
	err := db.Where("channel_id = ? AND user_id = ?", channelID, userID).First(&member).Error
	if err == nil {
		cursor = member.LastReadAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return countChannelMessagesAfter(db, channelID, cursor)
}

func countChannelMessagesAfter(db *gorm.DB, channelID uint, cursor *time.Time) (int64, error) {
	q := db.Model(&models.Message{}).
		Where("channel_id = ? AND deleted_at IS NULL", channelID)
	if cursor != nil {
		q = q.Where("created_at > ?", *cursor)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ConversationUnreadCount applies the same cursor rule to a direct
// conversation, counting only the other participant's messages.
func ConversationUnreadCount(db *gorm.DB, dmID, userID uint) (int64, error) {
	var participant models.DirectMessageParticipant
	var cursor *time.Time
	err := db.Where("direct_message_id = ? AND user_id = ?", dmID, userID).First(&participant).Error
	if err == nil {
		cursor = participant.LastReadAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	q := db.Model(&models.DirectMessageContent{}).
		Where("direct_message_id = ? AND sender_id <> ?", dmID, userID)
	if cursor != nil {
		q = q.Where("created_at > ?", *cursor)
	}
	var n int64
	err = q.Count(&n).Error
	return n, err
}

type ChannelUnread struct {
	ChannelID uint  `json:"channelID"`
	Count     int64 `json:"count"`
}

type ConversationUnread struct {
	DirectMessageID uint  `json:"directMessageID"`
	Count           int64 `json:"count"`
}

type UnreadSummary struct {
	Channels      []ChannelUnread      `json:"channels"`
	Conversations []ConversationUnread `json:"conversations"`
	Total         int64                `json:"total"`
}

// UnreadSummaryFor aggregates unread counts across every channel and
// conversation the user belongs to, for badge display.
func UnreadSummaryFor(db *gorm.DB, userID uint) (*UnreadSummary, error) {
	summary := &UnreadSummary{
		Channels:      []ChannelUnread{},
		Conversations: []ConversationUnread{},
	}

	var memberships []models.ChannelMember
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	for _, m := range memberships {
		n, err := countChannelMessagesAfter(db, m.ChannelID, m.LastReadAt)
		if err != nil {
			return nil, err
		}
		summary.Channels = append(summary.Channels, ChannelUnread{ChannelID: m.ChannelID, Count: n})
		summary.Total += n
	}

	var participations []models.DirectMessageParticipant
	if err := db.Where("user_id = ?", userID).Find(&participations).Error; err != nil {
		return nil, err
	}
	for _, p := range participations {
		n, err := ConversationUnreadCount(db, p.DirectMessageID, userID)
		if err != nil {
			return nil, err
		}
		summary.Conversations = append(summary.Conversations, ConversationUnread{DirectMessageID: p.DirectMessageID, Count: n})
		summary.Total += n
	}

	return summary, nil
}

// MarkChannelRead upserts the read cursor to now, guarded by the unique
// (channel_id, user_id) index. Concurrent calls are last-write-wins and safe
// to repeat on every poll.
func MarkChannelRead(db *gorm.DB, channelID, userID uint, at time.Time) error {
	member := models.ChannelMember{ChannelID: channelID, UserID: userID, LastReadAt: &at}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_read_at": at, "updated_at": at}),
	}).Create(&member).Error
}

// MarkConversationRead stamps the participant's cursor; participant rows are
// created with the conversation, never implicitly.
func MarkConversationRead(db *gorm.DB, dmID, userID uint, at time.Time) error {
	return db.Model(&models.DirectMessageParticipant{}).
		Where("direct_message_id = ? AND user_id = ?", dmID, userID).
		Update("last_read_at", at).Error
}
