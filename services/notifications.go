package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"teamops-server/models"

	"gorm.io/gorm"
)

// Notification reasons reported to the sink.
const (
	NotifyMention     = "mention"
	NotifyThreadReply = "thread_reply"
)

// Notification is a single local notification decision. It is best-effort and
// in-memory only: the detector keeps no durable log.
type Notification struct {
	MessageID  uint   `json:"messageID"`
	ChannelID  uint   `json:"channelID"`
	Reason     string `json:"reason"`
	SenderName string `json:"senderName"`
	Preview    string `json:"preview"`
}

// Sink receives notification decisions. The UI layer implements it (sound,
// toast, badge) so detection logic stays free of playback state.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Source yields messages newer than since across all channels the user
// belongs to, ascending by creation time, with Sender and Parent populated.
type Source interface {
	MessagesSince(ctx context.Context, userID uint, since time.Time) ([]models.Message, error)
}

// Identity is the current user as mention detection sees them.
type Identity struct {
	ID    uint
	Name  string
	Email string
}

// Detector is the cooperative poller that classifies newly observed messages
// and fires local notifications at most once per message. State lives in
// memory and is lost on restart.
type Detector struct {
	self     Identity
	source   Source
	sink     Sink
	interval time.Duration

	mu      sync.Mutex
	since   time.Time
	seen    map[uint]struct{}
	threads map[uint]struct{}
	viewing uint // channel currently on screen, 0 when none
}

func NewDetector(self Identity, source Source, sink Sink, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Detector{
		self:     self,
		source:   source,
		sink:     sink,
		interval: interval,
		since:    time.Now(),
		seen:     make(map[uint]struct{}),
		threads:  make(map[uint]struct{}),
	}
}

// SetViewing suppresses notifications for the channel the user is actively
// looking at. Matches in other channels still fire.
func (d *Detector) SetViewing(channelID uint) {
	d.mu.Lock()
	d.viewing = channelID
	d.mu.Unlock()
}

func (d *Detector) ClearViewing() {
	d.SetViewing(0)
}

// Run polls at the configured interval until the context is cancelled. Poll
// errors are dropped: the next tick retries naturally.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll performs one sweep: fetch messages newer than the watermark, classify
// each, and notify through the sink.
func (d *Detector) Poll(ctx context.Context) error {
	d.mu.Lock()
	since := d.since
	d.mu.Unlock()

	msgs, err := d.source.MessagesSince(ctx, d.self.ID, since)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range msgs {
		m := &msgs[i]
		if m.CreatedAt.After(d.since) {
			d.since = m.CreatedAt
		}
		if m.SenderID == d.self.ID {
			d.trackOwnMessage(m)
			continue
		}
		if m.Deleted() {
			continue
		}
		reason, ok := d.classify(m)
		if !ok {
			continue
		}
		if _, dup := d.seen[m.ID]; dup {
			continue
		}
		// seen is recorded even when the viewing suppression applies: the
		// user had the channel open, so the message never fires later
		d.seen[m.ID] = struct{}{}
		if d.viewing != 0 && d.viewing == m.ChannelID {
			continue
		}
		d.sink.Notify(Notification{
			MessageID:  m.ID,
			ChannelID:  m.ChannelID,
			Reason:     reason,
			SenderName: m.Sender.DisplayName(),
			Preview:    preview(m.Content),
		})
	}
	return nil
}

// trackOwnMessage records thread participation: authoring a top-level message
// or replying into a thread makes later replies there relevant.
func (d *Detector) trackOwnMessage(m *models.Message) {
	if m.ParentID == nil {
		d.threads[m.ID] = struct{}{}
	} else {
		d.threads[*m.ParentID] = struct{}{}
	}
}

func (d *Detector) classify(m *models.Message) (string, bool) {
	content := strings.ToLower(m.Content)
	if d.self.Name != "" && strings.Contains(content, "@"+strings.ToLower(d.self.Name)) {
		return NotifyMention, true
	}
	if d.self.Email != "" && strings.Contains(content, "@"+strings.ToLower(d.self.Email)) {
		return NotifyMention, true
	}
	if m.ParentID != nil {
		if _, ok := d.threads[*m.ParentID]; ok {
			return NotifyThreadReply, true
		}
		// parent may predate the watermark; the source preloads it
		if m.Parent != nil && m.Parent.SenderID == d.self.ID {
			d.threads[*m.ParentID] = struct{}{}
			return NotifyThreadReply, true
		}
	}
	return "", false
}

func preview(content string) string {
	if len(content) > 120 {
		return content[:120]
	}
	return content
}

// ChannelSource is the GORM-backed Source: messages newer than since in every
// channel the user is a member of.
type ChannelSource struct {
	DB *gorm.DB
}

func (s *ChannelSource) MessagesSince(ctx context.Context, userID uint, since time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Joins("JOIN channel_members cm ON cm.channel_id = messages.channel_id AND cm.user_id = ?", userID).
		Where("messages.created_at > ?", since).
		Preload("Sender").
		Preload("Parent").
		Order("messages.created_at ASC, messages.id ASC").
		Find(&msgs).Error
	return msgs, err
}
