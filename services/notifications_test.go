package services

import (
	"context"
	"testing"
	"time"

	"teamops-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueSource replays canned batches, one per poll, ignoring the watermark so
// overlapping fetches can be simulated.
type queueSource struct {
	batches [][]models.Message
}

func (s *queueSource) MessagesSince(_ context.Context, _ uint, _ time.Time) ([]models.Message, error) {
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

type capturedSink struct {
	notifications []Notification
}

func (s *capturedSink) Notify(n Notification) { s.notifications = append(s.notifications, n) }

func user(id uint, first, last, email string) models.User {
	u := models.User{FirstName: first, LastName: last, Email: email}
	u.ID = id
	return u
}

func msg(id, channelID, senderID uint, content string, at time.Time) models.Message {
	return models.Message{ID: id, ChannelID: channelID, SenderID: senderID, Content: content, CreatedAt: at}
}

var alice = Identity{ID: 1, Name: "Alice Hart", Email: "alice@example.com"}

func TestDetectorMentionByNameAndEmail(t *testing.T) {
	now := time.Now()
	bob := user(2, "Bob", "Klein", "bob@example.com")

	m1 := msg(100, 5, 2, "hello @alice hart, check this", now)
	m1.Sender = bob

	src := &queueSource{batches: [][]models.Message{{m1}}}
	sink := &capturedSink{}
	d := NewDetector(alice, src, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, NotifyMention, sink.notifications[0].Reason)
	assert.Equal(t, uint(100), sink.notifications[0].MessageID)
	assert.Equal(t, "Bob Klein", sink.notifications[0].SenderName)
}

func TestDetectorMentionCaseInsensitiveEmail(t *testing.T) {
	now := time.Now()
	m := msg(200, 5, 2, "FYI @Alice@Example.com please review", now)

	sink := &capturedSink{}
	d := NewDetector(alice, &queueSource{batches: [][]models.Message{{m}}}, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, NotifyMention, sink.notifications[0].Reason)
}

func TestDetectorNeverFiresForOtherUsers(t *testing.T) {
	now := time.Now()
	m := msg(300, 5, 2, "hello @alice hart, check this", now)

	carol := Identity{ID: 3, Name: "Carol Diaz", Email: "carol@example.com"}
	sink := &capturedSink{}
	d := NewDetector(carol, &queueSource{batches: [][]models.Message{{m}}}, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	assert.Empty(t, sink.notifications)
}

func TestDetectorSelfAuthoredSuppressed(t *testing.T) {
	now := time.Now()
	m := msg(400, 5, 1, "note to self @alice hart", now)

	sink := &capturedSink{}
	d := NewDetector(alice, &queueSource{batches: [][]models.Message{{m}}}, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	assert.Empty(t, sink.notifications)
}

func TestDetectorDedupAcrossPolls(t *testing.T) {
	now := time.Now()
	m := msg(500, 5, 2, "reminder @alice hart", now)

	// the same message shows up in three consecutive fetch windows
	src := &queueSource{batches: [][]models.Message{{m}, {m}, {m}}}
	sink := &capturedSink{}
	d := NewDetector(alice, src, sink, time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Poll(context.Background()))
	}
	assert.Len(t, sink.notifications, 1)
}

func TestDetectorViewingSuppression(t *testing.T) {
	now := time.Now()
	inView := msg(600, 5, 2, "hey @alice hart", now)
	elsewhere := msg(601, 9, 2, "also @alice hart", now.Add(time.Second))

	src := &queueSource{batches: [][]models.Message{{inView, elsewhere}, {inView}}}
	sink := &capturedSink{}
	d := NewDetector(alice, src, sink, time.Second)
	d.SetViewing(5)

	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, uint(601), sink.notifications[0].MessageID)

	// leaving the channel does not resurrect a message observed while viewing
	d.ClearViewing()
	require.NoError(t, d.Poll(context.Background()))
	assert.Len(t, sink.notifications, 1)
}

func TestDetectorThreadReplyToOwnParent(t *testing.T) {
	now := time.Now()
	own := msg(700, 5, 1, "starting a thread", now)
	parentID := uint(700)
	reply := msg(701, 5, 2, "replying with no mention", now.Add(time.Second))
	reply.ParentID = &parentID

	src := &queueSource{batches: [][]models.Message{{own}, {reply}}}
	sink := &capturedSink{}
	d := NewDetector(alice, src, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, NotifyThreadReply, sink.notifications[0].Reason)
}

func TestDetectorThreadReplyViaPreloadedParent(t *testing.T) {
	now := time.Now()
	parentID := uint(800)
	parent := msg(800, 5, 1, "old thread root", now.Add(-time.Hour))
	reply := msg(801, 5, 2, "late reply", now)
	reply.ParentID = &parentID
	reply.Parent = &parent

	sink := &capturedSink{}
	d := NewDetector(alice, &queueSource{batches: [][]models.Message{{reply}}}, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, NotifyThreadReply, sink.notifications[0].Reason)
}

func TestDetectorThreadReplyAfterOwnReply(t *testing.T) {
	now := time.Now()
	rootID := uint(900)
	ownReply := msg(901, 5, 1, "me too", now)
	ownReply.ParentID = &rootID
	otherReply := msg(902, 5, 2, "continuing", now.Add(time.Second))
	otherReply.ParentID = &rootID

	src := &queueSource{batches: [][]models.Message{{ownReply}, {otherReply}}}
	sink := &capturedSink{}
	d := NewDetector(alice, src, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	require.NoError(t, d.Poll(context.Background()))
	require.Len(t, sink.notifications, 1)
}

func TestDetectorSkipsDeletedMessages(t *testing.T) {
	now := time.Now()
	deletedAt := now
	m := msg(1000, 5, 2, "", now)
	m.DeletedAt = &deletedAt

	sink := &capturedSink{}
	d := NewDetector(alice, &queueSource{batches: [][]models.Message{{m}}}, sink, time.Second)

	require.NoError(t, d.Poll(context.Background()))
	assert.Empty(t, sink.notifications)
}
