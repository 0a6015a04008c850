package routes

import (
	"fmt"
	"net/http"
	"testing"

	"teamops-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinPath(channelID, messageID uint) string {
	return fmt.Sprintf("/api/channels/%d/messages/%d/pin", channelID, messageID)
}

func TestPinMessage(t *testing.T) {
	db := setupTestDB(t)
	setupTestRedis(t)
	app := buildTestApp(t)

	user := createTestUser(t, db, "Mina", "Okafor", "mina@example.com", "user")
	token := signTestToken(t, user.ID, user.Role)
	ch := createTestChannel(t, db, "general", models.ChannelPublic, models.ChannelTypeNormal, user.ID)
	other := createTestChannel(t, db, "random", models.ChannelPublic, models.ChannelTypeNormal, user.ID)

	msg := postMessage(t, app, ch.ID, token, map[string]interface{}{"content": "keep this"})

	rec := doJSON(t, app, "POST", pinPath(ch.ID, msg.ID), token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// a message can be pinned at most once
	rec = doJSON(t, app, "POST", pinPath(ch.ID, msg.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// pinning through the wrong channel is a miss, not a cross-post
	rec = doJSON(t, app, "POST", pinPath(other.ID, msg.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	db.Model(&models.PinnedMessage{}).Where("message_id = ?", msg.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestPinDeletedMessageFails(t *testing.T) {
	db := setupTestDB(t)
	setupTestRedis(t)
	app := buildTestApp(t)

	user := createTestUser(t, db, "Mina", "Okafor", "mina@example.com", "user")
	token := signTestToken(t, user.ID, user.Role)
	ch := createTestChannel(t, db, "general", models.ChannelPublic, models.ChannelTypeNormal, user.ID)

	msg := postMessage(t, app, ch.ID, token, map[string]interface{}{"content": "gone soon"})
	rec := doJSON(t, app, "DELETE", fmt.Sprintf("/api/messages/%d", msg.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, app, "POST", pinPath(ch.ID, msg.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnpinIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	setupTestRedis(t)
	app := buildTestApp(t)

	user := createTestUser(t, db, "Mina", "Okafor", "mina@example.com", "user")
	token := signTestToken(t, user.ID, user.Role)
	ch := createTestChannel(t, db, "general", models.ChannelPublic, models.ChannelTypeNormal, user.ID)

	msg := postMessage(t, app, ch.ID, token, map[string]interface{}{"content": "pin me"})
	rec := doJSON(t, app, "POST", pinPath(ch.ID, msg.ID), token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, app, "DELETE", pinPath(ch.ID, msg.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// unpinning again still succeeds
	rec = doJSON(t, app, "DELETE", pinPath(ch.ID, msg.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPinnedMessages(t *testing.T) {
	db := setupTestDB(t)
	setupTestRedis(t)
	app := buildTestApp(t)

	user := createTestUser(t, db, "Mina", "Okafor", "mina@example.com", "user")
	token := signTestToken(t, user.ID, user.Role)
	ch := createTestChannel(t, db, "general", models.ChannelPublic, models.ChannelTypeNormal, user.ID)

	first := postMessage(t, app, ch.ID, token, map[string]interface{}{"content": "first"})
	second := postMessage(t, app, ch.ID, token, map[string]interface{}{"content": "second"})

	require.Equal(t, http.StatusCreated, doJSON(t, app, "POST", pinPath(ch.ID, first.ID), token, nil).Code)
	require.Equal(t, http.StatusCreated, doJSON(t, app, "POST", pinPath(ch.ID, second.ID), token, nil).Code)

	rec := doJSON(t, app, "GET", fmt.Sprintf("/api/channels/%d/pins", ch.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Data []pinView `json:"data"`
	}
	parseBody(t, rec, &listing)
	require.Len(t, listing.Data, 2)
	// most recently pinned first
	assert.Equal(t, second.ID, listing.Data[0].Message.ID)
	assert.Equal(t, first.ID, listing.Data[1].Message.ID)
	assert.Equal(t, "Mina Okafor", listing.Data[0].PinnedBy.Name)
}

