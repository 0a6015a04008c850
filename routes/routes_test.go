package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"teamops-server/models"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "testsecret"

// setupTestDB points the package-level DB handle at a fresh in-memory
// database with the production schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.ChannelCategory{},
		&models.Channel{},
		&models.ChannelMember{},
		&models.Message{},
		&models.PinnedMessage{},
		&models.DirectMessage{},
		&models.DirectMessageParticipant{},
		&models.DirectMessageContent{},
		&models.Media{},
		&models.AuditLog{},
	))

	storage.DB = db
	return db
}

func setupTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	storage.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// buildTestApp assembles the API surface under test with a JWT verifier, the
// same way main wires it.
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_SECRET", testSecret)

	app := iris.New()
	app.Validator = validator.New()

	verifier := jwt.NewVerifier(jwt.HS256, []byte(testSecret))
	auth := verifier.Verify(func() interface{} { return new(utils.AccessToken) })

	categories := app.Party("/api/categories", auth)
	categories.Get("/", GetChannelCategories)
	manage := categories.Party("/", utils.RequireAction(utils.ActionManageCategories))
	manage.Post("/", CreateChannelCategory)
	manage.Put("/{id:uint}", UpdateChannelCategory)
	manage.Delete("/{id:uint}", DeleteChannelCategory)

	channels := app.Party("/api/channels", auth)
	channels.Get("/", ListChannels)
	channels.Post("/", CreateChannel)
	channels.Get("/updates", GetMessageUpdates)
	channels.Put("/{channelID:uint}", utils.RequireAction(utils.ActionManageChannels), UpdateChannel)
	channels.Delete("/{channelID:uint}", utils.RequireAction(utils.ActionManageChannels), DeleteChannel)
	channels.Post("/{channelID:uint}/members", AddChannelMember)
	channels.Post("/{channelID:uint}/read", MarkChannelRead)
	channels.Get("/{channelID:uint}/unread", GetChannelUnreadCount)
	channels.Get("/{channelID:uint}/messages", ListChannelMessages)
	channels.Post("/{channelID:uint}/messages", PostMessage)
	channels.Get("/{channelID:uint}/pins", ListPinnedMessages)
	channels.Post("/{channelID:uint}/messages/{messageID:uint}/pin", PinMessage)
	channels.Delete("/{channelID:uint}/messages/{messageID:uint}/pin", UnpinMessage)

	messages := app.Party("/api/messages", auth)
	messages.Put("/{messageID:uint}", EditMessage)
	messages.Delete("/{messageID:uint}", DeleteMessage)

	conversations := app.Party("/api/conversations", auth)
	conversations.Post("/", StartOrGetConversation)
	conversations.Get("/", ListConversations)
	conversations.Get("/{conversationID:uint}", GetConversation)
	conversations.Post("/{conversationID:uint}/messages", PostToConversation)
	conversations.Post("/{conversationID:uint}/read", MarkConversationRead)
	conversations.Post("/{conversationID:uint}/typing", Typing)
	conversations.Get("/{conversationID:uint}/typing", ListTyping)

	uploads := app.Party("/api/uploads", auth)
	uploads.Post("/reserve", ReserveUpload)
	uploads.Post("/confirm", ConfirmUpload)

	attachments := app.Party("/api/attachments", auth)
	attachments.Get("/{mediaID:uint}/view", ViewAttachment)
	attachments.Delete("/{mediaID:uint}", DeleteAttachment)

	unread := app.Party("/api/unread", auth)
	unread.Get("/summary", GetUnreadSummary)

	require.NoError(t, app.Build())
	return app
}

func signTestToken(t *testing.T, id uint, role string) string {
	t.Helper()
	signer := jwt.NewSigner(jwt.HS256, []byte(testSecret), time.Hour)
	token, err := signer.Sign(utils.AccessToken{ID: id, Role: role})
	require.NoError(t, err)
	return string(token)
}

func doJSON(t *testing.T, app *iris.Application, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func createTestUser(t *testing.T, db *gorm.DB, first, last, email, role string) models.User {
	t.Helper()
	u := models.User{FirstName: first, LastName: last, Email: email, Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createTestChannel(t *testing.T, db *gorm.DB, name, visibility, chType string, createdBy uint) models.Channel {
	t.Helper()
	ch := models.Channel{
		Name:        name,
		Slug:        utils.Slugify(name),
		Visibility:  visibility,
		Type:        chType,
		CreatedByID: createdBy,
	}
	require.NoError(t, db.Create(&ch).Error)
	return ch
}
