package routes

import (
	"net/http"
	"strings"
	"time"

	"teamops-server/models"
	"teamops-server/services"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"
)

// messagePageSize caps a single listing; older history requires paging.
const messagePageSize = 150

type messageView struct {
	ID            uint              `json:"id"`
	ChannelID     uint              `json:"channelID"`
	ParentID      *uint             `json:"parentID,omitempty"`
	Content       string            `json:"content"`
	AttachmentURL string            `json:"attachmentURL,omitempty"`
	Deleted       bool              `json:"deleted"`
	Sender        models.SenderView `json:"sender"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func toMessageView(m *models.Message) messageView {
	return messageView{
		ID:            m.ID,
		ChannelID:     m.ChannelID,
		ParentID:      m.ParentID,
		Content:       m.Content,
		AttachmentURL: m.AttachmentURL,
		Deleted:       m.Deleted(),
		Sender:        m.Sender.ToSenderView(),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ListChannelMessages returns the newest non-deleted messages, ascending by
// creation time for display. Opening a channel creates membership implicitly.
func ListChannelMessages(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	channel, ok := visibleChannel(ctx, channelID, claims)
	if !ok {
		return
	}
	ensureMembership(channel.ID, claims.ID)

	var msgs []models.Message
	err = storage.DB.Where("channel_id = ? AND deleted_at IS NULL", channel.ID).
		Preload("Sender").
		Order("created_at DESC, id DESC").Limit(messagePageSize).
		Find(&msgs).Error
	if err != nil {
		utils.Internal(ctx)
		return
	}
	// reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	views := make([]messageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, toMessageView(&msgs[i]))
	}
	ctx.JSON(iris.Map{"success": true, "messages": views})
}

type postMessageInput struct {
	Content       string `json:"content" validate:"lt=5000"`
	ParentID      *uint  `json:"parentID"`
	AttachmentURL string `json:"attachmentURL" validate:"lt=512"`
}

// PostMessage appends a message. Announcement channels are role-gated for
// posting but not reading. An unresolvable parent silently demotes the
// message to top level rather than failing the post.
func PostMessage(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	channel, ok := visibleChannel(ctx, channelID, claims)
	if !ok {
		return
	}
	if channel.Type == models.ChannelTypeAnnouncement && !utils.Can(claims.Role, utils.ActionPostAnnouncement) {
		utils.Forbidden(ctx, "only elevated roles can post to announcement channels")
		return
	}

	var input postMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" && input.AttachmentURL == "" {
		utils.Validation(ctx, "message content is empty")
		return
	}

	parentID := resolveParent(channel.ID, input.ParentID)

	message := models.Message{
		ChannelID:     channel.ID,
		ParentID:      parentID,
		SenderID:      claims.ID,
		Content:       content,
		AttachmentURL: input.AttachmentURL,
	}
	if err := storage.DB.Create(&message).Error; err != nil {
		utils.Internal(ctx)
		return
	}
	ensureMembership(channel.ID, claims.ID)

	storage.DB.Preload("Sender").First(&message, message.ID)
	view := toMessageView(&message)
	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "message": view})
}

// resolveParent keeps threads one level deep: a missing, deleted, or
// cross-channel parent demotes the post to top level, and replying to a reply
// attaches to that reply's root.
func resolveParent(channelID uint, parentID *uint) *uint {
	if parentID == nil {
		return nil
	}
	var parent models.Message
	if err := storage.DB.First(&parent, *parentID).Error; err != nil {
		return nil
	}
	if parent.ChannelID != channelID || parent.Deleted() {
		return nil
	}
	if parent.ParentID != nil {
		return parent.ParentID
	}
	id := parent.ID
	return &id
}

type editMessageInput struct {
	Content string `json:"content" validate:"required,lt=5000"`
}

// EditMessage is restricted to the original sender.
func EditMessage(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		utils.Validation(ctx, "invalid message id")
		return
	}

	var input editMessageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		utils.Validation(ctx, "message content is empty")
		return
	}

	var message models.Message
	if err := storage.DB.First(&message, messageID).Error; err != nil {
		utils.NotFound(ctx, "message not found")
		return
	}
	if message.Deleted() {
		utils.NotFound(ctx, "message not found")
		return
	}
	if message.SenderID != claims.ID {
		utils.Forbidden(ctx, "only the sender can edit a message")
		return
	}

	message.Content = content
	if err := storage.DB.Save(&message).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	storage.DB.Preload("Sender").First(&message, message.ID)
	view := toMessageView(&message)
	ctx.JSON(iris.Map{"success": true, "message": view})
}

// DeleteMessage soft-deletes: content cleared, DeletedAt stamped, and any pin
// on the message removed in the same transaction.
func DeleteMessage(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		utils.Validation(ctx, "invalid message id")
		return
	}

	var message models.Message
	if err := storage.DB.First(&message, messageID).Error; err != nil {
		utils.NotFound(ctx, "message not found")
		return
	}
	if message.Deleted() {
		ctx.JSON(iris.Map{"success": true})
		return
	}
	if message.SenderID != claims.ID {
		utils.Forbidden(ctx, "only the sender can delete a message")
		return
	}

	now := time.Now()
	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).Where("id = ?", message.ID).
			Updates(map[string]interface{}{"content": "", "attachment_url": "", "deleted_at": now}).Error; err != nil {
			return err
		}
		return tx.Where("message_id = ?", message.ID).Delete(&models.PinnedMessage{}).Error
	})
	if txErr != nil {
		utils.Internal(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// GetMessageUpdates serves the client pollers: messages newer than "since"
// across every channel the caller belongs to, with thread parents populated.
func GetMessageUpdates(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	sinceParam := ctx.URLParam("since")
	since := time.Now().Add(-15 * time.Minute)
	if sinceParam != "" {
		parsed, err := time.Parse(time.RFC3339Nano, sinceParam)
		if err != nil {
			utils.Validation(ctx, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	source := services.ChannelSource{DB: storage.DB}
	msgs, err := source.MessagesSince(ctx.Request().Context(), claims.ID, since)
	if err != nil {
		utils.Internal(ctx)
		return
	}

	views := make([]messageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, toMessageView(&msgs[i]))
	}
	ctx.JSON(iris.Map{"success": true, "messages": views, "serverTime": time.Now()})
}

// ensureMembership creates the implicit membership row on first read, post,
// or open. The read cursor stays nil so unread counts still treat the channel
// as never read.
func ensureMembership(channelID, userID uint) {
	member := models.ChannelMember{ChannelID: channelID, UserID: userID}
	storage.DB.Where("channel_id = ? AND user_id = ?", channelID, userID).FirstOrCreate(&member)
}
