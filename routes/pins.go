package routes

import (
	"net/http"
	"time"

	"teamops-server/models"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
)

type pinView struct {
	ID        uint              `json:"id"`
	ChannelID uint              `json:"channelID"`
	PinnedBy  models.SenderView `json:"pinnedBy"`
	PinnedAt  time.Time         `json:"pinnedAt"`
	Message   messageView       `json:"message"`
}

// PinMessage pins a live message of the channel. A message can be pinned at
// most once.
func PinMessage(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		utils.Validation(ctx, "invalid message id")
		return
	}

	channel, ok := visibleChannel(ctx, channelID, claims)
	if !ok {
		return
	}

	var message models.Message
	if err := storage.DB.First(&message, messageID).Error; err != nil {
		utils.NotFound(ctx, "message not found")
		return
	}
	if message.ChannelID != channel.ID || message.Deleted() {
		utils.NotFound(ctx, "message not found in this channel")
		return
	}

	var existing models.PinnedMessage
	if err := storage.DB.Where("message_id = ?", message.ID).First(&existing).Error; err == nil {
		utils.Conflict(ctx, "message is already pinned")
		return
	}

	pin := models.PinnedMessage{
		MessageID:  message.ID,
		ChannelID:  channel.ID,
		PinnedByID: claims.ID,
		PinnedAt:   time.Now(),
	}
	if err := storage.DB.Create(&pin).Error; err != nil {
		// unique index on message_id backstops a racing pin
		utils.Conflict(ctx, "message is already pinned")
		return
	}

	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": pin})
}

// UnpinMessage is idempotent: unpinning a message that is not pinned succeeds.
func UnpinMessage(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}
	messageID, err := ctx.Params().GetUint("messageID")
	if err != nil {
		utils.Validation(ctx, "invalid message id")
		return
	}

	if _, ok := visibleChannel(ctx, channelID, claims); !ok {
		return
	}

	if err := storage.DB.Where("message_id = ?", messageID).
		Delete(&models.PinnedMessage{}).Error; err != nil {
		utils.Internal(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// ListPinnedMessages returns a channel's pins most-recently-pinned first,
// joined with the underlying message and its sender.
func ListPinnedMessages(ctx iris.Context) {
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

	var pins []models.PinnedMessage
	err = storage.DB.Where("channel_id = ?", channel.ID).
		Preload("Message").
		Preload("Message.Sender").
		Preload("PinnedBy").
		Order("pinned_at DESC").
		Find(&pins).Error
	if err != nil {
		utils.Internal(ctx)
		return
	}

	views := make([]pinView, 0, len(pins))
	for i := range pins {
		p := &pins[i]
		views = append(views, pinView{
			ID:        p.ID,
			ChannelID: p.ChannelID,
			PinnedBy:  p.PinnedBy.ToSenderView(),
			PinnedAt:  p.PinnedAt,
			Message:   toMessageView(&p.Message),
		})
	}
	ctx.JSON(iris.Map{"success": true, "data": views})
}
