package routes

import (
	"fmt"
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

type startConversationInput struct {
	OtherUserID uint `json:"otherUserID" validate:"required"`
}

// StartOrGetConversation finds or creates the single conversation for the
// unordered {caller, other} pair. The unique PairKey index makes two racing
// creates collapse onto one row: the loser re-finds.
func StartOrGetConversation(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	var input startConversationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if input.OtherUserID == claims.ID {
		utils.Validation(ctx, "cannot start a conversation with yourself")
		return
	}

	var other models.User
	if err := storage.DB.First(&other, input.OtherUserID).Error; err != nil {
		utils.NotFound(ctx, "user not found")
		return
	}

	pairKey := models.DirectMessagePairKey(claims.ID, other.ID)

	var dm models.DirectMessage
	err := storage.DB.Where("pair_key = ?", pairKey).
		Preload("Participants.User").First(&dm).Error
	if err == nil {
		ctx.JSON(iris.Map{"success": true, "data": dm})
		return
	}

	createErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		dm = models.DirectMessage{PairKey: pairKey}
		if err := tx.Create(&dm).Error; err != nil {
			return err
		}
		participants := []models.DirectMessageParticipant{
			{DirectMessageID: dm.ID, UserID: claims.ID},
			{DirectMessageID: dm.ID, UserID: other.ID},
		}
		return tx.Create(&participants).Error
	})
	if createErr != nil {
		// lost the race: the unique pair key already exists
		if err := storage.DB.Where("pair_key = ?", pairKey).
			Preload("Participants.User").First(&dm).Error; err != nil {
			utils.Internal(ctx)
			return
		}
		ctx.JSON(iris.Map{"success": true, "data": dm})
		return
	}

	storage.DB.Preload("Participants.User").First(&dm, dm.ID)
	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": dm})
}

type conversationSummary struct {
	ID          uint               `json:"id"`
	Other       models.SenderView  `json:"other"`
	LastMessage *dmContentView     `json:"lastMessage"`
	UnreadCount int64              `json:"unreadCount"`
	LastReadAt  *time.Time         `json:"lastReadAt"`
}

type dmContentView struct {
	ID        uint              `json:"id"`
	Sender    models.SenderView `json:"sender"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toDMContentView(c *models.DirectMessageContent) dmContentView {
	return dmContentView{
		ID:        c.ID,
		Sender:    c.Sender.ToSenderView(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// ListConversations returns the caller's conversations with the other
// participant, a last-message preview, and the recomputed unread count.
func ListConversations(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	var participations []models.DirectMessageParticipant
	if err := storage.DB.Where("user_id = ?", claims.ID).Find(&participations).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	summaries := make([]conversationSummary, 0, len(participations))
	for _, p := range participations {
		var other models.DirectMessageParticipant
		if err := storage.DB.Where("direct_message_id = ? AND user_id <> ?", p.DirectMessageID, claims.ID).
			Preload("User").First(&other).Error; err != nil {
			continue
		}

		summary := conversationSummary{
			ID:         p.DirectMessageID,
			Other:      other.User.ToSenderView(),
			LastReadAt: p.LastReadAt,
		}

		var last models.DirectMessageContent
		if err := storage.DB.Where("direct_message_id = ?", p.DirectMessageID).
			Preload("Sender").Order("created_at DESC, id DESC").First(&last).Error; err == nil {
			v := toDMContentView(&last)
			summary.LastMessage = &v
		}

		count, err := services.ConversationUnreadCount(storage.DB, p.DirectMessageID, claims.ID)
		if err != nil {
			utils.Internal(ctx)
			return
		}
		summary.UnreadCount = count
		summaries = append(summaries, summary)
	}

	ctx.JSON(iris.Map{"success": true, "data": summaries})
}

// GetConversation returns the conversation stream and marks it read as a side
// effect of opening it.
func GetConversation(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	dmID, participant := conversationParticipant(ctx, claims)
	if participant == nil {
		return
	}

	var contents []models.DirectMessageContent
	err := storage.DB.Where("direct_message_id = ?", dmID).
		Preload("Sender").
		Order("created_at DESC, id DESC").Limit(messagePageSize).
		Find(&contents).Error
	if err != nil {
		utils.Internal(ctx)
		return
	}
	for i, j := 0, len(contents)-1; i < j; i, j = i+1, j-1 {
		contents[i], contents[j] = contents[j], contents[i]
	}

	views := make([]dmContentView, 0, len(contents))
	for i := range contents {
		views = append(views, toDMContentView(&contents[i]))
	}

	services.MarkConversationRead(storage.DB, dmID, claims.ID, time.Now())

	ctx.JSON(iris.Map{"success": true, "messages": views})
}

type postConversationInput struct {
	Content string `json:"content" validate:"required,lt=5000"`
}

// PostToConversation appends to the conversation; participants only.
func PostToConversation(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	dmID, participant := conversationParticipant(ctx, claims)
	if participant == nil {
		return
	}

	var input postConversationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		utils.Validation(ctx, "message content is empty")
		return
	}

	msg := models.DirectMessageContent{
		DirectMessageID: dmID,
		SenderID:        claims.ID,
		Content:         content,
	}
	if err := storage.DB.Create(&msg).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	storage.DB.Preload("Sender").First(&msg, msg.ID)
	view := toDMContentView(&msg)
	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "message": view})
}

// MarkConversationRead stamps the caller's read cursor for the conversation.
func MarkConversationRead(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	dmID, participant := conversationParticipant(ctx, claims)
	if participant == nil {
		return
	}

	if err := services.MarkConversationRead(storage.DB, dmID, claims.ID, time.Now()); err != nil {
		utils.Internal(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// Typing sets a short-lived typing key for the conversation.
func Typing(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	dmID, participant := conversationParticipant(ctx, claims)
	if participant == nil {
		return
	}

	storage.Redis.Set(ctx.Request().Context(), typingKey(dmID, claims.ID), "1", 5*time.Second)
	ctx.JSON(iris.Map{"success": true})
}

// ListTyping reports which other participants are typing right now.
func ListTyping(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	dmID, participant := conversationParticipant(ctx, claims)
	if participant == nil {
		return
	}

	var others []models.DirectMessageParticipant
	if err := storage.DB.Where("direct_message_id = ? AND user_id <> ?", dmID, claims.ID).
		Preload("User").Find(&others).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	typing := []iris.Map{}
	for _, p := range others {
		if val, err := storage.Redis.Get(ctx.Request().Context(), typingKey(dmID, p.UserID)).Result(); err == nil && val == "1" {
			typing = append(typing, iris.Map{
				"userID": p.UserID,
				"name":   p.User.DisplayName(),
			})
		}
	}
	ctx.JSON(iris.Map{"success": true, "typing": typing})
}

func typingKey(dmID uint, userID uint) string {
	return fmt.Sprintf("typing:dm:%d:user:%d", dmID, userID)
}

// conversationParticipant resolves the dm id from the route and enforces the
// participant-only rule. Returns a nil participant after writing the error.
func conversationParticipant(ctx iris.Context, claims *utils.AccessToken) (uint, *models.DirectMessageParticipant) {
	dmID, err := ctx.Params().GetUint("conversationID")
	if err != nil {
		utils.Validation(ctx, "invalid conversation id")
		return 0, nil
	}

	var dm models.DirectMessage
	if err := storage.DB.First(&dm, dmID).Error; err != nil {
		utils.NotFound(ctx, "conversation not found")
		return 0, nil
	}

	var participant models.DirectMessageParticipant
	if err := storage.DB.Where("direct_message_id = ? AND user_id = ?", dm.ID, claims.ID).
		First(&participant).Error; err != nil {
		utils.Forbidden(ctx, "not a participant of this conversation")
		return 0, nil
	}
	return dm.ID, &participant
}
