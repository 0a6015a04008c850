package routes

import (
	"net/http"
	"os"
	"time"

	"teamops-server/models"
	"teamops-server/services"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"
)

// ListChannels returns public channels plus private channels the caller
// belongs to, with their category.
func ListChannels(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	var channels []models.Channel
	err := storage.DB.
		Where("visibility = ?", models.ChannelPublic).
		Or("id IN (?)", storage.DB.Model(&models.ChannelMember{}).
			Select("channel_id").Where("user_id = ?", claims.ID)).
		Preload("Category").
		Order("name ASC").
		Find(&channels).Error
	if err != nil {
		utils.Internal(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": channels, "count": len(channels)})
}

type createChannelInput struct {
	Name        string `json:"name" validate:"required,lt=80"`
	Description string `json:"description" validate:"lt=512"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	Type        string `json:"type" validate:"omitempty,oneof=normal announcement"`
	CategoryID  *uint  `json:"categoryID"`
}

func CreateChannel(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	// deployment policy: CHANNEL_CREATE_OPEN=1 lets any member create channels
	if !utils.Can(claims.Role, utils.ActionManageChannels) && os.Getenv("CHANNEL_CREATE_OPEN") != "1" {
		utils.Forbidden(ctx, "channel creation requires an elevated role")
		return
	}

	var input createChannelInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	slug := utils.Slugify(input.Name)
	if slug == "" {
		utils.Validation(ctx, "channel name must contain letters or digits")
		return
	}
	var existing models.Channel
	if err := storage.DB.Where("slug = ?", slug).First(&existing).Error; err == nil {
		utils.Conflict(ctx, "a channel with this name already exists")
		return
	}

	if input.CategoryID != nil {
		var category models.ChannelCategory
		if err := storage.DB.First(&category, *input.CategoryID).Error; err != nil {
			utils.NotFound(ctx, "category not found")
			return
		}
	}

	channel := models.Channel{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		Visibility:  input.Visibility,
		Type:        input.Type,
		CategoryID:  input.CategoryID,
		CreatedByID: claims.ID,
	}
	if channel.Visibility == "" {
		channel.Visibility = models.ChannelPublic
	}
	if channel.Type == "" {
		channel.Type = models.ChannelTypeNormal
	}

	if err := storage.DB.Create(&channel).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	// the creator joins immediately
	now := time.Now()
	services.MarkChannelRead(storage.DB, channel.ID, claims.ID, now)

	utils.Audit(ctx, "channel_create", "channel", channel.ID, nil, channel)
	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": channel})
}

type updateChannelInput struct {
	Name        string `json:"name" validate:"required,lt=80"`
	Description string `json:"description" validate:"lt=512"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	Type        string `json:"type" validate:"omitempty,oneof=normal announcement"`
	CategoryID  *uint  `json:"categoryID"`
}

func UpdateChannel(ctx iris.Context) {
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	var input updateChannelInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var channel models.Channel
	if err := storage.DB.First(&channel, channelID).Error; err != nil {
		utils.NotFound(ctx, "channel not found")
		return
	}
	before := channel

	slug := utils.Slugify(input.Name)
	if slug == "" {
		utils.Validation(ctx, "channel name must contain letters or digits")
		return
	}
	// a rename that collides gets a suffix derived from the channel's own id,
	// so retrying the same rename yields the same slug
	var other models.Channel
	if err := storage.DB.Where("slug = ? AND id <> ?", slug, channel.ID).First(&other).Error; err == nil {
		slug = utils.DisambiguateSlug(slug, channel.ID)
	}

	if input.CategoryID != nil {
		var category models.ChannelCategory
		if err := storage.DB.First(&category, *input.CategoryID).Error; err != nil {
			utils.NotFound(ctx, "category not found")
			return
		}
	}

	channel.Name = input.Name
	channel.Slug = slug
	channel.Description = input.Description
	if input.Visibility != "" {
		channel.Visibility = input.Visibility
	}
	if input.Type != "" {
		channel.Type = input.Type
	}
	channel.CategoryID = input.CategoryID

	if err := storage.DB.Save(&channel).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	utils.Audit(ctx, "channel_update", "channel", channel.ID, before, channel)
	ctx.JSON(iris.Map{"success": true, "data": channel})
}

// DeleteChannel removes the channel and hard-deletes everything under it:
// messages, pins, memberships. Distinct from per-message soft delete.
func DeleteChannel(ctx iris.Context) {
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	var channel models.Channel
	if err := storage.DB.First(&channel, channelID).Error; err != nil {
		utils.NotFound(ctx, "channel not found")
		return
	}

	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.PinnedMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.ChannelMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&channel).Error
	})
	if txErr != nil {
		utils.Internal(ctx)
		return
	}

	utils.Audit(ctx, "channel_delete", "channel", channel.ID, channel, nil)
	ctx.JSON(iris.Map{"success": true})
}

type addMemberInput struct {
	UserID uint `json:"userID" validate:"required"`
}

// AddChannelMember lets an existing member bring another user in.
func AddChannelMember(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	var input addMemberInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var channel models.Channel
	if err := storage.DB.First(&channel, channelID).Error; err != nil {
		utils.NotFound(ctx, "channel not found")
		return
	}

	var callerMembership models.ChannelMember
	if err := storage.DB.Where("channel_id = ? AND user_id = ?", channel.ID, claims.ID).
		First(&callerMembership).Error; err != nil {
		utils.Forbidden(ctx, "only channel members can add members")
		return
	}

	var target models.User
	if err := storage.DB.First(&target, input.UserID).Error; err != nil {
		utils.NotFound(ctx, "user not found")
		return
	}

	member := models.ChannelMember{ChannelID: channel.ID, UserID: target.ID}
	if err := storage.DB.Where("channel_id = ? AND user_id = ?", channel.ID, target.ID).
		FirstOrCreate(&member).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": member})
}

// MarkChannelRead upserts the caller's read cursor to now. Safe to call on
// every channel open or poll.
func MarkChannelRead(ctx iris.Context) {
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

	if err := services.MarkChannelRead(storage.DB, channel.ID, claims.ID, time.Now()); err != nil {
		utils.Internal(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// visibleChannel loads a channel and enforces private-channel membership.
// Public channels are visible to everyone.
func visibleChannel(ctx iris.Context, channelID uint, claims *utils.AccessToken) (*models.Channel, bool) {
	var channel models.Channel
	if err := storage.DB.First(&channel, channelID).Error; err != nil {
		utils.NotFound(ctx, "channel not found")
		return nil, false
	}
	if channel.Visibility == models.ChannelPrivate {
		var membership models.ChannelMember
		if err := storage.DB.Where("channel_id = ? AND user_id = ?", channel.ID, claims.ID).
			First(&membership).Error; err != nil {
			utils.Forbidden(ctx, "not a member of this channel")
			return nil, false
		}
	}
	return &channel, true
}
