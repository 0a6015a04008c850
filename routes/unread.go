package routes

import (
	"teamops-server/services"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
)

// GetUnreadSummary aggregates unread counts across every channel and
// conversation the caller belongs to, for badge display. Recomputed on every
// call; nothing is cached.
func GetUnreadSummary(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	summary, err := services.UnreadSummaryFor(storage.DB, claims.ID)
	if err != nil {
		utils.Internal(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": summary})
}

// GetChannelUnreadCount recomputes one channel's unread count for the caller.
func GetChannelUnreadCount(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	channelID, err := ctx.Params().GetUint("channelID")
	if err != nil {
		utils.Validation(ctx, "invalid channel id")
		return
	}

	if _, ok := visibleChannel(ctx, channelID, claims); !ok {
		return
	}

	count, err := services.ChannelUnreadCount(storage.DB, channelID, claims.ID)
	if err != nil {
		utils.Internal(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "channelID": channelID, "count": count})
}
