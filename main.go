package main

import (
	"log"
	"os"

	"teamops-server/routes"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeRedis()
	storage.InitializeObjectStore()

	app := iris.New()
	app.Validator = validator.New()

	// CORS for the dashboard client
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	auth := app.Party("/api/auth")
	{
		auth.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
	}

	categories := app.Party("/api/categories", accessTokenVerifierMiddleware)
	{
		categories.Get("/", routes.GetChannelCategories)
		manage := categories.Party("/", utils.RequireAction(utils.ActionManageCategories))
		manage.Post("/", routes.CreateChannelCategory)
		manage.Put("/{id:uint}", routes.UpdateChannelCategory)
		manage.Delete("/{id:uint}", routes.DeleteChannelCategory)
	}

	channels := app.Party("/api/channels", accessTokenVerifierMiddleware)
	{
		channels.Get("/", routes.ListChannels)
		channels.Post("/", routes.CreateChannel) // deployment policy checked in the handler
		channels.Get("/updates", routes.GetMessageUpdates)
		channels.Put("/{channelID:uint}", utils.RequireAction(utils.ActionManageChannels), routes.UpdateChannel)
		channels.Delete("/{channelID:uint}", utils.RequireAction(utils.ActionManageChannels), routes.DeleteChannel)
		channels.Post("/{channelID:uint}/members", routes.AddChannelMember)
		channels.Post("/{channelID:uint}/read", routes.MarkChannelRead)
		channels.Get("/{channelID:uint}/unread", routes.GetChannelUnreadCount)
		channels.Get("/{channelID:uint}/messages", routes.ListChannelMessages)
		channels.Post("/{channelID:uint}/messages", routes.PostMessage)
		channels.Get("/{channelID:uint}/pins", routes.ListPinnedMessages)
		channels.Post("/{channelID:uint}/messages/{messageID:uint}/pin", routes.PinMessage)
		channels.Delete("/{channelID:uint}/messages/{messageID:uint}/pin", routes.UnpinMessage)
	}

	messages := app.Party("/api/messages", accessTokenVerifierMiddleware)
	{
		messages.Put("/{messageID:uint}", routes.EditMessage)
		messages.Delete("/{messageID:uint}", routes.DeleteMessage)
	}

	conversations := app.Party("/api/conversations", accessTokenVerifierMiddleware)
	{
		conversations.Post("/", routes.StartOrGetConversation)
		conversations.Get("/", routes.ListConversations)
		conversations.Get("/{conversationID:uint}", routes.GetConversation)
		conversations.Post("/{conversationID:uint}/messages", routes.PostToConversation)
		conversations.Post("/{conversationID:uint}/read", routes.MarkConversationRead)
		conversations.Post("/{conversationID:uint}/typing", routes.Typing)
		conversations.Get("/{conversationID:uint}/typing", routes.ListTyping)
	}

	uploads := app.Party("/api/uploads", accessTokenVerifierMiddleware)
	{
		uploads.Post("/reserve", routes.ReserveUpload)
		uploads.Post("/confirm", routes.ConfirmUpload)
	}

	attachments := app.Party("/api/attachments", accessTokenVerifierMiddleware)
	{
		attachments.Get("/{mediaID:uint}/view", routes.ViewAttachment)
		attachments.Delete("/{mediaID:uint}", routes.DeleteAttachment)
	}

	unread := app.Party("/api/unread", accessTokenVerifierMiddleware)
	{
		unread.Get("/summary", routes.GetUnreadSummary)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	log.Println("listening on :" + port)
	app.Listen(":" + port)
}
