package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/interfaces/http/handlers"
	"keygate.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	authHandler    *handlers.AuthHandler
	keyHandler     *handlers.KeyHandler
	inviteHandler  *handlers.InviteHandler
	userHandler    *handlers.UserHandler
	discordHandler *handlers.DiscordHandler
	logHandler     *handlers.LogHandler
	wsHandler      *handlers.WSHandler
	healthHandler  *handlers.HealthHandler
	tokens         middleware.TokenValidator
	// accounts re-checks bans and roles on writes and websocket subscribes.
	accounts middleware.ActorResolver
	// idempotency enables Idempotency-Key handling on creation routes.
	idempotency bool
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware("/health", "/metrics"))

	applyCORSMiddleware(r)
	r.GET("/health", d.healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	registerAPIV1Routes(r, d)
	registerWebsocketRoutes(r, d)
	return r
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Idempotency-Hit")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	auth := middleware.AuthMiddleware(d.tokens)
	idempotent := func(c *gin.Context) { c.Next() }
	if d.idempotency {
		idempotent = middleware.IdempotencyMiddleware(middleware.RedisIdempotencyStore())
	}

	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", d.authHandler.Register)
			authRoutes.POST("/login", d.authHandler.Login)
			authRoutes.POST("/refresh", d.authHandler.RefreshToken)
			authRoutes.GET("/me", auth, d.authHandler.Me)
		}

		// Invite validation is public so the signup form can check codes.
		v1.POST("/invites/validate", d.inviteHandler.ValidateInvite)

		protected := v1.Group("")
		protected.Use(auth, middleware.AccountCheckMiddleware(d.accounts, false))
		{
			keys := protected.Group("/keys")
			{
				keys.GET("", d.keyHandler.ListKeys)
				keys.POST("", idempotent, d.keyHandler.CreateKey)
				keys.POST("/activate", d.keyHandler.ActivateKeyByCode)
				keys.GET("/:id", d.keyHandler.GetKey)
				keys.POST("/:id/activate", d.keyHandler.ActivateKey)
				keys.POST("/:id/revoke", d.keyHandler.RevokeKey)
			}

			invites := protected.Group("/invites")
			{
				invites.GET("", d.inviteHandler.ListInvites)
				invites.POST("", idempotent, d.inviteHandler.CreateInvite)
				invites.GET("/quota", d.inviteHandler.Quota)
				invites.GET("/:id", d.inviteHandler.GetInvite)
				invites.POST("/:id/revoke", d.inviteHandler.RevokeInvite)
			}

			users := protected.Group("/users")
			{
				users.GET("", d.userHandler.ListUsers)
				users.GET("/:id", d.userHandler.GetUser)
				users.POST("/:id/ban", d.userHandler.BanUser)
				users.POST("/:id/unban", d.userHandler.UnbanUser)
				users.POST("/:id/role", d.userHandler.ChangeRole)
			}

			discord := protected.Group("/discord")
			{
				discord.POST("/binding-code", d.discordHandler.GenerateBindingCode)
				discord.POST("/bind", d.discordHandler.Bind)
				discord.GET("/users/:discordId", d.discordHandler.GetByDiscordID)
			}

			protected.GET("/logs",
				middleware.RequireRole(entities.UserRoleAdmin, entities.UserRoleModerator),
				d.logHandler.ListLogs,
			)
		}
	}
}

func registerWebsocketRoutes(r *gin.Engine, d routeDeps) {
	ws := r.Group("/ws")
	ws.Use(middleware.WebsocketAuthMiddleware(d.tokens), middleware.AccountCheckMiddleware(d.accounts, true))
	{
		ws.GET("/keys", d.wsHandler.Keys)
		ws.GET("/users", d.wsHandler.Users)
	}
}
