package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamscreen/teamscreen/internal/adapters/signal"
	"github.com/teamscreen/teamscreen/internal/app"
	"github.com/teamscreen/teamscreen/internal/config"
)

// ClientTokenMiddleware gives every browser a stable token cookie,
// used only for logging correlation; member identity is per websocket
// connection.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TeamscreenSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewController(coord, cfg)

	api := r.Group("/api")

	// lobby discovery
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Rooms.List())
	})

	// ICE servers for the client's peer connections
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"stunUrls": cfg.StunURLs})
	})

	// remembered nickname, cookie-session scoped
	api.POST("/nickname", func(c *gin.Context) {
		var req struct {
			Nickname string `json:"nickname" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing nickname"})
			return
		}
		s := sessions.Default(c)
		s.Set("nickname", req.Nickname)
		if err := s.Save(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session save"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"nickname": req.Nickname})
	})

	api.GET("/whoami", func(c *gin.Context) {
		s := sessions.Default(c)
		nickname, _ := s.Get("nickname").(string)
		c.JSON(http.StatusOK, gin.H{
			"nickname":    nickname,
			"clientToken": c.GetString("client_token"),
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
