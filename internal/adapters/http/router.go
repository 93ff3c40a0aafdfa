package http

import (
	"context"
	stdhttp "net/http"

	"github.com/dkeye/VideoChat/internal/adapters/signal"
	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/app/orch"
	"github.com/dkeye/VideoChat/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const (
	sessionName     = "VideoChatSessions"
	clientTokenKey  = "client_token"
	livenessMessage = "Video Chat Server is running"
)

// ClientTokenMiddleware keeps a random per-browser token in the cookie
// session and exposes it as "client_token" on the gin context.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// randomRoom always answers with a room. A client over its match limit is
// handed its previous room again while that room still has space, so a
// flood cannot fill the registry with empty rooms.
func randomRoom(rl *MatchRateLimiter, o *orch.Orchestrator, mm *app.Matchmaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.Allow(key) {
			if last, ok := rl.Last(key); ok && o.Rooms.Joinable(last) {
				log.Warn().Str("module", "adapters.http").Str("addr", key).Str("room_id", string(last)).Msg("match rate exceeded, reusing room")
				c.JSON(stdhttp.StatusOK, gin.H{"roomId": last})
				return
			}
			log.Warn().Str("module", "adapters.http").Str("addr", key).Msg("match rate exceeded")
		}
		room := mm.FindOrCreateRoom()
		rl.Remember(key, room)
		c.JSON(stdhttp.StatusOK, gin.H{"roomId": room})
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, mm *app.Matchmaker) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// ClientIP is the socket peer; forwarded headers are client controlled.
	if err := r.SetTrustedProxies(nil); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("trusted proxies")
	}
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, livenessMessage)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	limiter := NewMatchRateLimiter(cfg.MatchLimit, cfg.MatchInterval)
	r.GET("/random-room", randomRoom(limiter, o, mm))

	r.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"iceServers": cfg.ICEServers()})
	})

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	ctrl := signal.NewSignalWSController(o, cfg)
	ws := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}
	r.GET("/socket", ws)
	r.GET("/ws", ws)

	return r
}

// Handler wraps the engine with the configured CORS policy.
func Handler(cfg *config.Config, engine stdhttp.Handler) stdhttp.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{stdhttp.MethodGet, stdhttp.MethodPost},
		AllowCredentials: false,
	}).Handler(engine)
}
