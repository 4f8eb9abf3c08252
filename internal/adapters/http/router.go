package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/devcord-rt/internal/adapters/identity"
	"github.com/dkeye/devcord-rt/internal/adapters/rtc"
	"github.com/dkeye/devcord-rt/internal/adapters/signal"
	"github.com/dkeye/devcord-rt/internal/app/orch"
	"github.com/dkeye/devcord-rt/internal/config"
	"github.com/dkeye/devcord-rt/internal/core"
	"github.com/dkeye/devcord-rt/internal/domain"
)

const userKey = "user"

// IdentityMiddleware resolves the caller before the handler runs and
// aborts with 401 when the identity collaborator rejects the request.
func IdentityMiddleware(id identity.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := id.Resolve(c.Request)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthenticated")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func userFrom(c *gin.Context) *domain.User {
	v, _ := c.Get(userKey)
	u, _ := v.(*domain.User)
	return u
}

type memberView struct {
	core.PeerDTO
	JoinedAt int64 `json:"joinedAt"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctrl *signal.SignalWSController, id identity.Identity) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": o.Registry.Count()})
	})

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rtc/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, rtc.ClientConfig(cfg.ICEServers))
	})

	api.GET("/ws/signal", IdentityMiddleware(id), func(c *gin.Context) {
		u := userFrom(c)
		log.Info().Str("module", "adapters.http").Str("user", string(u.ID)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, u)
	})

	rooms := api.Group("", IdentityMiddleware(id))
	rooms.GET("/chat/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Rooms.ChatRooms())
	})
	rooms.GET("/voice/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Rooms.VoiceRooms())
	})
	rooms.GET("/voice/rooms/:channel/members", func(c *gin.Context) {
		ch := domain.ChannelID(c.Param("channel"))
		members := o.Rooms.VoiceMembers(ch)
		out := make([]memberView, 0, len(members))
		for _, m := range members {
			out = append(out, memberView{PeerDTO: m.DTO(), JoinedAt: m.JoinedAt.UnixMilli()})
		}
		c.JSON(http.StatusOK, gin.H{"channelId": ch, "members": out})
	})
	// The kicked connection stays open and may join again.
	rooms.DELETE("/voice/rooms/:channel/members/:user", func(c *gin.Context) {
		ch := domain.ChannelID(c.Param("channel"))
		target := domain.UserID(c.Param("user"))
		if !o.OnKick(ch, target) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("channel", string(ch)).Str("user", string(target)).
			Str("by", string(userFrom(c).ID)).Msg("voice member kicked")
		c.Status(http.StatusNoContent)
	})

	return r
}
