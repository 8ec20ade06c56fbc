package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Candidate *handler.CandidateHandler
	WS        *handler.WSHandler
	Monitor   *handler.MonitorHandler
	Face      *handler.FaceHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// proctorLimiter throttles frame submissions per candidate.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	proctorLimiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))

	router.GET("/health", handlers.System.Health)

	// ─── 1. Candidate Group (JWT) ──────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(middleware.RequireCandidateJWT(authService), middleware.NoStore())
	{
		candidateAPI.POST("/sessions", handlers.Candidate.StartSession)
		candidateAPI.GET("/sessions", handlers.Candidate.ListSessions)
		candidateAPI.PUT("/sessions/:session_id/answers/:question_id", handlers.Candidate.SaveAnswer)
		candidateAPI.POST("/sessions/:session_id/finish", handlers.Candidate.FinalizeSession)
		candidateAPI.GET("/sessions/:session_id/result", handlers.Candidate.GetResult)
		candidateAPI.POST("/sessions/:session_id/proctor",
			proctorLimiter.Middleware(),
			handlers.Candidate.RecordFrame,
		)
	}

	// ─── 2. WebSocket Group (token via header or ?token=) ──────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateJWT(authService))
	{
		ws.GET("/candidate/sessions/:session_id/proctor", handlers.WS.ProctorStream)
	}

	// ─── 3. Reviewer Group (JWT) ───────────────────────────────────────
	reviewerAPI := router.Group("/api/v1/reviewer")
	reviewerAPI.Use(
		middleware.RequireReviewerJWT(authService),
		middleware.NoStore(),
		middleware.Compress(cfg.CompressionLevel, 1024),
	)
	{
		reviewerAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		reviewerAPI.GET("/monitor/snapshot", handlers.Monitor.GetSnapshot)
		reviewerAPI.GET("/sessions/:session_id", handlers.Monitor.GetSession)
		reviewerAPI.GET("/sessions/:session_id/events", handlers.Monitor.ListEvents)
		reviewerAPI.GET("/sessions/:session_id/monitor", handlers.Monitor.MonitorSessionSSE)
		reviewerAPI.POST("/candidates/:candidate_id/face", handlers.Face.UploadFace)
		reviewerAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
