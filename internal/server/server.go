// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/ai"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/featureflags"
	"quill/internal/messaging"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the connections a Server runs on. Only DB is required; a nil
// Redis disables caching, rate limiting and cross-instance fan-out.
type Deps struct {
	DB    *gorm.DB
	Redis *redis.Client
	Bus   *messaging.Publisher
	LLM   ai.Completer
	Store storage.Store
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	bus            *messaging.Publisher
	llm            ai.Completer
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	userService        *service.UserService
	postService        *service.PostService
	commentService     *service.CommentService
	interactionService *service.InteractionService
	followService      *service.FollowService
	aiService          *service.AIService
	uploadService      *service.UploadService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB, Redis and NATS.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	middleware.InitMiddleware(cfg)

	store := deps.Store
	if store == nil {
		var err error
		if store, err = storage.New(cfg); err != nil {
			return nil, err
		}
	}
	llm := deps.LLM
	if llm == nil {
		prompts, err := ai.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		llm = ai.NewClient(ai.Options{
			APIKey:  cfg.AIAPIKey,
			BaseURL: cfg.AIBaseURL,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout(),
		}, prompts)
	}

	s := &Server{
		config:       cfg,
		db:           deps.DB,
		redis:        deps.Redis,
		bus:          deps.Bus,
		llm:          llm,
		hub:          notifications.NewHub(),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}

	// With Redis every instance receives events through the subscriber;
	// without it the local hub is the only realtime sink.
	var realtime service.EventPublisher = s.hub
	if deps.Redis != nil {
		s.notifier = notifications.NewNotifier(deps.Redis)
		realtime = s.notifier
	}
	sinks := []service.EventPublisher{realtime}
	if deps.Bus != nil {
		sinks = append(sinks, deps.Bus)
	}
	events := service.NewEmitter(sinks...)

	userRepo := repository.NewUserRepository(deps.DB)
	postRepo := repository.NewPostRepository(deps.DB)

	s.aiService = service.NewAIService(llm, postRepo, userRepo, nil, s.featureFlags)
	s.userService = service.NewUserService(userRepo)
	s.postService = service.NewPostService(
		postRepo,
		repository.NewTagRepository(deps.DB),
		repository.NewImageRepository(deps.DB),
		userRepo,
		s.aiService.SuggestTags,
		s.featureFlags,
		events,
	)
	s.aiService.SetPostService(s.postService)
	s.commentService = service.NewCommentService(repository.NewCommentRepository(deps.DB), postRepo, userRepo, events)
	s.interactionService = service.NewInteractionService(
		repository.NewReactionRepository(deps.DB, models.ReactionLike),
		repository.NewReactionRepository(deps.DB, models.ReactionFavorite),
		postRepo,
		userRepo,
		s.postService,
		events,
	)
	s.followService = service.NewFollowService(repository.NewFollowRepository(deps.DB), userRepo, events)
	s.uploadService = service.NewUploadService(store, cfg)

	return s, nil
}

const globalRequestsPerMinute = 100

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.Tracing())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global per-IP limit
	app.Use(limiter.New(limiter.Config{
		Max:        globalRequestsPerMinute,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.RateLimitEnabled
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	if s.config.StorageDriver == "" || s.config.StorageDriver == "local" {
		app.Static("/uploads", s.config.UploadDir, fiber.Static{MaxAge: 3600})
	}

	app.Get("/ws", middleware.WebSocketAuthRequired, s.WebsocketHandler())

	api := app.Group("/api")
	api.Get("/features", middleware.OptionalAuth, s.GetFeatureFlags)

	writes := middleware.RateLimit(s.redis, 60, time.Minute, "write")
	aiLimit := middleware.RateLimitWithPolicy(s.redis, 10, time.Minute, middleware.FailClosed, "ai")

	// Users. Specific /me routes go before /:userId.
	users := api.Group("/users")
	users.Post("/sync", middleware.AuthRequired, writes, s.SyncUser)
	users.Get("/me", middleware.AuthRequired, s.GetMyProfile)
	users.Patch("/me/bio", middleware.AuthRequired, writes, s.UpdateMyBio)
	users.Get("/me/posts", middleware.AuthRequired, s.GetMyPosts)
	users.Get("/me/likes", middleware.AuthRequired, s.GetMyLikedPosts)
	users.Get("/me/favorites", middleware.AuthRequired, s.GetMyFavoritedPosts)
	users.Get("/:userId/posts", middleware.OptionalAuth, s.GetUserPosts)
	users.Get("/:userId/likes", middleware.OptionalAuth, s.GetUserLikedPosts)
	users.Get("/:userId/favorites", middleware.OptionalAuth, s.GetUserFavoritedPosts)
	users.Post("/:userId/follow/toggle", middleware.AuthRequired, writes, s.ToggleFollow)
	users.Post("/:userId/follow", middleware.AuthRequired, writes, s.FollowUser)
	users.Delete("/:userId/follow", middleware.AuthRequired, writes, s.UnfollowUser)
	users.Get("/:userId/follow/status", middleware.AuthRequired, s.GetFollowStatus)
	users.Get("/:userId/follow/stats", s.GetFollowStats)
	users.Get("/:userId/following", s.GetFollowing)
	users.Get("/:userId/followers", s.GetFollowers)
	users.Get("/:userId", s.GetUserProfile)

	// Posts. Specific /tag and /:postId/:resource routes go before /:postId.
	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth, s.GetPosts)
	posts.Post("/", middleware.AuthRequired, writes, s.CreatePost)
	posts.Get("/tag/:name", middleware.OptionalAuth, s.GetPostsByTag)
	posts.Get("/:postId/stats", s.GetPostStats)
	posts.Get("/:postId/ownership", middleware.AuthRequired, s.CheckPostOwnership)
	posts.Post("/:postId/images", middleware.AuthRequired, writes, s.AddPostImage)
	posts.Get("/:postId/comments", s.GetComments)
	posts.Post("/:postId/comments", middleware.AuthRequired, writes, s.CreateComment)
	posts.Post("/:postId/like/toggle", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionLike, reactionToggle))
	posts.Post("/:postId/like", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionLike, reactionAdd))
	posts.Delete("/:postId/like", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionLike, reactionRemove))
	posts.Post("/:postId/favorite/toggle", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionFavorite, reactionToggle))
	posts.Post("/:postId/favorite", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionFavorite, reactionAdd))
	posts.Delete("/:postId/favorite", middleware.AuthRequired, writes, s.reactionHandler(models.ReactionFavorite, reactionRemove))
	posts.Get("/:postId", middleware.OptionalAuth, s.GetPost)
	posts.Delete("/:postId", middleware.AuthRequired, writes, s.DeletePost)

	api.Delete("/comments/:commentId", middleware.AuthRequired, writes, s.DeleteComment)

	aiRoutes := api.Group("/ai")
	aiRoutes.Post("/translate", middleware.AuthRequired, aiLimit, s.Translate)
	aiRoutes.Post("/tags", middleware.AuthRequired, aiLimit, s.GenerateTags)
	aiRoutes.Get("/search", middleware.OptionalAuth, aiLimit, s.SearchPosts)

	api.Post("/upload", middleware.AuthRequired, writes, s.UploadFile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Only the database is
// required; Redis, NATS and the LLM provider are reported but optional.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	natsStatus := "unavailable"
	if s.bus != nil {
		natsStatus = "healthy"
		if !s.bus.Connected() {
			natsStatus = "unhealthy"
		}
	}

	aiStatus := "configured"
	if client, ok := s.llm.(*ai.Client); ok && !client.Configured() {
		aiStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"nats":     natsStatus,
			"ai":       aiStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Quill API",
		BodyLimit:    int(s.uploadBodyLimit()),
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// uploadBodyLimit leaves room for multipart framing around the largest file.
func (s *Server) uploadBodyLimit() int64 {
	max := s.config.UploadMaxBytes
	if max <= 0 {
		max = service.DefaultUploadMaxBytes
	}
	return max + 1<<20
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusRequestEntityTooLarge:
			code = models.CodePayloadTooBig
		case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest:
			code = models.CodeBadRequest
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	return respondServiceError(c, err)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.promMiddleware = fiberprometheus.New("quill-api")
	s.app = s.App()

	// Forward Redis notifications to this instance's websocket clients.
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	s.bus.Close()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
