package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/deeplink"
	"github.com/yourusername/sling-api/internal/handler"
	"github.com/yourusername/sling-api/internal/middleware"
	"github.com/yourusername/sling-api/internal/notify"
	pgRepo "github.com/yourusername/sling-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/sling-api/internal/repository/redis"
	"github.com/yourusername/sling-api/internal/service"
	"github.com/yourusername/sling-api/pkg/auth"
	"github.com/yourusername/sling-api/pkg/auth/manager"
	"github.com/yourusername/sling-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)
	identityRepo := pgRepo.NewUserIdentityRepo(db)
	betRepo := pgRepo.NewBetRepo(db)
	communityRepo := pgRepo.NewCommunityRepo(db)

	refreshTokenRepo, err := pgRepo.NewRefreshTokenRepo(db)
	if err != nil {
		log.Printf("Failed to initialize RefreshTokenRepo: %v", err)
		os.Exit(1)
	}

	nonceStore, err := redisRepo.NewNonceStore(redisClient, time.Duration(cfg.Auth.NonceTTLSeconds)*time.Second)
	if err != nil {
		log.Printf("Failed to initialize NonceStore: %v", err)
		os.Exit(1)
	}

	// Tokens
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	tokenManager, err := manager.NewTokenManager(jwtService, refreshTokenRepo, userRepo)
	if err != nil {
		log.Printf("Failed to initialize TokenManager: %v", err)
		os.Exit(1)
	}
	tokenManager.SetAccessTokenExpiry(time.Duration(cfg.JWT.ExpirationHrs) * time.Hour)
	tokenManager.SetRefreshTokenExpiry(time.Duration(cfg.Auth.RefreshTokenLifetime) * 24 * time.Hour)
	tokenManager.SetMaxRefreshTokensPerUser(cfg.Auth.SessionLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Auth services
	telemetry := service.LogTelemetry{}

	appleSvc, err := service.NewAppleCredentialService(nonceStore, cfg.Apple, telemetry)
	if err != nil {
		log.Printf("Failed to initialize AppleCredentialService: %v", err)
		os.Exit(1)
	}
	googleSvc, err := service.NewGoogleCredentialService(cfg.Google)
	if err != nil {
		log.Printf("Failed to initialize GoogleCredentialService: %v", err)
		os.Exit(1)
	}
	emailCredSvc, err := service.NewEmailCredentialService(userRepo)
	if err != nil {
		log.Printf("Failed to initialize EmailCredentialService: %v", err)
		os.Exit(1)
	}

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.ResendAPIKey != "" {
		from := fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.FromAddress)
		resendSvc, errEmail := service.NewResendEmailService(cfg.Email.ResendAPIKey, from)
		if errEmail != nil {
			log.Printf("Failed to initialize ResendEmailService, falling back to noop: %v", errEmail)
		} else {
			emailService = resendSvc
		}
	} else {
		log.Println("RESEND_API_KEY not set, welcome emails disabled")
	}

	resolver, err := service.NewProfileResolver(userRepo, identityRepo, emailService, telemetry)
	if err != nil {
		log.Printf("Failed to initialize ProfileResolver: %v", err)
		os.Exit(1)
	}

	orchestrator, err := service.NewAuthOrchestrator(
		[]service.CredentialProvider{appleSvc, googleSvc, emailCredSvc},
		emailCredSvc,
		resolver,
		tokenManager,
		nonceStore,
		telemetry,
		time.Duration(cfg.Auth.CeremonySeconds)*time.Second,
	)
	if err != nil {
		log.Printf("Failed to initialize AuthOrchestrator: %v", err)
		os.Exit(1)
	}

	// Deep links
	linkRouter, err := deeplink.NewRouter(cfg.DeepLink.Scheme, cfg.DeepLink.UniversalHost)
	if err != nil {
		log.Printf("Failed to initialize deep link router: %v", err)
		os.Exit(1)
	}
	linkChannel := deeplink.NewChannel()
	linkDispatcher, err := deeplink.NewDispatcher(linkChannel, betRepo)
	if err != nil {
		log.Printf("Failed to initialize deep link dispatcher: %v", err)
		os.Exit(1)
	}

	// Session revocation notifications over WebSocket
	hub := notify.NewHub()

	// Periodic cleanup of expired refresh tokens
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Println("Starting hourly cleanup of expired refresh tokens")

		for {
			select {
			case <-ticker.C:
				if err := tokenManager.CleanupExpiredTokens(); err != nil {
					log.Printf("Token cleanup failed: %v", err)
				}
			case <-ctx.Done():
				log.Println("Stopping token cleanup goroutine")
				return
			}
		}
	}()

	// Handlers and middleware
	authHandler := handler.NewMobileAuthHandler(orchestrator, appleSvc, resolver, tokenManager, hub)
	deepLinkHandler := handler.NewDeepLinkHandler(linkRouter, linkChannel, linkDispatcher, communityRepo)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Mobile clients send no Origin, but universal links open in browsers too.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://sling.app", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		mobile := api.Group("/mobile")
		{
			authGroup := mobile.Group("/auth")
			authGroup.Use(rateLimiter.Limit(middleware.DefaultAuthRateLimitConfig()))
			{
				authGroup.POST("/apple/begin", authHandler.AppleBegin)
				authGroup.POST("/apple", authHandler.AppleSignIn)
				authGroup.POST("/google", authHandler.GoogleSignIn)
				authGroup.POST("/email/signin", authHandler.EmailSignIn)
				authGroup.POST("/email/signup", rateLimiter.LimitByIP(middleware.StrictAuthRateLimitConfig()), authHandler.EmailSignUp)
				authGroup.POST("/refresh", authHandler.Refresh)
				authGroup.POST("/logout", authHandler.Logout)
				authGroup.GET("/display-name/check", authHandler.CheckDisplayName)

				authed := authGroup.Group("/")
				authed.Use(authMiddleware.RequireAuth())
				{
					authed.GET("/sessions", authHandler.Sessions)
					authed.POST("/logout-all", authHandler.LogoutAllDevices)
				}
			}

			links := mobile.Group("/links")
			links.Use(authMiddleware.RequireAuth())
			{
				links.POST("/resolve", deepLinkHandler.Resolve)
			}

			mobile.GET("/ws", authMiddleware.RequireAuth(), func(c *gin.Context) {
				userID, exists := c.Get("user_id")
				if !exists {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
					return
				}
				if err := hub.Serve(c.Writer, c.Request, userID.(uint)); err != nil {
					log.Printf("[WS] Upgrade failed for user %d: %v", userID.(uint), err)
				}
			})
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
