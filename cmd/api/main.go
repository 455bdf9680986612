package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/api/handler"
	apimiddleware "marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/api/router"
	"marketchat/internal/adapter/repository"
	domainrepo "marketchat/internal/domain/repository"
	"marketchat/internal/domain/service"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/internal/infrastructure/storage"
	"marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/config"
	"marketchat/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := credentialOptions(cfg)

	var (
		chatRepo    domainrepo.ChatRepository
		userRepo    domainrepo.UserRepository
		listingRepo domainrepo.ListingRepository
		fileRepo    domainrepo.FileMetadataRepository
		profiles    handler.ProfileRegistrar
		ping        handler.StorePinger
	)

	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		users := repository.NewMemoryUserRepository()
		chatRepo = repository.NewMemoryChatRepository()
		userRepo = users
		listingRepo = repository.NewMemoryListingRepository()
		fileRepo = repository.NewMemoryFileMetadataRepository()
		profiles = users

	default:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			logger.Fatal("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		chatRepo = repository.NewFirestoreChatRepository(firestoreClient)
		userRepo = repository.NewFirestoreUserRepository(firestoreClient)
		listingRepo = repository.NewFirestoreListingRepository(firestoreClient)
		fileRepo = repository.NewFirestoreFileMetadataRepository(firestoreClient)
		ping = firestorePing(firestoreClient)
	}

	verifier, closeVerifier := tokenVerifier(ctx, cfg, opts, profiles)
	defer closeVerifier()

	var images service.ImageStore
	if cfg.StorageBucket != "" {
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opts...)
		if err != nil {
			logger.Fatal("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		images = storageClient
	} else {
		logger.Info("STORAGE_BUCKET not set; image uploads disabled")
	}

	rateLimiter := ratelimit.NewRateLimiter(cfg.SendRatePerMinute, cfg.SendBurst)
	if err := rateLimiter.StartCleanupRoutine(10 * time.Minute); err != nil {
		logger.Fatal("Failed to schedule rate limiter cleanup: %v", err)
	}
	defer rateLimiter.Stop()

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, listingRepo, rateLimiter, cfg.SendMode == config.SendTransactional)

	wsManager := websocket.NewManager(nil)
	handler.Setup(ctx, chatUseCase, wsManager)
	wsManager.Start(ctx)

	handler.SetupMediaHandler(images, fileRepo)
	handler.SetupHealthHandler(cfg.StoreDriver, cfg.Environment, ping)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	router.Setup(e, apimiddleware.NewAuthMiddleware(verifier), rateLimiter)

	go func() {
		logger.Info("Starting server on port %s (store=%s, auth=%s, send=%s)", cfg.ServerPort, cfg.StoreDriver, cfg.AuthMode, cfg.SendMode)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// credentialOptions prefers inline service account JSON, then a key file,
// then application default credentials.
func credentialOptions(cfg *config.Config) []option.ClientOption {
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))}
	}

	if cfg.ServiceAccountPath != "" {
		if _, err := os.Stat(cfg.ServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.ServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.ServiceAccountPath)}
	}

	return nil
}

func tokenVerifier(ctx context.Context, cfg *config.Config, opts []option.ClientOption, profiles handler.ProfileRegistrar) (apimiddleware.TokenVerifier, func()) {
	switch cfg.AuthMode {
	case config.AuthDev:
		tokens := firebase.NewDevTokens(cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)
		handler.SetupDevTokenHandler(tokens, profiles, cfg.JWTExpiry)
		logger.Warn("Development tokens enabled; do not expose this server publicly")
		return tokens, func() {}

	case config.AuthJWKS:
		verifier, err := firebase.NewJWKSVerifier(ctx, cfg.FirebaseProject)
		if err != nil {
			logger.Fatal("Failed to initialize JWKS verifier: %v", err)
		}
		return verifier, verifier.Close

	default:
		app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase: %v", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase Auth: %v", err)
		}
		return firebase.NewFirebaseVerifier(authClient), func() {}
	}
}

func firestorePing(client *firestore.Client) handler.StorePinger {
	return func(ctx context.Context) error {
		it := client.Collection("chats").Limit(1).Documents(ctx)
		defer it.Stop()
		if _, err := it.Next(); err != nil && err != iterator.Done {
			return err
		}
		return nil
	}
}
