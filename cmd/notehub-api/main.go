package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/MarcoPoloResearchLab/notehub/internal/chat"
	"github.com/MarcoPoloResearchLab/notehub/internal/config"
	"github.com/MarcoPoloResearchLab/notehub/internal/database"
	"github.com/MarcoPoloResearchLab/notehub/internal/logging"
	"github.com/MarcoPoloResearchLab/notehub/internal/media"
	"github.com/MarcoPoloResearchLab/notehub/internal/notes"
	"github.com/MarcoPoloResearchLab/notehub/internal/organizations"
	"github.com/MarcoPoloResearchLab/notehub/internal/server"
	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notehub-api",
		Short: "Notehub note sharing and chat backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before configuration")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("storage-driver", defaults.GetString("storage.driver"), "Document storage driver (mongo, memory)")
	cmd.PersistentFlags().String("mongo-uri", defaults.GetString("mongo.uri"), "MongoDB connection URI")
	cmd.PersistentFlags().String("mongo-database", defaults.GetString("mongo.database"), "MongoDB database name")
	cmd.PersistentFlags().String("chat-database-path", defaults.GetString("chat.database_path"), "SQLite chat log path")
	cmd.PersistentFlags().Int("token-ttl-hours", defaults.GetInt("auth.token_ttl_hours"), "Session token TTL in hours")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("media-bucket", "", "S3 bucket for note attachments")
	cmd.PersistentFlags().String("redis-address", "", "Redis address for cross-instance chat fan-out")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "storage.driver", "storage-driver")
	bindFlag(cmd, "mongo.uri", "mongo-uri")
	bindFlag(cmd, "mongo.database", "mongo-database")
	bindFlag(cmd, "chat.database_path", "chat-database-path")
	bindFlag(cmd, "auth.token_ttl_hours", "token-ttl-hours")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "media.bucket", "media-bucket")
	bindFlag(cmd, "redis.address", "redis-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type documentStores struct {
	notes         notes.Store
	users         users.Store
	organizations organizations.Store
	close         func(context.Context) error
}

func openDocumentStores(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (documentStores, error) {
	if appConfig.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory document storage; data is lost on restart")
		return documentStores{
			notes:         notes.NewMemoryStore(),
			users:         users.NewMemoryStore(),
			organizations: organizations.NewMemoryStore(),
			close:         func(context.Context) error { return nil },
		}, nil
	}

	db, client, err := database.ConnectMongo(ctx, appConfig.MongoURI, appConfig.MongoDatabase, logger)
	if err != nil {
		return documentStores{}, err
	}
	noteStore, err := notes.NewMongoStore(ctx, db)
	if err != nil {
		return documentStores{}, errors.Join(err, client.Disconnect(ctx))
	}
	userStore, err := users.NewMongoStore(ctx, db)
	if err != nil {
		return documentStores{}, errors.Join(err, client.Disconnect(ctx))
	}
	organizationStore, err := organizations.NewMongoStore(ctx, db)
	if err != nil {
		return documentStores{}, errors.Join(err, client.Disconnect(ctx))
	}
	return documentStores{
		notes:         noteStore,
		users:         userStore,
		organizations: organizationStore,
		close:         client.Disconnect,
	}, nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openDocumentStores(signalCtx, appConfig, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stores.close(closeCtx); err != nil {
			logger.Warn("failed to close document store", zap.Error(err))
		}
	}()

	chatDB, err := database.OpenSQLite(appConfig.ChatDatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := chatDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}
	sessionValidator, err := tokenIssuer.Validator("")
	if err != nil {
		return err
	}

	organizationService, err := organizations.NewService(organizations.ServiceConfig{
		Store:  stores.organizations,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Store:         stores.users,
		Organizations: organizationService,
		Hasher:        auth.NewPasswordHasher(bcrypt.DefaultCost),
		Issuer:        tokenIssuer,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	noteConfig := notes.ServiceConfig{Store: stores.notes, Logger: logger}
	if appConfig.Media.Enabled() {
		uploader, err := media.NewS3Uploader(signalCtx, media.S3Config{
			Bucket:        appConfig.Media.Bucket,
			Region:        appConfig.Media.Region,
			Endpoint:      appConfig.Media.Endpoint,
			PublicBaseURL: appConfig.Media.PublicBaseURL,
			Folder:        appConfig.Media.Folder,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		noteConfig.Uploader = uploader
	} else {
		logger.Warn("media.bucket not set; note attachments are disabled")
	}
	noteService, err := notes.NewService(noteConfig)
	if err != nil {
		return err
	}

	chatStore, err := chat.NewGormStore(chatDB)
	if err != nil {
		return err
	}
	dispatcher := chat.NewDispatcher()
	chatConfig := chat.ServiceConfig{
		Store:      chatStore,
		Directory:  userService,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if appConfig.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     appConfig.Redis.Address,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		defer redisClient.Close()
		relay, err := chat.NewRedisBroadcaster(chat.RedisBroadcasterConfig{
			Client:  redisClient,
			Channel: appConfig.Redis.Channel,
			Local:   dispatcher,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := relay.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("chat relay stopped", zap.Error(err))
			}
		}()
		chatConfig.Broadcaster = relay
	}
	chatService, err := chat.NewService(chatConfig)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionValidator,
		Notes:          noteService,
		Organizations:  organizationService,
		Users:          userService,
		Chat:           chatService,
		Logger:         logger,
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		MaxUploadBytes: appConfig.Media.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Chat streams end when the signal context is cancelled, letting Shutdown drain.
		BaseContext: func(net.Listener) context.Context { return signalCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("storage_driver", appConfig.StorageDriver),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
