package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "NOTEHUB"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultLogLevel           = "info"
	defaultStorageDriver      = StorageDriverMongo
	defaultMongoURI           = "mongodb://localhost:27017"
	defaultMongoDatabase      = "notehub"
	defaultChatDatabasePath   = "notehub-chat.db"
	defaultAuthIssuer         = "notehub-auth"
	defaultTokenTTLHours      = 24 * 7
	defaultMediaRegion        = "us-east-1"
	defaultMediaFolder        = "college-notes"
	defaultMaxUploadBytes     = 25 << 20
	defaultRedisChannel       = "notehub:chat"
	defaultCORSAllowedOrigins = "*"
)

const (
	// StorageDriverMongo keeps users, organizations and notes in MongoDB.
	StorageDriverMongo = "mongo"
	// StorageDriverMemory keeps them in process memory; data is lost on restart.
	StorageDriverMemory = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	LogLevel           string
	StorageDriver      string
	MongoURI           string
	MongoDatabase      string
	ChatDatabasePath   string
	SigningSecret      string
	TokenIssuer        string
	TokenTTL           time.Duration
	Media              MediaConfig
	Redis              RedisConfig
	CORSAllowedOrigins []string
}

// MediaConfig describes the S3-compatible bucket that receives note attachments.
type MediaConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	PublicBaseURL  string
	Folder         string
	MaxUploadBytes int64
}

// Enabled reports whether attachments can be relayed.
func (c MediaConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// RedisConfig enables cross-instance chat fan-out when Address is set.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("mongo.uri", defaultMongoURI)
	configViper.SetDefault("mongo.database", defaultMongoDatabase)
	configViper.SetDefault("chat.database_path", defaultChatDatabasePath)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.token_ttl_hours", defaultTokenTTLHours)
	configViper.SetDefault("media.region", defaultMediaRegion)
	configViper.SetDefault("media.folder", defaultMediaFolder)
	configViper.SetDefault("media.max_upload_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("redis.channel", defaultRedisChannel)
	configViper.SetDefault("cors.allowed_origins", defaultCORSAllowedOrigins)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		LogLevel:         configViper.GetString("log.level"),
		StorageDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		MongoURI:         configViper.GetString("mongo.uri"),
		MongoDatabase:    configViper.GetString("mongo.database"),
		ChatDatabasePath: configViper.GetString("chat.database_path"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenIssuer:      configViper.GetString("auth.issuer"),
		TokenTTL:         time.Duration(configViper.GetInt("auth.token_ttl_hours")) * time.Hour,
		Media: MediaConfig{
			Bucket:         configViper.GetString("media.bucket"),
			Region:         configViper.GetString("media.region"),
			Endpoint:       configViper.GetString("media.endpoint"),
			PublicBaseURL:  configViper.GetString("media.public_base_url"),
			Folder:         configViper.GetString("media.folder"),
			MaxUploadBytes: configViper.GetInt64("media.max_upload_bytes"),
		},
		Redis: RedisConfig{
			Address:  configViper.GetString("redis.address"),
			Password: configViper.GetString("redis.password"),
			DB:       configViper.GetInt("redis.db"),
			Channel:  configViper.GetString("redis.channel"),
		},
		CORSAllowedOrigins: splitList(configViper.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.StorageDriver {
	case StorageDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("mongo.uri is required")
		}
		if strings.TrimSpace(c.MongoDatabase) == "" {
			return fmt.Errorf("mongo.database is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StorageDriverMongo, StorageDriverMemory, c.StorageDriver)
	}
	if strings.TrimSpace(c.ChatDatabasePath) == "" {
		return fmt.Errorf("chat.database_path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_hours must be positive")
	}
	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("media.max_upload_bytes must be positive")
	}
	if c.Redis.Enabled() && strings.TrimSpace(c.Redis.Channel) == "" {
		return fmt.Errorf("redis.channel is required when redis.address is set")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
