package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	Session   SessionConfig   `env:",prefix=SESSION_"`
	OAuth     OAuthConfig     `env:",prefix=OAUTH_"`
	Sync      SyncConfig      `env:",prefix=SYNC_"`
	Providers ProvidersConfig `env:",prefix="`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	Env       string          `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=socialstats"`
	Password string `env:"PASSWORD,default=socialstats_password"`
	DBName   string `env:"DB,default=socialstats_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig configures validation of the externally issued session tokens
// that gate every API entry point.
type SessionConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// OAuthConfig holds the state-token signing secret and the base URL used to
// reconstruct provider callback redirect URIs.
type OAuthConfig struct {
	StateSecret string   `env:"STATE_SECRET,required"`
	BaseURL     string   `env:"BASE_URL,default=http://localhost:8080"`
	StateTTL    Duration `env:"STATE_TTL,default=10m"`
}

type SyncConfig struct {
	Throttle          Duration `env:"THROTTLE,default=500ms"`
	DefaultWindow     Duration `env:"DEFAULT_WINDOW,default=7d"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	HTTPTimeout       Duration `env:"HTTP_TIMEOUT,default=30s"`
}

type ProvidersConfig struct {
	YouTube   ProviderConfig `env:",prefix=YOUTUBE_"`
	X         ProviderConfig `env:",prefix=X_"`
	Instagram ProviderConfig `env:",prefix=INSTAGRAM_"`
	TikTok    ProviderConfig `env:",prefix=TIKTOK_"`
}

// ProviderConfig holds the OAuth client credentials for one provider.
// Endpoints and scopes are fixed per provider and filled in by Load; tests
// construct ProviderConfig values directly to point adapters at fakes.
type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	AuthEndpoint  string
	TokenEndpoint string
	Scope         string
	APIBaseURL    string
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Session.JWTSecret) < 32 {
		return nil, fmt.Errorf("SESSION_JWT_SECRET must be at least 32 characters long")
	}
	if len(config.OAuth.StateSecret) < 32 {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET must be at least 32 characters long")
	}

	config.Providers.applyEndpoints()

	return &config, nil
}

// applyEndpoints fills in the fixed per-provider OAuth endpoints, scopes and
// API bases. Only client credentials vary between deployments.
func (p *ProvidersConfig) applyEndpoints() {
	p.YouTube.AuthEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	p.YouTube.TokenEndpoint = "https://oauth2.googleapis.com/token"
	p.YouTube.Scope = "https://www.googleapis.com/auth/youtube.readonly https://www.googleapis.com/auth/yt-analytics.readonly"
	p.YouTube.APIBaseURL = "https://youtubeanalytics.googleapis.com"

	p.X.AuthEndpoint = "https://twitter.com/i/oauth2/authorize"
	p.X.TokenEndpoint = "https://api.twitter.com/2/oauth2/token"
	p.X.Scope = "tweet.read users.read offline.access"
	p.X.APIBaseURL = "https://api.twitter.com"

	p.Instagram.AuthEndpoint = "https://www.facebook.com/v18.0/dialog/oauth"
	p.Instagram.TokenEndpoint = "https://graph.facebook.com/v18.0/oauth/access_token"
	p.Instagram.Scope = "instagram_basic instagram_manage_insights pages_show_list pages_read_engagement"
	p.Instagram.APIBaseURL = "https://graph.facebook.com/v18.0"

	p.TikTok.AuthEndpoint = "https://www.tiktok.com/v2/auth/authorize/"
	p.TikTok.TokenEndpoint = "https://open.tiktokapis.com/v2/oauth/token/"
	p.TikTok.Scope = "user.info.basic user.info.stats"
	p.TikTok.APIBaseURL = "https://open.tiktokapis.com"
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
