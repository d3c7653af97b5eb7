// Package config provides configuration loading for mcp-server-qdrant.
//
// Configuration is read from an optional YAML or TOML file and then overridden by
// environment variables such as QDRANT_URL, COLLECTION_NAME and EMBEDDING_MODEL.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default values applied when neither the config file nor the environment sets a field.
const (
	DefaultQdrantURL         = "http://localhost:6334"
	DefaultSearchLimit       = 10
	DefaultEmbeddingProvider = "fastembed"
	DefaultEmbeddingModel    = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultCollection        = "default"
	DefaultTopK              = 3
	DefaultServerHost        = "0.0.0.0"
	DefaultServerPort        = 8000
	DefaultSubjectPrefix     = "memory"

	DefaultStoreDescription = "Keep the memory for later use, when you are asked to remember something."
	DefaultFindDescription  = "Look up memories in Qdrant. Use this tool when you need to: \n" +
		" - Find memories by their content \n" +
		" - Access memories for further analysis \n" +
		" - Get some personal information about the user"
)

// qdrantRESTPort is the HTTP port users commonly put in QDRANT_URL; the gRPC client
// talks to qdrantGRPCPort instead.
const (
	qdrantRESTPort = 6333
	qdrantGRPCPort = 6334
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete server configuration.
type Config struct {
	Qdrant        QdrantConfig        `koanf:"qdrant"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	Tools         ToolsConfig         `koanf:"tools"`
	Memory        MemoryConfig        `koanf:"memory"`
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Events        EventsConfig        `koanf:"events"`
}

// QdrantConfig describes where memories are stored.
type QdrantConfig struct {
	// URL of the Qdrant server, either http(s)://host:port or host:port.
	URL    string `koanf:"url"`
	APIKey Secret `koanf:"api_key"`

	// CollectionName pins the collection used by the store and find tools.
	// Empty means callers must name the collection.
	CollectionName string `koanf:"collection_name"`

	// LocalPath switches to the embedded chromem-go store persisted at this path.
	LocalPath string `koanf:"local_path"`

	SearchLimit int `koanf:"search_limit"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string  `koanf:"provider"`
	Model     string  `koanf:"model"`
	BaseURL   string  `koanf:"base_url"`
	APIKey    Secret  `koanf:"api_key"`
	CacheDir  string  `koanf:"cache_dir"`
	RateLimit float64 `koanf:"rate_limit"`
}

// ToolsConfig holds the descriptions advertised for the store and find tools.
type ToolsConfig struct {
	StoreDescription string `koanf:"store_description"`
	FindDescription  string `koanf:"find_description"`
}

// MemoryConfig holds defaults for the memory_upsert and memory_query tools.
type MemoryConfig struct {
	DefaultCollection string `koanf:"default_collection"`
	DefaultTopK       int    `koanf:"default_top_k"`
}

// ServerConfig holds the bind address for the HTTP transports.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds the subset of logging settings exposed through the environment.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// EventsConfig configures the optional NATS memory event stream.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Enabled reports whether memory events should be published.
func (e EventsConfig) Enabled() bool {
	return e.NATSURL != ""
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = DefaultQdrantURL
	}
	if cfg.Qdrant.SearchLimit == 0 {
		cfg.Qdrant.SearchLimit = DefaultSearchLimit
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = DefaultEmbeddingProvider
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.CacheDir == "" {
		cfg.Embedding.CacheDir = "~/.cache/mcp-server-qdrant/models"
	}
	if cfg.Embedding.RateLimit == 0 {
		cfg.Embedding.RateLimit = 10
	}

	if cfg.Tools.StoreDescription == "" {
		cfg.Tools.StoreDescription = DefaultStoreDescription
	}
	if cfg.Tools.FindDescription == "" {
		cfg.Tools.FindDescription = DefaultFindDescription
	}

	if cfg.Memory.DefaultCollection == "" {
		cfg.Memory.DefaultCollection = DefaultCollection
	}
	if cfg.Memory.DefaultTopK == 0 {
		cfg.Memory.DefaultTopK = DefaultTopK
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "mcp-server-qdrant"
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = DefaultSubjectPrefix
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Qdrant.LocalPath == "" {
		if _, _, _, err := c.Qdrant.Endpoint(); err != nil {
			return err
		}
	}
	if c.Qdrant.SearchLimit < 1 {
		return fmt.Errorf("%w: search limit must be positive, got %d", ErrInvalidConfig, c.Qdrant.SearchLimit)
	}

	switch c.Embedding.Provider {
	case "fastembed", "openai", "tei":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q (supported: fastembed, openai, tei)", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("%w: embedding rate limit cannot be negative", ErrInvalidConfig)
	}

	if c.Memory.DefaultTopK < 1 {
		return fmt.Errorf("%w: default top_k must be positive, got %d", ErrInvalidConfig, c.Memory.DefaultTopK)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: log format must be 'json' or 'console', got %q", ErrInvalidConfig, c.Logging.Format)
	}

	if c.Observability.Enabled && c.Observability.ServiceName == "" {
		return fmt.Errorf("%w: service name required when telemetry is enabled", ErrInvalidConfig)
	}

	return nil
}

// Endpoint splits the Qdrant URL into the gRPC host, port and TLS flag.
//
// Accepted forms: "http://host:6334", "https://host", "host:6334", "host".
// Port 6333 (REST) is translated to 6334 (gRPC).
func (q QdrantConfig) Endpoint() (host string, port int, useTLS bool, err error) {
	raw := strings.TrimSpace(q.URL)
	if raw == "" {
		return "", 0, false, fmt.Errorf("%w: qdrant url is required", ErrInvalidConfig)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: parsing qdrant url %q: %v", ErrInvalidConfig, q.URL, err)
	}

	switch u.Scheme {
	case "http":
	case "https":
		useTLS = true
	default:
		return "", 0, false, fmt.Errorf("%w: unsupported qdrant url scheme %q", ErrInvalidConfig, u.Scheme)
	}

	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("%w: qdrant url %q has no host", ErrInvalidConfig, q.URL)
	}

	port = qdrantGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", 0, false, fmt.Errorf("%w: invalid qdrant port %q", ErrInvalidConfig, p)
		}
	}
	if port == qdrantRESTPort {
		port = qdrantGRPCPort
	}

	return host, port, useTLS, nil
}
