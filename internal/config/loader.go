package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
	appDirName        = "mcp-server-qdrant"
)

// envKeys maps environment variables onto koanf keys.
var envKeys = map[string]string{
	"QDRANT_URL":          "qdrant.url",
	"QDRANT_API_KEY":      "qdrant.api_key",
	"COLLECTION_NAME":     "qdrant.collection_name",
	"QDRANT_LOCAL_PATH":   "qdrant.local_path",
	"QDRANT_SEARCH_LIMIT": "qdrant.search_limit",

	"EMBEDDING_PROVIDER":   "embedding.provider",
	"EMBEDDING_MODEL":      "embedding.model",
	"EMBEDDING_BASE_URL":   "embedding.base_url",
	"EMBEDDING_API_KEY":    "embedding.api_key",
	"EMBEDDING_CACHE_DIR":  "embedding.cache_dir",
	"EMBEDDING_RATE_LIMIT": "embedding.rate_limit",

	"TOOL_STORE_DESCRIPTION": "tools.store_description",
	"TOOL_FIND_DESCRIPTION":  "tools.find_description",

	"MEMORY_DEFAULT_COLLECTION": "memory.default_collection",
	"MEMORY_DEFAULT_TOP_K":      "memory.default_top_k",

	"SERVER_HOST":             "server.host",
	"SERVER_PORT":             "server.port",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",

	"OTEL_ENABLE":                 "observability.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "observability.endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL": "observability.protocol",
	"OTEL_EXPORTER_OTLP_INSECURE": "observability.insecure",
	"OTEL_SERVICE_NAME":           "observability.service_name",

	"NATS_URL":            "events.nats_url",
	"NATS_SUBJECT_PREFIX": "events.subject_prefix",
}

// Load reads configuration from the environment only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional YAML or TOML file, then overrides
// it with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (QDRANT_URL, COLLECTION_NAME, ...)
//  2. Config file
//  3. Defaults
//
// An empty configPath skips the file. A non-empty path must live in
// ~/.config/mcp-server-qdrant/ or /etc/mcp-server-qdrant/, have 0600 or 0400
// permissions and be at most 1MB. Files ending in .toml are parsed as TOML,
// everything else as YAML.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// OPENAI_API_KEY is honoured when no provider-neutral key was given.
	if !cfg.Embedding.APIKey.IsSet() {
		cfg.Embedding.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadFile(k *koanf.Koanf, configPath string) error {
	if err := validateConfigPath(configPath); err != nil {
		return fmt.Errorf("config path validation failed: %w", err)
	}

	// Validate through the open descriptor to avoid a TOCTOU race.
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		parser = tomlParser{}
	}

	if err := k.Load(rawbytes.Provider(content), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return nil
}

// allowedConfigDirs returns the directories a config file may be loaded from.
func allowedConfigDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		filepath.Join(home, ".config", appDirName),
		filepath.Join("/etc", appDirName),
	}, nil
}

// validateConfigPath checks that path resolves into an allowed directory.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	dirs, err := allowedConfigDirs()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if resolvedDir, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolvedDir
		}
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appDirName, appDirName)
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
