package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memex/internal/cache"
	"github.com/starford/memex/internal/embed"
	"github.com/starford/memex/internal/search"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Knowledge KnowledgeConfig   `yaml:"knowledge"`
	Search    SearchConfig      `yaml:"search"`
	Sync      SyncConfig        `yaml:"sync"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Knowledge.Validate(); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// KnowledgeConfig locates the knowledge documents and describes their vocabulary.
type KnowledgeConfig struct {
	RepoRoot        string   `yaml:"repo_root"`
	RootDir         string   `yaml:"root_dir"`
	Types           []string `yaml:"types"`
	RecommendedTags []string `yaml:"recommended_tags"`
}

// Validate validates the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RepoRoot, validation.Required),
		validation.Field(&c.RootDir, validation.Required),
		validation.Field(&c.Types, validation.Required),
	)
}

// KnowledgePath returns the absolute-or-relative path of the knowledge directory.
func (c *KnowledgeConfig) KnowledgePath() string {
	return filepath.Join(c.RepoRoot, filepath.FromSlash(c.RootDir))
}

// SearchConfig selects the search backend.
type SearchConfig struct {
	Backend  string         `yaml:"backend"`
	Semantic SemanticConfig `yaml:"semantic"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(search.KindBM25, search.KindSubstring, search.KindSemantic)),
	); err != nil {
		return err
	}
	if c.Backend != search.KindSemantic {
		return nil
	}
	if err := c.Semantic.Validate(); err != nil {
		return fmt.Errorf("semantic: %w", err)
	}
	return nil
}

// SemanticEnabled reports whether embedding search should be attempted:
// the semantic backend is selected and an API key is present.
func (c *SearchConfig) SemanticEnabled() bool {
	return c.Backend == search.KindSemantic && c.Semantic.APIKey != ""
}

// SemanticConfig configures the embedding provider and its on-disk cache.
// An empty Model or BaseURL means the provider default.
type SemanticConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	CachePath      string        `yaml:"cache_path"`
	CacheFormat    string        `yaml:"cache_format"`
	BatchSize      int           `yaml:"batch_size"`
	Timeout        time.Duration `yaml:"timeout"`
	QueryCacheSize int           `yaml:"query_cache_size"`
}

// Validate validates the semantic configuration.
func (c *SemanticConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(embed.ProviderOpenAI, embed.ProviderGemini)),
		validation.Field(&c.CachePath, validation.Required),
		validation.Field(&c.CacheFormat, validation.In(cache.FormatJSON, cache.FormatSQLite)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.QueryCacheSize, validation.Min(0)),
	)
}

// EmbedConfig converts c into the provider configuration.
func (c *SemanticConfig) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:       c.Provider,
		Model:          c.Model,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		QueryCacheSize: c.QueryCacheSize,
	}
}

// CacheFile resolves CachePath against the repository root unless it is absolute.
func (c *SemanticConfig) CacheFile(repoRoot string) string {
	if filepath.IsAbs(c.CachePath) {
		return c.CachePath
	}
	return filepath.Join(repoRoot, filepath.FromSlash(c.CachePath))
}

// SyncConfig controls pulling upstream changes and watching the knowledge dir.
type SyncConfig struct {
	AutoPull     bool          `yaml:"auto_pull"`
	PullInterval time.Duration `yaml:"pull_interval"`
	PullTimeout  time.Duration `yaml:"pull_timeout"`
	Watch        bool          `yaml:"watch"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PullInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.PullTimeout, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8787,
			},
		},
		Knowledge: KnowledgeConfig{
			RepoRoot:        ".",
			RootDir:         "knowledge",
			Types:           []string{"concept", "reference", "insight", "question", "note"},
			RecommendedTags: []string{"ml", "systems", "math", "programming"},
		},
		Search: SearchConfig{
			Backend: search.KindBM25,
			Semantic: SemanticConfig{
				Provider:       embed.ProviderOpenAI,
				CachePath:      ".memex/embeddings.json",
				CacheFormat:    cache.FormatJSON,
				BatchSize:      search.DefaultBatchSize,
				Timeout:        search.DefaultEmbedTimeout,
				QueryCacheSize: embed.DefaultQueryCacheSize,
			},
		},
		Sync: SyncConfig{
			AutoPull:     true,
			PullInterval: 60 * time.Second,
			PullTimeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
