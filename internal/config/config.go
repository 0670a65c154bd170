package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	VecIndex   VecIndexConfig   `yaml:"vecindex" mapstructure:"vecindex"`
	Kafka      KafkaConfig      `yaml:"kafka" mapstructure:"kafka"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Retriever  RetrieverConfig  `yaml:"retriever" mapstructure:"retriever"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Chunk      ChunkConfig      `yaml:"chunk" mapstructure:"chunk"`
	Anonymizer AnonymizerConfig `yaml:"anonymizer" mapstructure:"anonymizer"`
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`
	Wait       WaitConfig       `yaml:"wait" mapstructure:"wait"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	Model        string `yaml:"model" mapstructure:"model"`
	SummaryModel string `yaml:"summary_model" mapstructure:"summary_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina embeddings API settings.
type JinaConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	Model   string  `yaml:"model" mapstructure:"model"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// VecIndexConfig configures the chunk vector index.
type VecIndexConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// KafkaConfig configures the message broker.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	GroupID string   `yaml:"group_id" mapstructure:"group_id"`
}

// RedisConfig configures the notification broadcaster.
type RedisConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Channel string `yaml:"channel" mapstructure:"channel"`
}

// NotionConfig holds Notion API credentials and database IDs for the
// criteria tree registry.
type NotionConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	TypificationDB string `yaml:"typification_db" mapstructure:"typification_db"`
	TaxonomyDB     string `yaml:"taxonomy_db" mapstructure:"taxonomy_db"`
	BranchDB       string `yaml:"branch_db" mapstructure:"branch_db"`
	InstitutionDB  string `yaml:"institution_db" mapstructure:"institution_db"`
}

// RetrieverConfig configures context retrieval.
type RetrieverConfig struct {
	TopK   int `yaml:"top_k" mapstructure:"top_k"`
	Margin int `yaml:"margin" mapstructure:"margin"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ChunkConfig configures text chunking.
type ChunkConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`
	Overlap int `yaml:"overlap" mapstructure:"overlap"`
}

// AnonymizerConfig configures entity detection.
type AnonymizerConfig struct {
	Institutions []string `yaml:"institutions" mapstructure:"institutions"`
}

// EvaluationConfig configures the evaluation orchestrator.
type EvaluationConfig struct {
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	BatchPollSecs    int `yaml:"batch_poll_secs" mapstructure:"batch_poll_secs"`
	BatchTimeoutMins int `yaml:"batch_timeout_mins" mapstructure:"batch_timeout_mins"`
}

// WaitConfig configures the synchronous completion wait.
type WaitConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	MaxAttempts  int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// StorageConfig configures release file storage.
type StorageConfig struct {
	Backend string    `yaml:"backend" mapstructure:"backend"`
	Dir     string    `yaml:"dir" mapstructure:"dir"`
	FTP     FTPConfig `yaml:"ftp" mapstructure:"ftp"`
}

// FTPConfig holds FTP storage credentials.
type FTPConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	BaseDir  string `yaml:"base_dir" mapstructure:"base_dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.summary_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("jina.base_url", "https://api.jina.ai")
	v.SetDefault("jina.model", "jina-embeddings-v3")
	v.SetDefault("jina.rps", 5.0)
	v.SetDefault("vecindex.driver", "sqlite")
	v.SetDefault("vecindex.path", "vectors.db")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "compliance-pipeline")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "notifications")
	v.SetDefault("retriever.top_k", 3)
	v.SetDefault("retriever.margin", 2)
	v.SetDefault("extract.provider", "local")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("chunk.size", 1500)
	v.SetDefault("chunk.overlap", 200)
	v.SetDefault("evaluation.max_retries", 3)
	v.SetDefault("evaluation.batch_poll_secs", 10)
	v.SetDefault("evaluation.batch_timeout_mins", 60)
	v.SetDefault("wait.interval_secs", 5)
	v.SetDefault("wait.max_attempts", 60)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.dir", "releases")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present and within bounds.
func (c *Config) Validate(mode string) error {
	var problems []string

	appendIf := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	checkPipeline := func() {
		appendIf(c.Store.DatabaseURL == "", "store.database_url is required")
		appendIf(c.Anthropic.Key == "", "anthropic.key is required")
		appendIf(c.Jina.Key == "", "jina.key is required")
		appendIf(c.Retriever.TopK < 1, "retriever.top_k must be >= 1")
		appendIf(c.Retriever.Margin < 0, "retriever.margin must be >= 0")
		appendIf(c.Chunk.Size < 1, "chunk.size must be >= 1")
		appendIf(c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size,
			"chunk.overlap must be in [0, chunk.size)")
		appendIf(c.Evaluation.MaxRetries < 1, "evaluation.max_retries must be >= 1")
	}

	switch mode {
	case "serve":
		checkPipeline()
		appendIf(c.Server.Port <= 0, "server.port must be > 0")
		appendIf(len(c.Kafka.Brokers) == 0, "kafka.brokers is required")
		appendIf(c.Redis.URL == "", "redis.url is required")
	case "evaluate":
		checkPipeline()
	case "migrate", "status", "report":
		appendIf(c.Store.DatabaseURL == "", "store.database_url is required")
	case "criteria":
		appendIf(c.Store.DatabaseURL == "", "store.database_url is required")
		appendIf(c.Notion.Token == "", "notion.token is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	appendIf(c.Wait.IntervalSecs < 1, "wait.interval_secs must be >= 1")
	appendIf(c.Wait.MaxAttempts < 1, "wait.max_attempts must be >= 1")

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
