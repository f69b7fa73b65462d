package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for a speechflow stage process.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Storage  StorageConfig
	Bus      BusConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Staging  StagingConfig
	Filter   FilterConfig
	Splitter SplitterConfig
	Media    MediaConfig
	STT      STTConfig
	Ledger   LedgerConfig
	Upload   UploadConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"speechflow"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	// EventSource is written to ce-source on every emitted event.
	EventSource string `env:"APP_EVENT_SOURCE"`
}

type HTTPConfig struct {
	Port           int           `env:"PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	HandlerTimeout time.Duration `env:"HTTP_HANDLER_TIMEOUT" envDefault:"14m"`
}

// Addr returns the listen address derived from PORT.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"MINIO_ENDPOINT" envDefault:"minio.minio:9000"`
	Region    string `env:"MINIO_REGION"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type BusConfig struct {
	Transport    string        `env:"BUS_TRANSPORT" envDefault:"http"`
	SinkURL      string        `env:"K_SINK"`
	SinkTimeout  time.Duration `env:"BUS_SINK_TIMEOUT" envDefault:"10s"`
	KafkaConsume bool          `env:"BUS_KAFKA_CONSUME" envDefault:"false"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic            string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"speechflow.events"`
	GroupID          string        `env:"KAFKA_GROUP_ID"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=speechflow"`
}

type StagingConfig struct {
	Dir string `env:"STAGING_DIR"`
}

type FilterConfig struct {
	ExcludedPrefixes []string `env:"INGEST_EXCLUDED_PREFIXES" envSeparator:"," envDefault:"results/,locks/,chunks/"`
	ExcludedSuffixes []string `env:"INGEST_EXCLUDED_SUFFIXES" envSeparator:"," envDefault:"_merged.mp3,_tts.txt,/merged.mp3,/transcript.srt"`
}

type SplitterConfig struct {
	MinSilenceMs    int64   `env:"SPLIT_MIN_SILENCE_MS" envDefault:"700"`
	SilenceOffsetDB float64 `env:"SPLIT_SILENCE_OFFSET_DB" envDefault:"-40"`
}

type MediaConfig struct {
	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
}

type STTConfig struct {
	BaseURL  string `env:"STT_BASE_URL"`
	APIKey   string `env:"OPENAI_API_KEY"`
	Model    string `env:"STT_MODEL" envDefault:"whisper-1"`
	Language string `env:"STT_LANGUAGE" envDefault:"en"`
}

type LedgerConfig struct {
	Enabled       bool          `env:"LEDGER_ENABLED" envDefault:"false"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"LEDGER_TTL" envDefault:"24h"`
}

// UploadConfig controls the direct upload endpoint of the ingest filter.
type UploadConfig struct {
	Enabled           bool   `env:"UPLOAD_ENABLED" envDefault:"true"`
	Bucket            string `env:"UPLOAD_BUCKET" envDefault:"audio"`
	MaxSizeBytes      int64  `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"536870912"`
	MultipartMemBytes int64  `env:"UPLOAD_MULTIPART_MEM_BYTES" envDefault:"33554432"`
	// Announce runs the filter on the stored object immediately instead of
	// waiting for the store's own notification.
	Announce bool `env:"UPLOAD_ANNOUNCE" envDefault:"false"`
}

type PipelineConfig struct {
	SegmentConcurrency int `env:"SEGMENT_CONCURRENCY" envDefault:"4"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.App.EventSource == "" {
		cfg.App.EventSource = cfg.App.Name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations no stage can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Bus.Transport {
	case "http", "kafka":
	default:
		errs = append(errs, fmt.Errorf("unsupported BUS_TRANSPORT %q", c.Bus.Transport))
	}
	if c.Bus.Transport == "kafka" && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required for kafka transport"))
	}
	if c.Bus.KafkaConsume && c.Kafka.GroupID == "" {
		errs = append(errs, errors.New("KAFKA_GROUP_ID is required when BUS_KAFKA_CONSUME is set"))
	}
	if c.Pipeline.SegmentConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SEGMENT_CONCURRENCY must be >= 1, got %d", c.Pipeline.SegmentConcurrency))
	}
	if c.Splitter.MinSilenceMs <= 0 {
		errs = append(errs, fmt.Errorf("SPLIT_MIN_SILENCE_MS must be positive, got %d", c.Splitter.MinSilenceMs))
	}
	if c.Upload.Enabled && c.Upload.Bucket == "" {
		errs = append(errs, errors.New("UPLOAD_BUCKET is required when uploads are enabled"))
	}
	if c.HTTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.HTTP.Port))
	}
	return errors.Join(errs...)
}
