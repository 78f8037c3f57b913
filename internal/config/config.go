package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port       int `mapstructure:"port"`       // public webhook listener
		HealthPort int `mapstructure:"healthPort"` // internal health/metrics listener
	} `mapstructure:"server"`
	Webhook struct {
		VerifyToken    string        `mapstructure:"verifyToken"`    // hub_verify_token for the GET handshake
		AutoReplyDelay time.Duration `mapstructure:"autoReplyDelay"` // settle delay before auto-reply evaluation
	} `mapstructure:"webhook"`
	NATS struct {
		URL           string     `mapstructure:"url"`
		Stream        string     `mapstructure:"stream"`        // Name of the task stream
		SubjectPrefix string     `mapstructure:"subjectPrefix"` // Base subject for lane subjects (e.g. v1.webhook)
		MaxAgeDays    int64      `mapstructure:"maxAgeDays"`    // Retention for task messages
		Messages      LaneConfig `mapstructure:"messages"`
		Media         LaneConfig `mapstructure:"media"`
		Tickets       LaneConfig `mapstructure:"tickets"`
		Autoreplies   LaneConfig `mapstructure:"autoreplies"`
		Status        LaneConfig `mapstructure:"status"`
		Account       LaneConfig `mapstructure:"account"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Admission struct {
		RefreshInterval time.Duration `mapstructure:"refreshInterval"` // how long a limit decision stays fresh
	} `mapstructure:"admission"`
	Dedup struct {
		TTL        time.Duration `mapstructure:"ttl"`        // how long a wam_id stays in the in-process cache
		MaxEntries int           `mapstructure:"maxEntries"` // cache size bound
	} `mapstructure:"dedup"`
	Media struct {
		GraphBaseURL  string        `mapstructure:"graphBaseURL"`
		FetchTimeout  time.Duration `mapstructure:"fetchTimeout"`
		LocalDir      string        `mapstructure:"localDir"`      // base dir for the local storage backend
		PublicBaseURL string        `mapstructure:"publicBaseURL"` // URL prefix under which localDir is served
	} `mapstructure:"media"`
	S3 struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"accessKey"`
		SecretKey string `mapstructure:"secretKey"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
		UseSSL    bool   `mapstructure:"useSSL"`
	} `mapstructure:"s3"`
	Notifier NotifierPoolConfig `mapstructure:"notifier"`
	Metrics  struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// LaneConfig holds configuration specific to one task lane's NATS consumer
type LaneConfig struct {
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`   // Max delivery attempts before giving up
	AckWait      time.Duration `mapstructure:"ackWait"`      // Per-attempt processing timeout
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
}

// NotifierPoolConfig holds configuration for the notifier worker pool
type NotifierPoolConfig struct {
	PoolSize       int           `mapstructure:"poolSize"`       // Number of workers
	QueueSize      int           `mapstructure:"queueSize"`      // Task queue buffer size
	MaxBlock       time.Duration `mapstructure:"maxBlock"`       // Max time to block when submitting if queue full
	ExpiryTime     time.Duration `mapstructure:"expiryTime"`     // Idle worker expiry time
	WebhookTimeout time.Duration `mapstructure:"webhookTimeout"` // Per-request timeout for outbound webhook POSTs
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.healthPort", 8081)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("webhook.autoReplyDelay", 5*time.Second)
	v.SetDefault("admission.refreshInterval", time.Minute)
	v.SetDefault("dedup.ttl", 24*time.Hour)
	v.SetDefault("dedup.maxEntries", 100000)

	v.SetDefault("nats.stream", "wa_webhook_tasks")
	v.SetDefault("nats.subjectPrefix", "v1.webhook")
	v.SetDefault("nats.maxAgeDays", 7)

	// Per-lane defaults: quick bounded retries for DB-bound lanes, a single
	// attempt for media download (see lane semantics in the consumer
	// package). The autoreplies budget covers the settle-delay reschedule
	// NAKs, which count against MaxDeliver server-side; the handler itself
	// enforces a single real send attempt.
	setLaneDefaults(v, "messages", 3, 30*time.Second)
	setLaneDefaults(v, "media", 1, 5*time.Minute)
	setLaneDefaults(v, "tickets", 2, time.Minute)
	setLaneDefaults(v, "autoreplies", 5, time.Minute)
	setLaneDefaults(v, "status", 3, 30*time.Second)
	setLaneDefaults(v, "account", 2, 30*time.Second)

	v.SetDefault("media.graphBaseURL", "https://graph.facebook.com/v18.0")
	v.SetDefault("media.fetchTimeout", 4*time.Minute)
	v.SetDefault("media.localDir", "./storage/public")
	v.SetDefault("media.publicBaseURL", "/media/public")

	v.SetDefault("notifier.poolSize", 10)
	v.SetDefault("notifier.queueSize", 10000)
	v.SetDefault("notifier.maxBlock", time.Second)
	v.SetDefault("notifier.expiryTime", time.Minute)
	v.SetDefault("notifier.webhookTimeout", 10*time.Second)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.daisi-wa-webhook-pipeline")
	v.AddConfigPath("/etc/daisi-wa-webhook-pipeline")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if token := os.Getenv("WEBHOOK_VERIFY_TOKEN"); token != "" {
		v.Set("webhook.verifyToken", token)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

func setLaneDefaults(v *viper.Viper, lane string, maxDeliver int, ackWait time.Duration) {
	v.SetDefault("nats."+lane+".consumer", "wh_"+lane)
	v.SetDefault("nats."+lane+".group", "wh_"+lane+"_group")
	v.SetDefault("nats."+lane+".maxDeliver", maxDeliver)
	v.SetDefault("nats."+lane+".ackWait", ackWait)
	v.SetDefault("nats."+lane+".nakBaseDelay", 2*time.Second)
	v.SetDefault("nats."+lane+".nakMaxDelay", 30*time.Second)
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
