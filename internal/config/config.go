package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	RenderProxy RenderProxyConfig `mapstructure:"render_proxy"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Eventbrite  EventbriteConfig  `mapstructure:"eventbrite_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	HTTPAddr     string        `mapstructure:"http_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RunCycle     string `mapstructure:"run_cycle"`
	Sweep        string `mapstructure:"sweep"`
	SweepOnStart bool   `mapstructure:"sweep_on_start"`
}

type PipelineConfig struct {
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	CycleTimeout   time.Duration `mapstructure:"cycle_timeout"`
	// Timezone is applied to listing times that carry no offset.
	Timezone string `mapstructure:"timezone"`
}

type RenderProxyConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Render      bool          `mapstructure:"render"`
	KeepHeaders bool          `mapstructure:"keep_headers"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
}

type BrowserConfig struct {
	ExecPath  string        `mapstructure:"exec_path"`
	Headless  bool          `mapstructure:"headless"`
	Scrolls   int           `mapstructure:"scrolls"`
	ScrollGap time.Duration `mapstructure:"scroll_gap"`
	UserAgent string        `mapstructure:"user_agent"`
}

type SourcesConfig struct {
	Eventbrite  SourceConfig `mapstructure:"eventbrite"`
	Meetup      SourceConfig `mapstructure:"meetup"`
	AllEvents   SourceConfig `mapstructure:"allevents"`
	TradeCentre SourceConfig `mapstructure:"trade_centre"`
}

type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// Loader is "browser", "proxy" or "direct".
	Loader      string `mapstructure:"loader"`
	City        string `mapstructure:"city"`
	MaxItems    int    `mapstructure:"max_items"`
	HorizonDays int    `mapstructure:"horizon_days"`
}

type EventbriteConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Retries  int           `mapstructure:"retries"`
	// Workers, CallTimeout and Reserve bound detail enrichment inside the
	// adapter deadline.
	Workers     int           `mapstructure:"workers"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Reserve     time.Duration `mapstructure:"reserve"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.name", "eventsync")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.run_cycle", "0 0 8 * * *")
	v.SetDefault("cron.sweep", "0 0 2 * * *")
	v.SetDefault("cron.sweep_on_start", true)
	v.SetDefault("pipeline.adapter_timeout", "120s")
	v.SetDefault("pipeline.cycle_timeout", "10m")
	v.SetDefault("pipeline.timezone", "Asia/Kolkata")

	v.SetDefault("render_proxy.base_url", "http://api.scraperapi.com/")
	v.SetDefault("render_proxy.api_key", "")
	v.SetDefault("render_proxy.render", true)
	v.SetDefault("render_proxy.keep_headers", true)
	v.SetDefault("render_proxy.timeout", "90s")
	v.SetDefault("render_proxy.retries", 2)

	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.scrolls", 5)
	v.SetDefault("browser.scroll_gap", "2s")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("sources.eventbrite.enabled", true)
	v.SetDefault("sources.eventbrite.url", "https://www.eventbrite.com/d/india--chennai/business--events/")
	v.SetDefault("sources.eventbrite.loader", "browser")
	v.SetDefault("sources.eventbrite.city", "Chennai")
	v.SetDefault("sources.eventbrite.max_items", 60)
	v.SetDefault("sources.meetup.enabled", true)
	v.SetDefault("sources.meetup.url", "https://www.meetup.com/find/?location=in--Chennai&source=EVENTS&categoryId=career-business")
	v.SetDefault("sources.meetup.loader", "proxy")
	v.SetDefault("sources.meetup.city", "Chennai")
	v.SetDefault("sources.meetup.max_items", 60)
	v.SetDefault("sources.allevents.enabled", true)
	v.SetDefault("sources.allevents.url", "https://allevents.in/chennai/business")
	v.SetDefault("sources.allevents.loader", "direct")
	v.SetDefault("sources.allevents.city", "Chennai")
	v.SetDefault("sources.allevents.max_items", 50)
	v.SetDefault("sources.trade_centre.enabled", true)
	v.SetDefault("sources.trade_centre.url", "https://www.chennaitradecentre.in/UpcomingEvents.aspx?etype=1")
	v.SetDefault("sources.trade_centre.loader", "direct")
	v.SetDefault("sources.trade_centre.city", "Chennai")
	v.SetDefault("sources.trade_centre.max_items", 100)
	v.SetDefault("sources.trade_centre.horizon_days", 180)

	v.SetDefault("eventbrite_api.base_url", "https://www.eventbriteapi.com")
	v.SetDefault("eventbrite_api.token", "")
	v.SetDefault("eventbrite_api.timeout", "10s")
	v.SetDefault("eventbrite_api.cache_ttl", "6h")
	v.SetDefault("eventbrite_api.retries", 2)
	v.SetDefault("eventbrite_api.workers", 4)
	v.SetDefault("eventbrite_api.call_timeout", "15s")
	v.SetDefault("eventbrite_api.reserve", "10s")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "eventsync.cycles")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "eventsync")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
