package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Arxiv     ArxivConfig
	Cache     CacheConfig
	GitHub    GitHubConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type ArxivConfig struct {
	BaseURL           string
	MinIntervalMS     int
	PerPageCap        int
	DailyLimit        int
	RequestTimeoutSec int
	AllowedGroups     []string
}

type CacheConfig struct {
	PaperTTLHours  int
	ListTTLMinutes int
	CountsTTLHours int
}

type GitHubConfig struct {
	APIBaseURL string
	Token      string
	TimeoutSec int
}

type SyncConfig struct {
	Enabled           bool
	CronExpr          string
	Categories        []string
	DaysBack          int
	MaxResults        int
	GithubEnrichLimit int
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/arxiv-daily")

	viper.SetEnvPrefix("ARXIV_DAILY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/arxivdaily.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("arxiv.baseURL", "https://export.arxiv.org/api/query")
	viper.SetDefault("arxiv.minIntervalMS", 3000)
	viper.SetDefault("arxiv.perPageCap", 100)
	viper.SetDefault("arxiv.dailyLimit", 1000)
	viper.SetDefault("arxiv.requestTimeoutSec", 30)
	viper.SetDefault("arxiv.allowedGroups", []string{"cs", "eess"})

	viper.SetDefault("cache.paperTTLHours", 24)
	viper.SetDefault("cache.listTTLMinutes", 30)
	viper.SetDefault("cache.countsTTLHours", 1)

	viper.SetDefault("github.apiBaseURL", "https://api.github.com")
	viper.SetDefault("github.timeoutSec", 10)

	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.cronExpr", "0 1 * * *")
	viper.SetDefault("sync.categories", []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV"})
	viper.SetDefault("sync.daysBack", 1)
	viper.SetDefault("sync.maxResults", 1000)
	viper.SetDefault("sync.githubEnrichLimit", 50)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
