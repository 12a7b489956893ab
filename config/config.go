package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger    `mapstructure:"logger"`
	DB        Database  `mapstructure:"database"`
	API       API       `mapstructure:"api"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Executor  Executor  `mapstructure:"executor"`
	Storage   Storage   `mapstructure:"storage"`
	Alert     Alert     `mapstructure:"alert"`
	Cache     Cache     `mapstructure:"cache"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	TimeZone        string        `mapstructure:"time_zone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime string        `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type API struct {
	Port           int `mapstructure:"port"`
	RatePerSecond  int `mapstructure:"rate_per_second"`
	RateBurst      int `mapstructure:"rate_burst"`
	MaxListResults int `mapstructure:"max_list_results"`
}

type Scheduler struct {
	Timezone         string        `mapstructure:"timezone"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	MisfireGraceTime time.Duration `mapstructure:"misfire_grace_time"`
}

type Executor struct {
	LaunchType      string        `mapstructure:"launch_type"`
	Interpreter     string        `mapstructure:"interpreter"`
	InterpreterArgs []string      `mapstructure:"interpreter_args"`
	EntryPoint      string        `mapstructure:"entry_point"`
	WorkerTimeout   time.Duration `mapstructure:"worker_timeout"`
}

type Storage struct {
	ArtifactRoot string `mapstructure:"artifact_root"`
	ArtifactExt  string `mapstructure:"artifact_ext"`
	StagingRoot  string `mapstructure:"staging_root"`
	LogRoot      string `mapstructure:"log_root"`
}

type Alert struct {
	Dispatcher     string        `mapstructure:"dispatcher"`
	Formatter      string        `mapstructure:"formatter"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	Secret         string        `mapstructure:"secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Keyword        string        `mapstructure:"keyword"`
	ErrorImage     string        `mapstructure:"error_image"`
	TracebackImage string        `mapstructure:"traceback_image"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
	ProjectPerMin  int           `mapstructure:"project_rate_per_minute"`
	Telegram       Telegram      `mapstructure:"telegram"`
}

type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	ArtifactTTL       time.Duration `mapstructure:"artifact_ttl"`
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.rate_per_second", 10)
	viper.SetDefault("api.rate_burst", 30)
	viper.SetDefault("api.max_list_results", 500)
	viper.SetDefault("scheduler.max_concurrency", 0)
	viper.SetDefault("scheduler.misfire_grace_time", time.Minute)
	viper.SetDefault("executor.launch_type", "interpreter")
	viper.SetDefault("executor.interpreter", "python3")
	viper.SetDefault("executor.interpreter_args", []string{
		"-c",
		"import sys, importlib; sys.path.insert(0, sys.argv[1]); importlib.import_module(sys.argv[2]).main()",
		"{artifact}",
		"{entry}",
	})
	viper.SetDefault("executor.entry_point", "sail")
	viper.SetDefault("storage.artifact_root", "./data/artifacts")
	viper.SetDefault("storage.artifact_ext", ".egg")
	viper.SetDefault("storage.staging_root", "./data/staging")
	viper.SetDefault("storage.log_root", "./data/logs")
	viper.SetDefault("alert.dispatcher", "log")
	viper.SetDefault("alert.formatter", "markdown")
	viper.SetDefault("alert.timeout", 10*time.Second)
	viper.SetDefault("alert.keyword", "Alarm")
	viper.SetDefault("alert.error_image", "http://can.sfhfpc.com/sfhfpc/20191210133853.png")
	viper.SetDefault("alert.traceback_image", "http://can.sfhfpc.com/sfhfpc/20191210133616.png")
	viper.SetDefault("alert.rate_per_minute", 20)
	viper.SetDefault("alert.project_rate_per_minute", 0)
	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("cache.artifact_ttl", 30*time.Second)
	viper.SetDefault("database.connect_timeout", 30*time.Second)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
