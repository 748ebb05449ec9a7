package model

import "time"

// ----------------------------------------------------
// ================ Logging ================
// LogConfig holds configuration for the global logger
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"console"` // json | console
	Output     string `envconfig:"LOG_OUTPUT" default:"stderr"`  // stdout | stderr | file
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/redis-browser.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// ----------------------------------------------------
// ================ Store ================
// StoreConfig holds the connection defaults and browsing limits.
// URL, when set, takes precedence over Host, Port, Username and Password.
type StoreConfig struct {
	URL           string        `envconfig:"REDIS_URL"`
	Host          string        `envconfig:"REDIS_HOST" default:"127.0.0.1"`
	Port          int           `envconfig:"REDIS_PORT" default:"6379"`
	Username      string        `envconfig:"REDIS_USERNAME"`
	Password      string        `envconfig:"REDIS_PASSWORD"`
	Timeout       time.Duration `envconfig:"REDIS_TIMEOUT" default:"5s"`
	ScanBatchSize int64         `envconfig:"SCAN_BATCH_SIZE" default:"100"`
	ListLimit     int           `envconfig:"LIST_LIMIT" default:"1000"`
	ValueCodec    string        `envconfig:"VALUE_CODEC" default:"tagged-json"`
}

// ----------------------------------------------------
// ================ UI ================
type UIConfig struct {
	Theme        string `envconfig:"UI_THEME" default:"dark"`
	ProfilesFile string `envconfig:"PROFILES_FILE" default:"profiles.yaml"`
}
