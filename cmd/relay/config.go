package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8000"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	TokenSecret          string        `env:"TOKEN_SECRET,required=true"`
	AllowedOrigins       []string      `env:"ALLOWED_ORIGINS"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	EchoSelf             bool          `env:"ECHO_SELF,default=false"`
	JournalPath          string        `env:"JOURNAL_PATH"`
	CensoredWordsFile    string        `env:"CENSORED_WORDS_FILE"`
	CensorReplacement    string        `env:"CENSOR_REPLACEMENT,default=*"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
