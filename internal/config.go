package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	RingTimeout          time.Duration `env:"RING_TIMEOUT,default=45s"`
	RingSweepInterval    time.Duration `env:"RING_SWEEP_INTERVAL,default=5s"`
	ReportInterval       time.Duration `env:"REPORT_INTERVAL,default=1m"`
	EventRateLimit       float64       `env:"EVENT_RATE_LIMIT,default=20"`
	EventBurst           int           `env:"EVENT_BURST,default=40"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Validate checks what env tags cannot express.
func (c Config) Validate() error {
	switch {
	case len(c.JWTSecret) < 16:
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes long")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT must be in [1, 65535], got %d", c.Port)
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.PongTimeout <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("PONG_TIMEOUT and WRITE_TIMEOUT must be positive")
	case c.RingTimeout <= 0 || c.RingSweepInterval <= 0:
		return fmt.Errorf("RING_TIMEOUT and RING_SWEEP_INTERVAL must be positive")
	case c.ReportInterval <= 0:
		return fmt.Errorf("REPORT_INTERVAL must be positive, got %s", c.ReportInterval)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS on commas. An empty list only accepts
// same-host upgrades.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
