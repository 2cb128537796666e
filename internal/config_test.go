package internal

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	environ := env.EnvSet{
		"BADGER_FILEPATH": "/tmp/badger",
		"JWT_SECRET":      "0123456789abcdef0123",
		"ALLOWED_ORIGINS": "https://a.example, ,https://b.example",
	}

	var config Config
	err := env.Unmarshal(environ, &config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal("localhost:8080", config.Addr())
	req.Equal(45*time.Second, config.RingTimeout)
	req.Equal(200*time.Millisecond, config.RestartInterval)
	req.Equal(time.Minute, config.ReportInterval)
	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
	req.Nil(config.LimitMessages)
}

func TestConfig_Required(t *testing.T) {
	req := require.New(t)
	var config Config

	err := env.Unmarshal(env.EnvSet{"BADGER_FILEPATH": "/tmp/badger"}, &config)

	req.Error(err)
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	var config Config
	req.NoError(env.Unmarshal(env.EnvSet{
		"BADGER_FILEPATH": "/tmp/badger",
		"JWT_SECRET":      "short",
	}, &config))

	req.Error(config.Validate())
}
