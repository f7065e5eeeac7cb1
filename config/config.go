package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/campusops/equipment-service/pkg/auth"
	"github.com/campusops/equipment-service/pkg/kafka"
	"github.com/campusops/equipment-service/pkg/logger"
	"github.com/campusops/equipment-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"30s"`
	WriteTimeout time.Duration
}

type Reconciler struct {
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1h"`
}

type Config struct {
	Server     HTTPServer `yaml:"server"`
	Database   postgres.Config
	Kafka      kafka.Config
	Auth       auth.Config
	Reconciler Reconciler
	Log        logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

type Option func(*Config)

func WithLogLevel(lvl zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = lvl
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = d
	}
}

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
