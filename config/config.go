// Package config reads the runtime configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/joho/godotenv"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/notify"
)

type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendRTDB      Backend = "rtdb"
	BackendFirestore Backend = "firestore"
	BackendPostgres  Backend = "postgres"
)

type Push string

const (
	PushLocal Push = "local"
	PushFCM   Push = "fcm"
)

type LogSink string

const (
	LogSinkStdout       LogSink = "stdout"
	LogSinkCloudLogging LogSink = "cloudlogging"
)

const (
	defaultPort         = "8082"
	defaultPollInterval = 2 * time.Second
)

type Config struct {
	Backend      Backend
	DatabaseURL  string
	ProjectID    string
	PostgresDSN  string
	PollInterval time.Duration
	Platform     notify.Platform
	Push         Push
	LogSink      LogSink
	Port         string
}

func Default() Config {
	return Config{
		Backend:      BackendMemory,
		PollInterval: defaultPollInterval,
		Platform:     notify.PlatformAndroid,
		Push:         PushLocal,
		LogSink:      LogSinkStdout,
		Port:         defaultPort,
	}
}

// Load reads .env files when present, then the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// variables already set in the environment win over the file
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	if v := getenv("COURIER_BACKEND"); v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	c.DatabaseURL = getenv("FIREBASE_DATABASE_URL")
	c.ProjectID = getenv("GOOGLE_CLOUD_PROJECT")
	c.PostgresDSN = getenv("POSTGRES_DSN")
	if v := getenv("COURIER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, errs.Invalid("COURIER_POLL_INTERVAL", "must be a positive duration")
		}
		c.PollInterval = d
	}
	if v := getenv("COURIER_PLATFORM"); v != "" {
		c.Platform = notify.Platform(strings.ToLower(v))
	}
	if v := getenv("COURIER_PUSH"); v != "" {
		c.Push = Push(strings.ToLower(v))
	}
	if v := getenv("LOG_SINK"); v != "" {
		c.LogSink = LogSink(strings.ToLower(v))
	}
	if v := getenv("PORT"); v != "" {
		c.Port = v
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFirestore:
	case BackendRTDB:
		if c.DatabaseURL == "" {
			return errs.Invalid("FIREBASE_DATABASE_URL", "required for the rtdb backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errs.Invalid("POSTGRES_DSN", "required for the postgres backend")
		}
	default:
		return errs.Invalid("COURIER_BACKEND", "must be one of memory, rtdb, firestore, postgres")
	}
	switch c.Platform {
	case notify.PlatformAndroid, notify.PlatformIOS, notify.PlatformWeb:
	default:
		return errs.Invalid("COURIER_PLATFORM", "must be one of android, ios, web")
	}
	switch c.Push {
	case PushLocal, PushFCM:
	default:
		return errs.Invalid("COURIER_PUSH", "must be fcm or local")
	}
	switch c.LogSink {
	case LogSinkStdout, LogSinkCloudLogging:
	default:
		return errs.Invalid("LOG_SINK", "must be stdout or cloudlogging")
	}
	return nil
}

// Project returns the configured project id, asking the metadata server when
// running on Google Cloud without one.
func (c Config) Project(ctx context.Context) (string, error) {
	if c.ProjectID != "" {
		return c.ProjectID, nil
	}
	if !metadata.OnGCE() {
		return "", errs.Invalid("GOOGLE_CLOUD_PROJECT", "not set and not running on Google Cloud")
	}
	return metadata.ProjectIDWithContext(ctx)
}
