package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const placeholderKey = "CHANGE_ME_IN_PRODUCTION"

type RateLimit struct {
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
	Window      string `json:"window" yaml:"window"`
}

// WindowDuration parses Window, falling back to 15 minutes.
func (r RateLimit) WindowDuration() time.Duration {
	d, err := time.ParseDuration(r.Window)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

type Config struct {
	AppName             string    `json:"app_name" yaml:"app_name"`
	ListenIP            string    `json:"listen_ip" yaml:"listen_ip"`
	ListenPort          int       `json:"listen_port" yaml:"listen_port"`
	SessionKey          string    `json:"session_key" yaml:"session_key"`
	DatabasePath        string    `json:"database_path" yaml:"database_path"`
	ExportDir           string    `json:"export_dir" yaml:"export_dir"`
	StaticDir           string    `json:"static_dir" yaml:"static_dir"`
	LogLevel            string    `json:"log_level" yaml:"log_level"`
	LogFormat           string    `json:"log_format" yaml:"log_format"`
	SecureCookies       bool      `json:"secure_cookies" yaml:"secure_cookies"`
	CSRFEnabled         bool      `json:"csrf_enabled" yaml:"csrf_enabled"`
	RegistrationCaptcha bool      `json:"registration_captcha" yaml:"registration_captcha"`
	BcryptCost          int       `json:"bcrypt_cost" yaml:"bcrypt_cost"`
	RateLimit           RateLimit `json:"rate_limit" yaml:"rate_limit"`
}

var AppConfig Config

func Default() Config {
	return Config{
		AppName:      "Neural Log",
		ListenIP:     "127.0.0.1",
		ListenPort:   5000,
		DatabasePath: "neural_log.db",
		ExportDir:    "exports",
		StaticDir:    "static",
		LogLevel:     "info",
		LogFormat:    "text",
		CSRFEnabled:  true,
		BcryptCost:   12,
		RateLimit:    RateLimit{MaxAttempts: 5, Window: "15m"},
	}
}

// LoadConfig fills AppConfig from defaults, the file at path (JSON, or YAML
// for .yml/.yaml; an empty path skips the file), a .env file in the working
// directory and NEURALLOG_* environment variables, in that order.
func LoadConfig(path string) error {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return err
	}

	// If no key is provided or it's the placeholder, generate a secure random one
	if cfg.SessionKey == "" || cfg.SessionKey == placeholderKey {
		logrus.Warn("No session key configured. Generating a random key. Sessions will be invalidated on restart.")
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			return err
		}
		cfg.SessionKey = hex.EncodeToString(randomKey)
	}

	AppConfig = cfg
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"NEURALLOG_APP_NAME":      &cfg.AppName,
		"NEURALLOG_LISTEN_IP":     &cfg.ListenIP,
		"NEURALLOG_SESSION_KEY":   &cfg.SessionKey,
		"NEURALLOG_DATABASE_PATH": &cfg.DatabasePath,
		"NEURALLOG_EXPORT_DIR":    &cfg.ExportDir,
		"NEURALLOG_STATIC_DIR":    &cfg.StaticDir,
		"NEURALLOG_LOG_LEVEL":     &cfg.LogLevel,
		"NEURALLOG_LOG_FORMAT":    &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"NEURALLOG_LISTEN_PORT":  &cfg.ListenPort,
		"NEURALLOG_BCRYPT_COST":  &cfg.BcryptCost,
		"NEURALLOG_MAX_ATTEMPTS": &cfg.RateLimit.MaxAttempts,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid int for %s: %q", key, v)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"NEURALLOG_SECURE_COOKIES":       &cfg.SecureCookies,
		"NEURALLOG_CSRF_ENABLED":         &cfg.CSRFEnabled,
		"NEURALLOG_REGISTRATION_CAPTCHA": &cfg.RegistrationCaptcha,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid bool for %s: %q", key, v)
			}
			*dst = b
		}
	}
	return nil
}
