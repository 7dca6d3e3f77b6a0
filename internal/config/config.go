package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from an optional YAML
// file, then environment variables, then flags (main.go applies flags last).
type Config struct {
	Port         int    `yaml:"port"`
	DatabaseURL  string `yaml:"database_url"`
	DatabaseFile string `yaml:"database_file"`
	JWTSecret    string `yaml:"jwt_secret"`
	JWTExpiry    int    `yaml:"jwt_expires_seconds"`
	UploadDir    string `yaml:"upload_dir"`
	ReportDir    string `yaml:"report_dir"`
	AdminUsers   []string `yaml:"admin_users"`
	CORSOrigins  []string `yaml:"cors_origins"`
	CompanyName  string `yaml:"company_name"`
	DevMode      bool   `yaml:"dev_mode"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Port:         9000,
		DatabaseFile: "sorp.db",
		JWTSecret:    "default-secret",
		JWTExpiry:    8 * 60 * 60,
		UploadDir:    "uploads",
		ReportDir:    "reports",
		AdminUsers:   []string{"admin"},
		CORSOrigins:  []string{"*"},
		CompanyName:  "NT WOODS PVT.LTD",
	}
}

// Load builds the config from an optional YAML file plus environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SORP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("DATABASE_FILE"); v != "" {
		c.DatabaseFile = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	} else if v := os.Getenv("SECRET_KEY"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("JWT_EXPIRES_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.JWTExpiry = n
		}
	}
	if v := os.Getenv("UPLOAD_FOLDER"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("REPORT_FOLDER"); v != "" {
		c.ReportDir = v
	}
	if v := os.Getenv("ADMIN_USERS"); v != "" {
		c.AdminUsers = splitList(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("SORP_COMPANY_NAME"); v != "" {
		c.CompanyName = v
	}
	if v := os.Getenv("SORP_DEV_MODE"); v != "" {
		c.DevMode = v == "1" || strings.EqualFold(v, "true")
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAdmin reports whether the username is in the configured admin list.
func (c *Config) IsAdmin(username string) bool {
	for _, u := range c.AdminUsers {
		if u == username {
			return true
		}
	}
	return false
}
