package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/tollkeeper/internal/common"
	"github.com/Veraticus/tollkeeper/internal/model"
)

// Configuration keys.
const (
	KeyDatabasePath  = "database.path"
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
	KeyPartnerOptOut = "validation.partner_opt_out"
	KeySince         = "validation.since"
)

// Config holds the resolved application settings.
type Config struct {
	Since         time.Time
	DatabasePath  string
	LogLevel      string
	LogFormat     string
	PartnerOptOut []string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeySince, "2018-01-01")
}

// Load resolves settings from v, filling in defaults and validating values.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		DatabasePath: ExpandPath(strings.TrimSpace(v.GetString(KeyDatabasePath))),
		LogLevel:     strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:    strings.ToLower(v.GetString(KeyLogFormat)),
	}

	if cfg.DatabasePath == "" {
		path, err := DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("%w: no database path and no home directory: %v", common.ErrMissingConfig, err)
		}
		cfg.DatabasePath = path
	}

	if _, err := common.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return nil, fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, cfg.LogFormat)
	}

	since, err := time.Parse(model.DateLayout, v.GetString(KeySince))
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD: %v", common.ErrInvalidConfig, KeySince, err)
	}
	cfg.Since = since

	for _, key := range v.GetStringSlice(KeyPartnerOptOut) {
		if key = strings.TrimSpace(key); key != "" {
			cfg.PartnerOptOut = append(cfg.PartnerOptOut, key)
		}
	}

	return cfg, nil
}
