// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "INCIDENTAR"

	DefaultMarkerTpl = "{{.CategoryIcon}} {{.Distance}}{{if .Validations}} {{.Validations}}{{end}}"
	DefaultDetailTpl = "{{.CategoryIcon}} {{.CategoryLabel}} ({{.Status}})\n{{.Description}}\n" +
		"{{loc \"distance\"}}: {{.Distance}} {{.CompassPoint}}\n{{loc \"reported\"}}: {{.Age}}\n" +
		"{{if .ImageURL}}{{loc \"photo\"}}: {{.ImageURL}}\n{{end}}{{loc \"directions\"}}: {{.DirectionsURL}}"
	DefaultStatusTpl = "{{.Message}}{{if .Markers}} {{.CompassPoint}} {{floatFormat .Heading 0}}° " +
		"{{.Visible}}/{{.Nearby}}{{end}}"
)

var (
	reportProviders   = []string{"supabase", "database", "file", "none"}
	databaseDrivers   = []string{"postgres", "sqlite"}
	orientationCapabs = []string{"implicit", "gesture"}
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Overlay struct {
		RadiusMeters float64 `fig:"radius_meters" default:"500"`
		// Allowed values: greater than 0 and up to 180
		FOVDegrees         float64       `fig:"fov_degrees" default:"60"`
		ViewportWidth      float64       `fig:"viewport_width" default:"1080"`
		LocationTimeout    time.Duration `fig:"location_timeout" default:"15s"`
		HighAccuracyMeters float64       `fig:"high_accuracy_meters" default:"3000"`
	} `fig:"overlay"`

	Orientation struct {
		// Allowed values: implicit, gesture
		Capability string `fig:"capability" default:"implicit"`
		Device     string `fig:"device"`
	} `fig:"orientation"`

	Camera struct {
		Device      string `fig:"device" default:"/dev/video0"`
		FrontDevice string `fig:"front_device"`
	} `fig:"camera"`

	Reports struct {
		// Allowed values: supabase, database, file, none
		Provider        string        `fig:"provider" default:"none"`
		RefreshInterval time.Duration `fig:"refresh_interval" default:"1m"`
		CacheTTL        time.Duration `fig:"cache_ttl" default:"30s"`
		File            string        `fig:"file"`

		Supabase struct {
			URL    string `fig:"url"`
			APIKey string `fig:"apikey"`
		} `fig:"supabase"`

		Database struct {
			// Allowed values: postgres, sqlite
			Driver string `fig:"driver" default:"sqlite"`
			DSN    string `fig:"dsn"`
			// Migrate creates the report tables on startup
			Migrate bool `fig:"migrate"`
			// Seed is a report file imported into the database on startup
			Seed string `fig:"seed"`
		} `fig:"database"`
	} `fig:"reports"`

	GeoLocation struct {
		File                   string `fig:"file"`
		MaxMindDB              string `fig:"maxmind_db"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableMaxMind         bool   `fig:"disable_maxmind"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
	} `fig:"geolocation"`

	Navigation struct {
		Opener string `fig:"opener" default:"xdg-open"`
	} `fig:"navigation"`

	Server struct {
		// An empty listen address disables the HTTP interface
		Listen string `fig:"listen" default:"127.0.0.1:8089"`
	} `fig:"server"`

	Intervals struct {
		Status time.Duration `fig:"status" default:"30s"`
	} `fig:"intervals"`

	Templates struct {
		Marker string `fig:"marker"`
		Detail string `fig:"detail"`
		Status string `fig:"status"`
	} `fig:"templates"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Overlay.RadiusMeters <= 0 {
		return fmt.Errorf("invalid radius: %f", c.Overlay.RadiusMeters)
	}
	if c.Overlay.FOVDegrees <= 0 || c.Overlay.FOVDegrees > 180 {
		return fmt.Errorf("invalid field of view: %f", c.Overlay.FOVDegrees)
	}
	if c.Overlay.ViewportWidth <= 0 {
		return fmt.Errorf("invalid viewport width: %f", c.Overlay.ViewportWidth)
	}
	if c.Overlay.LocationTimeout <= 0 {
		return fmt.Errorf("invalid location timeout: %s", c.Overlay.LocationTimeout)
	}
	if c.Overlay.HighAccuracyMeters <= 0 {
		return fmt.Errorf("invalid high accuracy threshold: %f", c.Overlay.HighAccuracyMeters)
	}
	if !oneOf(c.Orientation.Capability, orientationCapabs) {
		return fmt.Errorf("invalid orientation capability: %s", c.Orientation.Capability)
	}
	if !oneOf(c.Reports.Provider, reportProviders) {
		return fmt.Errorf("invalid report provider: %s", c.Reports.Provider)
	}
	if c.Reports.RefreshInterval <= 0 {
		return fmt.Errorf("invalid report refresh interval: %s", c.Reports.RefreshInterval)
	}
	if err := c.validateReportProvider(); err != nil {
		return err
	}
	if c.Templates.Marker == "" {
		c.Templates.Marker = DefaultMarkerTpl
	}
	if c.Templates.Detail == "" {
		c.Templates.Detail = DefaultDetailTpl
	}
	if c.Templates.Status == "" {
		c.Templates.Status = DefaultStatusTpl
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "incident-ar", "geolocation")
	}

	return nil
}

func (c *Config) validateReportProvider() error {
	switch c.Reports.Provider {
	case "supabase":
		if c.Reports.Supabase.URL == "" || c.Reports.Supabase.APIKey == "" {
			return fmt.Errorf("supabase report provider requires url and apikey")
		}
	case "database":
		if !oneOf(c.Reports.Database.Driver, databaseDrivers) {
			return fmt.Errorf("invalid database driver: %s", c.Reports.Database.Driver)
		}
		if c.Reports.Database.DSN == "" {
			return fmt.Errorf("database report provider requires a dsn")
		}
	case "file":
		if c.Reports.File == "" {
			return fmt.Errorf("file report provider requires a file")
		}
	}
	return nil
}

func oneOf(val string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(val, a) {
			return true
		}
	}
	return false
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
