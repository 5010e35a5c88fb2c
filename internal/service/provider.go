// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/incident-ar/internal/geobus/provider/gpsd"
	"github.com/wneessen/incident-ar/internal/geobus/provider/ichnaea"
	"github.com/wneessen/incident-ar/internal/geobus/provider/maxmind"
	"github.com/wneessen/incident-ar/internal/http"
	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/reports/provider/database"
	"github.com/wneessen/incident-ar/internal/reports/provider/file"
	"github.com/wneessen/incident-ar/internal/reports/provider/supabase"
)

var ErrNoProviders = errors.New("no geolocation providers enabled")

func (s *Service) selectGeobusProviders() ([]geobus.Provider, error) {
	httpClient := http.New(s.logger)
	var provider []geobus.Provider

	if !s.config.GeoLocation.DisableGeolocationFile {
		provider = append(provider, geolocation_file.NewGeolocationFileProvider(s.config.GeoLocation.File))
	}

	if !s.config.GeoLocation.DisableGPSD {
		provider = append(provider, gpsd.NewGeolocationGPSDProvider(gpsd.DefaultHost, gpsd.DefaultPort))
	}

	if !s.config.GeoLocation.DisableICHNAEA {
		mls, err := ichnaea.NewGeolocationICHNAEAProvider(httpClient, "")
		if err != nil {
			s.logger.Error("failed to create ICHNAEA provider", logger.Err(err))
		} else {
			provider = append(provider, mls)
		}
	}

	if !s.config.GeoLocation.DisableMaxMind && s.config.GeoLocation.MaxMindDB != "" {
		mm, err := maxmind.NewGeolocationMaxMindProvider(httpClient, s.config.GeoLocation.MaxMindDB)
		if err != nil {
			s.logger.Error("failed to create MaxMind provider", logger.Err(err))
		} else {
			provider = append(provider, mm)
			s.closers = append(s.closers, mm)
		}
	}

	if len(provider) == 0 {
		return nil, ErrNoProviders
	}
	return provider, nil
}

// selectReportSource returns the configured report source. The "none" provider returns a nil
// source; the overlay then shows no markers.
func (s *Service) selectReportSource() (reports.Source, error) {
	switch strings.ToLower(s.config.Reports.Provider) {
	case "supabase":
		source, err := supabase.New(http.New(s.logger), s.config.Reports.Supabase.URL, s.config.Reports.Supabase.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase report provider: %w", err)
		}
		return source, nil
	case "database":
		db, err := database.Open(s.config.Reports.Database.Driver, s.config.Reports.Database.DSN)
		if err != nil {
			return nil, err
		}
		source, err := database.New(db)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, source)
		if s.config.Reports.Database.Migrate {
			if err = source.Migrate(); err != nil {
				return nil, fmt.Errorf("failed to migrate report database: %w", err)
			}
		}
		if s.config.Reports.Database.Seed != "" {
			if err = s.seedDatabase(source, s.config.Reports.Database.Seed); err != nil {
				return nil, err
			}
		}
		return source, nil
	case "file":
		source, err := file.New(s.config.Reports.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file report provider: %w", err)
		}
		return source, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported report provider: %s", s.config.Reports.Provider)
	}
}

// seedDatabase imports the reports of a report file into the database.
func (s *Service) seedDatabase(db *database.Database, path string) error {
	seed, err := file.New(path)
	if err != nil {
		return fmt.Errorf("failed to open report seed: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	list, err := seed.List(ctx)
	if err != nil && list == nil {
		return fmt.Errorf("failed to read report seed: %w", err)
	}
	if err = db.Import(ctx, list); err != nil {
		return err
	}
	s.logger.Info("report database seeded", slog.String("file", path), slog.Int("count", len(list)))
	return nil
}
