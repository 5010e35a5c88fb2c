// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package navigation hands a destination over to an external map application.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strconv"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/logger"
)

const (
	DirectionsEndpoint = "https://www.google.com/maps/dir/"
	DefaultOpener      = "xdg-open"
)

var ErrInvalidDestination = errors.New("invalid navigation destination")

// DirectionsURL returns a Google Maps directions link to dest.
func DirectionsURL(dest geo.Coordinate) string {
	query := url.Values{}
	query.Set("api", "1")
	query.Set("destination", strconv.FormatFloat(dest.Lat, 'f', -1, 64)+","+
		strconv.FormatFloat(dest.Lon, 'f', -1, 64))
	return DirectionsEndpoint + "?" + query.Encode()
}

// Launcher opens directions links with an external opener command.
type Launcher struct {
	opener  string
	logger  *logger.Logger
	startFn func(ctx context.Context, name string, args ...string) error
}

// NewLauncher returns a Launcher running opener with the directions link as its only argument.
func NewLauncher(opener string, log *logger.Logger) *Launcher {
	if opener == "" {
		opener = DefaultOpener
	}
	return &Launcher{opener: opener, logger: log, startFn: start}
}

// Open starts the opener for dest and returns without waiting for it to exit.
func (l *Launcher) Open(ctx context.Context, dest geo.Coordinate) error {
	if !dest.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDestination, dest)
	}
	link := DirectionsURL(dest)
	if err := l.startFn(ctx, l.opener, link); err != nil {
		return fmt.Errorf("failed to start %s: %w", l.opener, err)
	}
	l.logger.Debug("navigation handed off", slog.String("opener", l.opener), slog.String("url", link))
	return nil
}

// start runs the command detached from ctx so it outlives the request that started it.
func start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
