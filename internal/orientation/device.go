// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package orientation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/wneessen/incident-ar/internal/logger"
)

const (
	reopenDelay   = time.Second
	maxLineLength = 4096
)

// Sensor is the orientation source of the device. Samples come from a Feed that is filled by
// a DeviceReader or by a paired handset over the network.
type Sensor struct {
	*Feed
	device string
}

// NewSensor returns a Sensor publishing through feed. device is the path read by the
// DeviceReader; an empty path means samples are pushed by other producers only.
func NewSensor(feed *Feed, device string) *Sensor {
	return &Sensor{Feed: feed, device: device}
}

// RequestAccess checks whether orientation samples may be read. Without a local device
// access is always granted.
func (s *Sensor) RequestAccess(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.device == "" {
		return nil
	}
	return checkDevice(s.device)
}

func checkDevice(path string) error {
	file, err := os.OpenFile(path, os.O_RDONLY|syscallNonblock, 0)
	switch {
	case err == nil:
		return file.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return fmt.Errorf("failed to open orientation device: %w", err)
	}
}

// DeviceReader reads orientation readings as JSON lines from a character device or named
// pipe and pushes them into a Feed.
type DeviceReader struct {
	path   string
	feed   *Feed
	logger *logger.Logger
}

// NewDeviceReader returns a DeviceReader for path.
func NewDeviceReader(path string, feed *Feed, log *logger.Logger) *DeviceReader {
	return &DeviceReader{path: path, feed: feed, logger: log}
}

// Run reads until ctx is cancelled. The device is reopened when the writer goes away.
func (d *DeviceReader) Run(ctx context.Context) error {
	for {
		err := d.readOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			d.logger.Warn("orientation device read failed", slog.String("device", d.path), logger.Err(err))
			d.feed.Publish(Event{Err: err})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reopenDelay):
		}
	}
}

func (d *DeviceReader) readOnce(ctx context.Context) error {
	file, err := os.OpenFile(d.path, os.O_RDONLY|syscallNonblock, 0)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = file.Close() })
	defer func() {
		if stop() {
			_ = file.Close()
		}
	}()
	return d.consume(file)
}

// consume pushes every line of r into the feed until r is exhausted.
func (d *DeviceReader) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 512), maxLineLength)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var reading Reading
		if err := json.Unmarshal(line, &reading); err != nil {
			d.feed.Publish(Event{Err: fmt.Errorf("invalid orientation reading: %w", err)})
			continue
		}
		d.feed.Push(reading)
	}
	return scanner.Err()
}
