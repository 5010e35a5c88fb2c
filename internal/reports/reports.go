// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package reports holds the citizen incident reports shown in the overlay and the sources
// they are loaded from.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/incident-ar/internal/geo"
)

// Category is the kind of problem a report describes.
type Category string

const (
	CategoryRoad      Category = "vial"
	CategoryLighting  Category = "alumbrado"
	CategoryWaste     Category = "basura"
	CategoryFurniture Category = "mobiliario"
	CategoryOther     Category = "otro"
)

// Categories lists all known categories in display order.
var Categories = []Category{CategoryRoad, CategoryLighting, CategoryWaste, CategoryFurniture, CategoryOther}

// Status is the processing state of a report.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

var (
	ErrUnknownCategory = errors.New("unknown report category")
	ErrUnknownStatus   = errors.New("unknown report status")
)

// Report is a single geolocated incident report. Reports are read-only for the overlay.
type Report struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	Category         Category       `json:"category"`
	Description      string         `json:"description"`
	Location         geo.Coordinate `json:"location"`
	ImageURL         string         `json:"image_url,omitempty"`
	Status           Status         `json:"status"`
	ValidationsCount int            `json:"validations_count"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Source provides the current list of reports.
type Source interface {
	Name() string
	List(ctx context.Context) ([]Report, error)
}

// ParseCategory returns the Category for s. Matching ignores case and surrounding space.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// ParseStatus returns the Status for s. An empty string is treated as pending.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusPending, nil
	case StatusPending, StatusInProgress, StatusResolved:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// Record is the flat wire and storage representation of a report as the backend delivers it.
type Record struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ImageURL         *string `json:"image_url"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	ValidationsCount int     `json:"validations_count"`
	// Validations carries the embedded count aggregate of a PostgREST select
	Validations []struct {
		Count int `json:"count"`
	} `json:"validations,omitempty"`
}

// Report converts the record into a Report. A missing ID is replaced by a random one.
func (r Record) Report() (Report, error) {
	report := Report{
		Description:      strings.TrimSpace(r.Description),
		ValidationsCount: r.ValidationsCount,
	}
	if len(r.Validations) > 0 {
		report.ValidationsCount = r.Validations[0].Count
	}

	var err error
	if r.ID == "" {
		report.ID = uuid.New()
	} else if report.ID, err = uuid.Parse(r.ID); err != nil {
		return Report{}, fmt.Errorf("invalid report id %q: %w", r.ID, err)
	}
	if r.UserID != "" {
		if report.UserID, err = uuid.Parse(r.UserID); err != nil {
			return Report{}, fmt.Errorf("invalid user id %q: %w", r.UserID, err)
		}
	}
	if report.Category, err = ParseCategory(r.Category); err != nil {
		return Report{}, err
	}
	if report.Status, err = ParseStatus(r.Status); err != nil {
		return Report{}, err
	}
	if report.Location, err = geo.NewCoordinate(r.Latitude, r.Longitude); err != nil {
		return Report{}, fmt.Errorf("report %s: %w", report.ID, err)
	}
	if r.ImageURL != nil {
		report.ImageURL = *r.ImageURL
	}
	if report.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return Report{}, fmt.Errorf("invalid creation time of report %s: %w", report.ID, err)
	}
	if report.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return Report{}, fmt.Errorf("invalid update time of report %s: %w", report.ID, err)
	}
	return report, nil
}

// FromRecords converts records into reports. Records that fail to convert are skipped and
// their errors are joined into the returned error.
func FromRecords(records []Record) ([]Report, error) {
	list := make([]Report, 0, len(records))
	var errs []error
	for _, record := range records {
		report, err := record.Report()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		list = append(list, report)
	}
	return list, errors.Join(errs...)
}

// parseTime accepts the RFC 3339 timestamps PostgREST emits, with or without a zone.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
