// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter turns overlay frames into the labels, badges and messages shown to the
// user.
package presenter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/es"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"

	"github.com/wneessen/incident-ar/internal/config"
	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/navigation"
	"github.com/wneessen/incident-ar/internal/overlay"
	"github.com/wneessen/incident-ar/internal/projection"
	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/sensor"
)

// MarkerView is a marker with its presentation fields.
type MarkerView struct {
	ID                    uuid.UUID        `json:"id"`
	Category              reports.Category `json:"category"`
	CategoryIcon          string           `json:"icon"`
	CategoryIconWithSpace string           `json:"-"`
	CategoryLabel         string           `json:"category_label"`
	Color                 string           `json:"color"`
	ScreenX               float64          `json:"screen_x"`
	Distance              string           `json:"distance"`
	DistanceMeters        float64          `json:"distance_meters"`
	Bearing               float64          `json:"bearing"`
	CompassPoint          string           `json:"compass_point"`
	Validations           string           `json:"validations,omitempty"`
	Label                 string           `json:"label"`
}

// DetailView is the read-only detail panel of a selected report.
type DetailView struct {
	MarkerView
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Age           string    `json:"age"`
	Coordinates   string    `json:"coordinates"`
	DirectionsURL string    `json:"directions_url"`
	Text          string    `json:"text"`
}

// StatusView describes the overlay as a whole.
type StatusView struct {
	Phase         string         `json:"phase"`
	Message       string         `json:"message"`
	Error         bool           `json:"error"`
	NeedsGesture  bool           `json:"needs_gesture"`
	CompassActive bool           `json:"compass_active"`
	Heading       float64        `json:"heading"`
	CompassPoint  string         `json:"compass_point"`
	Position      geo.Coordinate `json:"position"`
	Nearby        int            `json:"nearby"`
	Visible       int            `json:"visible"`
	Markers       bool           `json:"-"`
	Text          string         `json:"text"`
}

// FrameView is a rendered overlay frame.
type FrameView struct {
	Seq     uint64       `json:"seq"`
	Status  StatusView   `json:"status"`
	Markers []MarkerView `json:"markers"`
}

type Presenter struct {
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	marker    *template.Template
	detail    *template.Template
	status    *template.Template
}

// New parses the configured templates and checks that they render.
func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	if loc == nil {
		return nil, errors.New("localizer is required")
	}
	collection, err := humanize.New(humanize.WithLocale(es.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		localizer: loc,
		humanizer: collection.CreateHumanizer(loc.Language(), language.English),
	}

	if pres.marker, err = pres.parse("marker", conf.Templates.Marker); err != nil {
		return nil, err
	}
	if pres.detail, err = pres.parse("detail", conf.Templates.Detail); err != nil {
		return nil, err
	}
	if pres.status, err = pres.parse("status", conf.Templates.Status); err != nil {
		return nil, err
	}

	// Catch templates referencing unknown fields at startup instead of on the first frame
	sample := projection.Marker{Report: reports.Report{Category: reports.CategoryOther, CreatedAt: time.Now()}}
	if _, err = pres.render(pres.marker, pres.markerView(sample)); err != nil {
		return nil, err
	}
	if _, err = pres.Detail(sample); err != nil {
		return nil, err
	}
	if _, err = pres.render(pres.status, StatusView{Markers: true}); err != nil {
		return nil, err
	}
	return pres, nil
}

// Frame presents an overlay frame.
func (p *Presenter) Frame(frame overlay.Frame) (FrameView, error) {
	view := FrameView{Seq: frame.Seq, Markers: make([]MarkerView, 0, len(frame.Markers))}
	for _, m := range frame.Markers {
		mv, err := p.Marker(m)
		if err != nil {
			return view, err
		}
		view.Markers = append(view.Markers, mv)
	}

	status, err := p.Status(frame)
	if err != nil {
		return view, err
	}
	view.Status = status
	return view, nil
}

// Marker presents a single marker including its label.
func (p *Presenter) Marker(m projection.Marker) (MarkerView, error) {
	view := p.markerView(m)
	label, err := p.render(p.marker, view)
	if err != nil {
		return view, err
	}
	view.Label = label
	return view, nil
}

// Detail presents the detail panel of a selected marker.
func (p *Presenter) Detail(m projection.Marker) (DetailView, error) {
	r := m.Report
	status := r.Status
	if status == "" {
		status = reports.StatusPending
	}
	view := DetailView{
		MarkerView:    p.markerView(m),
		Description:   r.Description,
		Status:        p.localizer.Get(StatusLabels[status]),
		ImageURL:      r.ImageURL,
		CreatedAt:     r.CreatedAt,
		Age:           p.naturalTime(r.CreatedAt),
		Coordinates:   fmt.Sprintf("%.5f, %.5f", r.Location.Lat, r.Location.Lon),
		DirectionsURL: navigation.DirectionsURL(r.Location),
	}
	text, err := p.render(p.detail, view)
	if err != nil {
		return view, err
	}
	view.Text = text
	return view, nil
}

// Status presents the acquisition state of a frame.
func (p *Presenter) Status(frame overlay.Frame) (StatusView, error) {
	view := StatusView{
		Phase:         frame.State.Phase.String(),
		Message:       p.Message(frame.State),
		Error:         frame.State.Err != nil,
		NeedsGesture:  frame.State.NeedsCompassGesture(),
		CompassActive: frame.State.CompassActive,
		Nearby:        frame.Nearby,
		Visible:       len(frame.Markers),
		Markers:       frame.State.Rendering(),
	}
	if frame.State.Phase == sensor.PhaseGranted {
		view.Position = frame.Self
	}
	if frame.State.CompassActive {
		view.Heading = frame.Heading
		view.CompassPoint = geo.CompassPoint(frame.Heading)
	}
	text, err := p.render(p.status, view)
	if err != nil {
		return view, err
	}
	view.Text = text
	return view, nil
}

// Message returns the localized user-facing message for state.
func (p *Presenter) Message(state sensor.State) string {
	switch state.Phase {
	case sensor.PhaseFailed:
		return p.ErrorMessage(state.Err)
	case sensor.PhaseGranted:
		switch {
		case state.Err != nil:
			return p.ErrorMessage(state.Err)
		case state.NeedsCompassGesture():
			return p.localizer.Get("Tap to enable the compass")
		case !state.CompassActive:
			return p.localizer.Get("Compass not yet active")
		default:
			return p.localizer.Get("AR view active")
		}
	default:
		return p.localizer.Get(phaseMessages[state.Phase])
	}
}

// ErrorMessage returns a distinct localized message for every acquisition error.
func (p *Presenter) ErrorMessage(err *sensor.AcquisitionError) string {
	if err == nil {
		return p.localizer.Get("Unknown error")
	}
	if msg, ok := errorMessages[err.Sentinel()]; ok {
		return p.localizer.Get(msg)
	}
	if msg, ok := kindMessages[err.Kind]; ok {
		return p.localizer.Getf(msg, p.localizer.Get(stageLabels[err.Stage]))
	}
	detail := "n/a"
	if err.Err != nil {
		detail = err.Err.Error()
	}
	return p.localizer.Getf("Unknown error: %s", detail)
}

func (p *Presenter) markerView(m projection.Marker) MarkerView {
	icon := CategoryIcons[m.Report.Category]
	return MarkerView{
		ID:                    m.Report.ID,
		Category:              m.Report.Category,
		CategoryIcon:          icon,
		CategoryIconWithSpace: EmojiWithSpace(icon),
		CategoryLabel:         p.localizer.Get(CategoryLabels[m.Report.Category]),
		Color:                 CategoryColors[m.Report.Category],
		ScreenX:               m.ScreenX,
		Distance:              DistanceBadge(m.DistanceMeters),
		DistanceMeters:        m.DistanceMeters,
		Bearing:               m.BearingDegrees,
		CompassPoint:          geo.CompassPoint(m.BearingDegrees),
		Validations:           ValidationsBadge(m.Report.ValidationsCount),
	}
}

func (p *Presenter) parse(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(p.templateFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	return tpl, nil
}

func (p *Presenter) render(tpl *template.Template, data any) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := tpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
