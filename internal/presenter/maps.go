// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/sensor"
)

// CategoryIcons maps report categories to the emoji shown on their markers.
var CategoryIcons = map[reports.Category]string{
	reports.CategoryRoad:      "🚧",
	reports.CategoryLighting:  "💡",
	reports.CategoryWaste:     "🗑️",
	reports.CategoryFurniture: "🪑",
	reports.CategoryOther:     "📋",
}

// CategoryColors maps report categories to the marker color.
var CategoryColors = map[reports.Category]string{
	reports.CategoryRoad:      "#ef4444",
	reports.CategoryLighting:  "#f59e0b",
	reports.CategoryWaste:     "#10b981",
	reports.CategoryFurniture: "#3b82f6",
	reports.CategoryOther:     "#6b7280",
}

// CategoryLabels maps report categories to their display names.
var CategoryLabels = map[reports.Category]localize.MsgID{
	reports.CategoryRoad:      "Roads",
	reports.CategoryLighting:  "Street lighting",
	reports.CategoryWaste:     "Waste",
	reports.CategoryFurniture: "Street furniture",
	reports.CategoryOther:     "Other",
}

var StatusLabels = map[reports.Status]localize.MsgID{
	reports.StatusPending:    "Pending",
	reports.StatusInProgress: "In progress",
	reports.StatusResolved:   "Resolved",
}

var phaseMessages = map[sensor.Phase]localize.MsgID{
	sensor.PhaseNotStarted:         "AR view not started",
	sensor.PhaseRequestingLocation: "Requesting location...",
	sensor.PhaseRequestingCamera:   "Requesting camera...",
	sensor.PhaseDisposed:           "AR view closed",
}

// errorMessages holds one message per stage specific acquisition error.
var errorMessages = map[error]localize.MsgID{
	sensor.ErrLocationPermissionDenied:    "Location permission denied",
	sensor.ErrLocationTimeout:             "Location request timed out",
	sensor.ErrCameraPermissionDenied:      "Camera permission denied",
	sensor.ErrCameraUnavailable:           "Camera unavailable",
	sensor.ErrOrientationPermissionDenied: "Orientation permission denied",
}

// kindMessages are used for errors without a stage specific message. They take the stage.
var kindMessages = map[sensor.Kind]localize.MsgID{
	sensor.KindPermissionDenied: "Permission denied: %s",
	sensor.KindTimeout:          "Timed out: %s",
	sensor.KindUnavailable:      "Device unavailable: %s",
}

var stageLabels = map[sensor.Stage]localize.MsgID{
	sensor.StageLocation:    "location",
	sensor.StageCamera:      "camera",
	sensor.StageOrientation: "orientation",
}

var i18nVars = map[string]localize.MsgID{
	"distance":    "Distance",
	"reported":    "Reported",
	"photo":       "Photo",
	"directions":  "Directions",
	"validations": "Validations",
	"status":      "Status",
	"location":    "Location",
	"reports":     "Reports",
}
