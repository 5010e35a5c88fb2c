// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"encoding/json"
	"strings"

	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/overlay"
)

// printFrame renders frame as a status bar line: the status text, the marker labels as
// tooltip and the phase as class.
func (s *Service) printFrame(frame overlay.Frame) {
	view, err := s.presenter.Frame(frame)
	if err != nil {
		s.logger.Error("failed to render overlay template", logger.Err(err))
		return
	}

	labels := make([]string, 0, len(view.Markers))
	for _, m := range view.Markers {
		labels = append(labels, m.Label)
	}
	output := outputData{
		Text:    view.Status.Text,
		Tooltip: strings.Join(labels, "\n"),
		Classes: []string{OutputClass, view.Status.Phase},
	}
	if view.Status.Error {
		output.Classes = append(output.Classes, ErrorOutputClass)
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	s.lastPhase = frame.State.Phase
	s.printed = true
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode overlay output", logger.Err(err))
	}
}
