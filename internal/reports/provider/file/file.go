// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/wneessen/incident-ar/internal/reports"
)

const name = "file"

var ErrPathRequired = errors.New("report file path is required")

// File reads reports from a JSON file holding an array of report records, e.g. an export of
// the reports table.
type File struct {
	path string
}

func New(path string) (*File, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	return &File{path: path}, nil
}

func (f *File) Name() string {
	return name
}

// List reads and converts the file on every call.
func (f *File) List(ctx context.Context) ([]reports.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var records []reports.Record
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode report file %q: %w", f.path, err)
	}
	return reports.FromRecords(records)
}
