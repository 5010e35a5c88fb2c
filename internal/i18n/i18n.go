// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package i18n provides the localizer for user-facing overlay messages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"
)

const catalogExt = ".po"

//go:embed locale/*
var locales embed.FS

// New returns a Localizer for the catalog that best matches loc. An empty loc is detected
// from the environment. English messages are used for everything not translated.
func New(loc string) (*spreak.Localizer, error) {
	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}
	available, err := Available(localeFS)
	if err != nil {
		return nil, fmt.Errorf("failed to list message catalogs: %w", err)
	}
	tag := Match(requestedTag(loc), available)

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDomainFs("", localeFS),
		spreak.WithLanguage(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create i18n bundle: %w", err)
	}
	return spreak.NewLocalizer(bundle, tag), nil
}

// Available returns the languages with a message catalog in fsys. English is always first.
func Available(fsys fs.FS) ([]language.Tag, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	tags := []language.Tag{language.English}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != catalogExt {
			continue
		}
		tag, err := language.Parse(strings.TrimSuffix(entry.Name(), catalogExt))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Match returns the entry of available that is closest to tag, or English if none is
// close enough.
func Match(tag language.Tag, available []language.Tag) language.Tag {
	if len(available) == 0 {
		return language.English
	}
	_, idx, confidence := language.NewMatcher(available).Match(tag)
	if confidence == language.No {
		return language.English
	}
	return available[idx]
}

func requestedTag(loc string) language.Tag {
	if loc == "" {
		tag, err := locale.Detect()
		if err != nil {
			return language.English // Unable to detect locale, fallback to English
		}
		return tag
	}
	return language.Make(loc)
}
