// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":     p.timeFormat,
		"localizedTime":  p.localizedTime,
		"naturalTime":    p.naturalTime,
		"floatFormat":    p.floatFormat,
		"distance":       DistanceBadge,
		"emojiWithSpace": EmojiWithSpace,
		"loc":            p.loc,
		"lc":             strings.ToLower,
		"uc":             strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	val = strings.ToLower(val)
	if raw, ok := i18nVars[val]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) naturalTime(val time.Time) string {
	if val.IsZero() {
		return ""
	}
	return p.humanizer.NaturalTime(val)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// DistanceBadge formats a distance in meters below one kilometer and in kilometers with one
// decimal from there on.
func DistanceBadge(meters float64) string {
	if meters < 1000 {
		return strconv.FormatFloat(math.Round(meters), 'f', 0, 64) + "m"
	}
	return strconv.FormatFloat(meters/1000, 'f', 1, 64) + "km"
}

// ValidationsBadge returns the check mark badge for a report validated by count citizens
// or an empty string if nobody validated it yet.
func ValidationsBadge(count int) string {
	if count <= 0 {
		return ""
	}
	return "✓ " + strconv.Itoa(count)
}

// EmojiWithSpace pads an emoji so that text following it lines up regardless of its width.
func EmojiWithSpace(emoji string) string {
	if emoji == "" {
		return ""
	}
	width := runewidth.StringWidth(emoji)
	return fmt.Sprintf("%s%s", emoji, strings.Repeat(" ", max(1, 3-width)))
}
