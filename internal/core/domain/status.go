package domain

import (
	"strings"
	"time"
)

const (
	StatusColorGreen  = "GREEN"
	StatusColorYellow = "YELLOW"
	StatusColorRed    = "RED"
	StatusStyleSolid  = "SOLID"

	warnProgress     = 0.25
	criticalProgress = 0.10
)

var (
	statusColors = map[string]struct{}{
		"PINK": {}, "BLUE": {}, "RED": {}, "GREEN": {}, "YELLOW": {}, "PURPLE": {}, "WHITE": {},
	}
	statusStyles = map[string]struct{}{
		"SOLID": {}, "SEGMENTED_6": {}, "SEGMENTED_10": {}, "SEGMENTED_12": {}, "SEGMENTED_20": {},
	}
)

// Status is the countdown display shown to a principal during a session.
type Status struct {
	Title    string  `json:"title"`
	Progress float64 `json:"progress"`
	Color    string  `json:"color"`
	Style    string  `json:"style"`
}

// StatusStyle carries the configured base look of the display.
type StatusStyle struct {
	Color string
	Style string
}

// StatusOf computes the display for the session at the supplied moment.
func StatusOf(s Session, now time.Time, look StatusStyle) Status {
	status := Status{
		Color: NormalizeStatusColor(look.Color),
		Style: NormalizeStatusStyle(look.Style),
	}

	if s.Unbounded() {
		status.Title = "DoubleLife Mode - Unlimited"
		status.Progress = 1.0
		return status
	}

	status.Title = "DoubleLife [" + strings.Join(s.ActiveProfiles, ", ") + "] - " + s.FormattedRemaining(now)

	progress := float64(s.RemainingSeconds(now)) / float64(s.Duration)
	switch {
	case progress < 0:
		progress = 0
	case progress > 1:
		progress = 1
	}
	status.Progress = progress

	switch {
	case progress < criticalProgress:
		status.Color = StatusColorRed
	case progress < warnProgress:
		status.Color = StatusColorYellow
	}
	return status
}

// NormalizeStatusColor upper-cases a configured color, falling back to GREEN when unknown.
func NormalizeStatusColor(color string) string {
	c := strings.ToUpper(strings.TrimSpace(color))
	if _, ok := statusColors[c]; ok {
		return c
	}
	return StatusColorGreen
}

// NormalizeStatusStyle upper-cases a configured style, falling back to SOLID when unknown.
func NormalizeStatusStyle(style string) string {
	s := strings.ToUpper(strings.TrimSpace(style))
	if _, ok := statusStyles[s]; ok {
		return s
	}
	return StatusStyleSolid
}
