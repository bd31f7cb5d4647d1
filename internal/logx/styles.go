// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package logx

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles defines the visual styles of the console levels.
type Styles struct {
	Levels  map[string]lipgloss.Style
	Unknown lipgloss.Style
}

// DefaultStyles returns the default level styling.
func DefaultStyles() *Styles {
	level := func(label, color string) lipgloss.Style {
		return lipgloss.NewStyle().
			SetString(label).
			Foreground(lipgloss.Color(color)).
			Bold(true)
	}

	return &Styles{
		Levels: map[string]lipgloss.Style{
			"trace": level("TRC", "#6f6f6f"),
			"debug": level("DEB", "#8d8d8d"),
			"info":  level("INF", "#4589ff"),
			"warn":  level("WAR", "#ff832b"),
			"error": level("ERR", "#fa4d56"),
			"fatal": level("FTL", "#da1e28"),
			"panic": level("PNC", "#da1e28"),
		},
		Unknown: lipgloss.NewStyle().SetString("???"),
	}
}

// Level returns the 3-letter label of a zerolog level, rendered with
// its style if color is true.
func (s *Styles) Level(level string, color bool) string {
	style, ok := s.Levels[strings.ToLower(level)]
	if !ok {
		style = s.Unknown
	}

	if !color {
		return style.Value()
	}
	return style.String()
}
