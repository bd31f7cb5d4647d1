// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package logx builds the root zerolog logger of the phtree command.
//
// Console output is human readable with lipgloss styled levels, colors
// are only used if the output is a terminal. An optional log file is
// written as JSON and rotated by lumberjack.
package logx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrInvalidLevel  = errors.New("logx: invalid level")
	ErrInvalidFormat = errors.New("logx: invalid format")
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"

	timeFormat = "01-02 15:04:05"
)

// Config of the root logger.
type Config struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`

	// File enables a JSON log file with rotation, empty means no file.
	File       string `mapstructure:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// DefaultConfig logs info and above to the console.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatConsole,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 7,
	}
}

// ParseLevel parses debug, info, warn, error and disabled, case insensitive.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// New returns the root logger writing to out and the optional log file.
// The returned closer must be called at exit, it closes the log file.
func New(cfg Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var console io.Writer
	switch strings.ToLower(cfg.Format) {
	case FormatConsole, "":
		console = ConsoleWriter(out, IsTerminal(out))
	case FormatJSON:
		console = out
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	w := console

	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return log, closer, nil
}

// ConsoleWriter returns a zerolog console writer, levels are styled
// with lipgloss if color is true.
func ConsoleWriter(out io.Writer, color bool) zerolog.ConsoleWriter {
	styles := DefaultStyles()

	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !color,
		TimeFormat: timeFormat,
		FormatLevel: func(i any) string {
			s, _ := i.(string)
			return styles.Level(s, color)
		},
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
