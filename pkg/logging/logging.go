// Package logging configures the global zerolog logger from command line
// settings.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level      string `yaml:"log-level" mapstructure:"log-level"`
	Format     string `yaml:"log-format" mapstructure:"log-format"`
	File       string `yaml:"log-file,omitempty" mapstructure:"log-file"`
	WithCaller bool   `yaml:"with-caller" mapstructure:"with-caller"`
}

func DefaultSettings() Settings {
	return Settings{Level: "info", Format: "text"}
}

// AddFlags registers the logging flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := DefaultSettings()
	fs.String("log-level", d.Level, "Log level (trace, debug, info, warn, error)")
	fs.String("log-format", d.Format, "Log format (text, json)")
	fs.String("log-file", "", "Log to this file instead of stderr (rotated)")
	fs.Bool("with-caller", false, "Log caller file and line")
}

// InitLogger replaces log.Logger according to s.
func InitLogger(s Settings) error {
	logger, err := NewLogger(s, os.Stderr)
	if err != nil {
		return err
	}
	log.Logger = logger
	zerolog.SetGlobalLevel(logger.GetLevel())
	return nil
}

// NewLogger builds a logger writing to stderrW, or to s.File when set.
func NewLogger(s Settings, stderrW io.Writer) (zerolog.Logger, error) {
	levelName := strings.TrimSpace(s.Level)
	if levelName == "" {
		levelName = "info"
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "parse log level %q", s.Level)
	}

	var w io.Writer = stderrW
	if s.File != "" {
		w = &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	switch strings.ToLower(strings.TrimSpace(s.Format)) {
	case "", "text":
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    s.File != "" || !isTerminal(stderrW),
			TimeFormat: time.RFC3339,
		}
	case "json":
	default:
		return zerolog.Nop(), errors.Errorf("unknown log format %q", s.Format)
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
