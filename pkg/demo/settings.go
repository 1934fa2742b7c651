package demo

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/go-go-golems/endevent/pkg/lifecycle/bus"
	"github.com/go-go-golems/endevent/pkg/redisstream"
)

// Settings configures NewServer. Field tags match the serve command flags.
type Settings struct {
	Addr        string               `yaml:"addr" mapstructure:"addr"`
	Delay       time.Duration        `yaml:"delay" mapstructure:"delay"`
	JournalDB   string               `yaml:"journal-db,omitempty" mapstructure:"journal-db"`
	JournalSize int                  `yaml:"journal-size" mapstructure:"journal-size"`
	Topic       string               `yaml:"topic" mapstructure:"topic"`
	Redis       redisstream.Settings `yaml:",inline" mapstructure:",squash"`
}

func DefaultSettings() Settings {
	return Settings{
		Addr:        ":8080",
		Delay:       time.Second,
		JournalSize: 1000,
		Topic:       bus.DefaultTopic,
		Redis:       redisstream.DefaultSettings(),
	}
}

// AddFlags registers the serve flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := DefaultSettings()
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.Duration("delay", d.Delay, "Artificial delay before /test1 answers")
	fs.String("journal-db", d.JournalDB, "SQLite file for the request journal (empty keeps it in memory)")
	fs.Int("journal-size", d.JournalSize, "Number of requests kept by the in-memory journal")
	fs.String("topic", d.Topic, "Event bus topic for lifecycle events")
	redisstream.AddFlags(fs)
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Addr) == "" {
		return errors.New("addr is empty")
	}
	if s.Delay < 0 {
		return errors.Errorf("delay must not be negative, got %s", s.Delay)
	}
	if s.JournalSize < 0 {
		return errors.Errorf("journal-size must not be negative, got %d", s.JournalSize)
	}
	return nil
}
