package redisstream

import "github.com/spf13/pflag"

// Settings holds Redis Streams transport configuration for Watermill.
type Settings struct {
	Enabled  bool   `yaml:"redis-enabled" mapstructure:"redis-enabled"`
	Addr     string `yaml:"redis-addr" mapstructure:"redis-addr"`
	Group    string `yaml:"redis-group" mapstructure:"redis-group"`
	Consumer string `yaml:"redis-consumer" mapstructure:"redis-consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		Addr:     "localhost:6379",
		Group:    "end-demo",
		Consumer: "end-demo-1",
	}
}

// AddFlags registers the redis-* flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	d := DefaultSettings()
	fs.Bool("redis-enabled", d.Enabled, "Enable Redis Streams transport for lifecycle events")
	fs.String("redis-addr", d.Addr, "Redis address host:port")
	fs.String("redis-group", d.Group, "Redis consumer group")
	fs.String("redis-consumer", d.Consumer, "Redis consumer name")
}
