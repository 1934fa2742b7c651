// Package cmds holds the cobra commands of end-demo.
package cmds

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/endevent/pkg/demo"
	"github.com/go-go-golems/endevent/pkg/logging"
	"github.com/go-go-golems/endevent/pkg/redisstream"
)

const envPrefix = "END_DEMO"

// NewRootCommand builds the end-demo command tree. Every invocation gets its
// own viper instance so commands can be built repeatedly in tests.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "end-demo",
		Short:         "Demo server for the response \"end\" lifecycle signal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindConfig(v, cmd); err != nil {
				return err
			}
			// reinitialize the logger now that --log-level and co are parsed
			return logging.InitLogger(loggingSettings(v))
		},
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	logging.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCommand(v))
	rootCmd.AddCommand(newConfigCommand(v))
	return rootCmd
}

// bindConfig layers flags over env (END_DEMO_*) over the config file.
func bindConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config file %s", path)
		}
	}
	return nil
}

func loggingSettings(v *viper.Viper) logging.Settings {
	return logging.Settings{
		Level:      v.GetString("log-level"),
		Format:     v.GetString("log-format"),
		File:       v.GetString("log-file"),
		WithCaller: v.GetBool("with-caller"),
	}
}

func serverSettings(v *viper.Viper) demo.Settings {
	return demo.Settings{
		Addr:        v.GetString("addr"),
		Delay:       v.GetDuration("delay"),
		JournalDB:   v.GetString("journal-db"),
		JournalSize: v.GetInt("journal-size"),
		Topic:       v.GetString("topic"),
		Redis: redisstream.Settings{
			Enabled:  v.GetBool("redis-enabled"),
			Addr:     v.GetString("redis-addr"),
			Group:    v.GetString("redis-group"),
			Consumer: v.GetString("redis-consumer"),
		},
	}
}
