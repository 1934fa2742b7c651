package cmds

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/endevent/pkg/demo"
	"github.com/go-go-golems/endevent/pkg/logging"
)

type effectiveConfig struct {
	Logging logging.Settings `yaml:",inline"`
	Server  demo.Settings    `yaml:",inline"`
}

func newConfigCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(effectiveConfig{
				Logging: loggingSettings(v),
				Server:  serverSettings(v),
			})
			if err != nil {
				return errors.Wrap(err, "marshal config")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	demo.AddFlags(cmd.Flags())
	return cmd
}
