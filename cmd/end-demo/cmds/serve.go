package cmds

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/endevent/pkg/demo"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /test1 and log close/end/finish for every request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := serverSettings(v)
			srv, err := demo.NewServer(settings)
			if err != nil {
				return errors.Wrap(err, "new server")
			}
			log.Info().
				Str("addr", settings.Addr).
				Dur("delay", settings.Delay).
				Bool("redis", settings.Redis.Enabled).
				Str("journal_db", settings.JournalDB).
				Msg("end-demo configured")
			return srv.Run(cmd.Context())
		},
	}
	demo.AddFlags(cmd.Flags())
	return cmd
}
