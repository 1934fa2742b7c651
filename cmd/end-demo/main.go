package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/endevent/cmd/end-demo/cmds"
)

func main() {
	rootCmd := cmds.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("end-demo failed")
		os.Exit(1)
	}
}
