// Command madrasactl runs administrative tasks against the portal's store.
package main

import (
	"os"

	"madrasa/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error().Err(err).Msg("madrasactl failed")
		os.Exit(1)
	}
}
