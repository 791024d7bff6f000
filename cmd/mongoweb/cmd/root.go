package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version stamped at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mongoweb",
	Short: "mongoweb is a browser-based MongoDB administration server",
	Long: `A web server for administering MongoDB instances. Database
credentials are escrowed per session behind a one-time-pad token; the
server never stores a password.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
