package cmd

import (
	"compconv/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Composition Converter HTTP server",
	Long:  `Start the HTTP server that backs the Composition Converter UI: library, quality verification, generation proxy and player endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
