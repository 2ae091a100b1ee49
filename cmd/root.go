package cmd

import (
	"fmt"
	"log"
	"os"

	"compconv/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compconv_server",
	Short: "Composition Converter is an EDM generation and conversion service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting Composition Converter server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
