package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"compconv/config"
	"compconv/core/generator"

	"github.com/spf13/cobra"
)

var generateCount int

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Request one batch of generated tracks and print it",
	Long:  `Call the configured generation API (or the built-in sample generator when none is configured) for one batch of tracks and print the result as JSON. Useful for checking credentials and inspecting what the library cache will see.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		var gen generator.Generator
		if cfg.GenerationAPIURL != "" {
			fmt.Printf("Using generation API at %s\n", cfg.GenerationAPIURL)
			gen = generator.NewClient(cfg.GenerationAPIURL, cfg.GenerationAPIKey)
		} else {
			fmt.Println("No generation API configured, using sample generator")
			gen = generator.NewMock(cfg.SampleBaseURL, 0)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		tracks, err := gen.GenerateBatch(ctx, generateCount)
		if err != nil {
			log.Fatalf("Batch generation failed: %v", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tracks); err != nil {
			log.Fatalf("Failed to encode tracks: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateCount, "count", "c", 16, "number of tracks to request")
}
