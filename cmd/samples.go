package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"compconv/config"
	"compconv/storage"

	"github.com/spf13/cobra"
)

var (
	sampleFile string
	sampleName string
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Upload canned sample audio to MinIO",
	Long:  `Upload an audio file into the sample bucket so the server can serve it under /samples/ and use it as generation fallback audio.`,
	Run: func(cmd *cobra.Command, args []string) {
		if sampleFile == "" {
			log.Fatal("a file to upload is required, use -f")
		}

		cfg := config.Load()
		fmt.Printf("MinIO config: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		f, err := os.Open(sampleFile)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", sampleFile, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			log.Fatalf("Failed to stat %s: %v", sampleFile, err)
		}

		name := sampleName
		if name == "" {
			name = filepath.Base(sampleFile)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := storage.PutSample(ctx, name, f, info.Size()); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
		fmt.Printf("Uploaded %s (%d bytes) as %s\n", sampleFile, info.Size(), name)
	},
}

func init() {
	rootCmd.AddCommand(samplesCmd)

	samplesCmd.Flags().StringVarP(&sampleFile, "file", "f", "", "local audio file to upload")
	samplesCmd.Flags().StringVarP(&sampleName, "name", "n", "", "object name in the bucket, defaults to the file name")

	samplesCmd.Example = `  # Upload a fallback sample under its own name
  compconv_server samples -f ./fallback-remix.mp3

  # Upload under a different object name
  compconv_server samples -f ./render.mp3 -n fallback-speech.mp3`
}
