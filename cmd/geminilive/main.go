// Command geminilive runs a bidirectional voice session against the Gemini Live API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/geminilive/config"
	"github.com/AltairaLabs/geminilive/logger"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "geminilive",
	Short:         "Gemini Live - bidirectional voice sessions from the terminal",
	Version:       GetVersion(),
	SilenceUsage:  true, // Don't print usage on error
	SilenceErrors: false,
	Long: `geminilive opens a streaming session with the Gemini Live API, sends
microphone, WAV or text input, plays the model's audio and saves each
response as a WAV file.

Configuration comes from an optional LiveSession manifest (--config).
The API key is read from GEMINI_API_KEY.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Runs before all subcommands
		if cmd.Flags().Changed("verbose") {
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a LiveSession manifest")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadManifest returns the manifest named by --config, or the defaults.
// Logging from the manifest is applied before --verbose.
func loadManifest() (*config.Manifest, error) {
	m := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	logger.Configure(&m.Spec.Logging)
	if verbose {
		logger.SetVerbose(true)
	}
	return m, nil
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func main() {
	Execute()
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
