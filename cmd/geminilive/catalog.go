package main

import (
	"github.com/spf13/cobra"

	"github.com/AltairaLabs/geminilive/live"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List prebuilt voices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, v := range live.Voices {
			marker := ""
			if v == live.DefaultVoice {
				marker = " (default)"
			}
			printf(cmd, "%s%s\n", v, marker)
		}
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List speech language codes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, l := range live.Languages {
			marker := ""
			if l == live.DefaultLanguage {
				marker = " (default)"
			}
			printf(cmd, "%s%s\n", l, marker)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a LiveSession manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile = args[0]
		m, err := loadManifest()
		if err != nil {
			return err
		}
		name := m.Metadata.Name
		if name == "" {
			name = args[0]
		}
		printf(cmd, "%s is valid (model %s, voice %s)\n", name, m.Spec.Session.Model, m.Spec.Session.Voice)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd, languagesCmd, validateCmd)
}
