package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/drewmudry/chatshorts-api/internal/platform"
	"github.com/drewmudry/chatshorts-api/voice"
	"github.com/spf13/cobra"
)

var voicesAPIKey string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices available to an ElevenLabs key",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := platform.NewVoiceClient(cfg, logger)
		if voicesAPIKey != "" {
			client = client.WithAPIKey(voicesAPIKey)
		}

		voices, err := client.ListVoices(cmd.Context())
		if err != nil {
			return err
		}
		sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID")
		for _, v := range voices {
			fmt.Fprintf(w, "%s\t%s\n", v.Name, v.ID)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ROLE ALIAS\tVOICE")
		for alias, name := range voice.Aliases {
			fmt.Fprintf(w, "%s\t%s\n", alias, name)
		}
		return w.Flush()
	},
}

func init() {
	voicesCmd.Flags().StringVar(&voicesAPIKey, "api-key", "", "ElevenLabs API key (defaults to ELEVENLABS_API_KEY)")
}
