package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamsanghera/hubrelay/pkg/discovery"
)

var discoverTimeout time.Duration

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover topic_url",
	Short: "Lists the hubs a topic advertises",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one topic url, got %d", len(args))
		}
		if _, err := url.ParseRequestURI(args[0]); err != nil {
			return fmt.Errorf("'%s' is not a valid url", args[0])
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: discoverTimeout}
		hubs, self, err := discovery.DiscoverTopic(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "self: %s\n", self)
		for _, hub := range sortedHubs(hubs) {
			fmt.Fprintf(out, "hub:  %s\n", hub)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 10*time.Second, "request timeout")
}

func sortedHubs(hubs map[string]struct{}) []string {
	out := make([]string, 0, len(hubs))
	for hub := range hubs {
		out = append(out, hub)
	}
	sort.Strings(out)
	return out
}
