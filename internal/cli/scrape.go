package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/mindshift/internal/scraper"
)

func newScrapeCmd(envFile *string) *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch a course page and print its normalised content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			s, err := scraper.NewFromConfig(cfg.Scraper)
			if err != nil {
				return err
			}

			content, err := s.Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if text {
				_, err = fmt.Fprintln(out, content.String())
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(content)
		},
	}

	cmd.Flags().BoolVar(&text, "text", false, "print the prompt rendering instead of JSON")
	return cmd
}
