package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voyagen/worldtv/internal/catalog"
	"github.com/voyagen/worldtv/internal/fetcher"
	"github.com/voyagen/worldtv/internal/models"
)

type catalogSummary struct {
	Channels   int              `json:"channels"`
	Countries  []string         `json:"countries"`
	Categories []string         `json:"categories"`
	ByCategory map[string]int   `json:"by_category"`
	Took       string           `json:"took"`
	Sample     []models.Channel `json:"sample,omitempty"`
}

func newCatalogCmd() *cobra.Command {
	var (
		file   string
		sample int
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Aggregate the catalog once and print a JSON summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			start := time.Now()

			var channels []models.Channel
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				channels, err = fetcher.ParseReader(f, fetcher.ParseOptions{AllowedSchemes: cfg.AllowedSchemes(), IDPrefix: "file"})
				if err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			} else {
				channels = buildCatalog(cfg, logger).Refresh(cmd.Context()).Channels
			}

			summary := catalogSummary{
				Channels:   len(channels),
				Countries:  catalog.Countries(channels, cfg.PinnedCountries),
				Categories: catalog.Categories(channels),
				ByCategory: map[string]int{},
				Took:       time.Since(start).Round(time.Millisecond).String(),
			}
			for _, ch := range channels {
				summary.ByCategory[ch.Category]++
			}
			if sample > 0 {
				summary.Sample = channels[:min(sample, len(channels))]
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "parse a local M3U file instead of fetching the sources")
	cmd.Flags().IntVar(&sample, "sample", 0, "include the first n channels in the output")
	return cmd
}
