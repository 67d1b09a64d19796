package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/vigil/internal/app"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/models"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout for bulk source imports.
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Sources    []seedSource   `yaml:"sources"`
}

type seedCategory struct {
	Name          string   `yaml:"name"`
	DigestSection string   `yaml:"digest_section"`
	Keywords      []string `yaml:"keywords"`
}

type seedSource struct {
	Name                 string   `yaml:"name"`
	Category             string   `yaml:"category"`
	URL                  string   `yaml:"url"`
	Type                 string   `yaml:"type"`
	Keywords             []string `yaml:"keywords"`
	FetchIntervalMinutes int      `yaml:"fetch_interval_minutes"`
	Enabled              *bool    `yaml:"enabled"`
}

// runSeed imports categories and sources from a YAML file. Existing
// categories (by name) and sources (by URL) are updated, so the seed
// file can be re-applied safely.
func runSeed(ctx context.Context, application *app.App, args []string) error {
	flags := flag.NewFlagSet("seed", flag.ExitOnError)
	file := flags.String("file", "sources.yaml", "Seed file path")
	flags.Parse(args)

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	existingCategories, err := application.Storage.CategoryStorage().ListCategories(ctx)
	if err != nil {
		return err
	}
	categoryByName := make(map[string]*models.Category, len(existingCategories))
	for _, category := range existingCategories {
		categoryByName[category.Name] = category
	}

	for _, entry := range seed.Categories {
		if entry.Name == "" || entry.DigestSection == "" {
			return fmt.Errorf("category entries need name and digest_section")
		}
		category, ok := categoryByName[entry.Name]
		if !ok {
			category = &models.Category{
				ID:        common.NewID(),
				Name:      entry.Name,
				CreatedAt: time.Now().UTC(),
			}
			categoryByName[entry.Name] = category
		}
		category.DigestSection = entry.DigestSection
		category.Keywords = entry.Keywords
		if err := application.Storage.CategoryStorage().SaveCategory(ctx, category); err != nil {
			return fmt.Errorf("failed to save category %s: %w", entry.Name, err)
		}
	}

	existingSources, err := application.Storage.SourceStorage().ListSources(ctx)
	if err != nil {
		return err
	}
	sourceByURL := make(map[string]*models.Source, len(existingSources))
	for _, source := range existingSources {
		sourceByURL[source.URL] = source
	}

	saved := 0
	for _, entry := range seed.Sources {
		if entry.Name == "" || entry.URL == "" {
			return fmt.Errorf("source entries need name and url")
		}

		var categoryID string
		if entry.Category != "" {
			category, ok := categoryByName[entry.Category]
			if !ok {
				return fmt.Errorf("source %s references unknown category %s", entry.Name, entry.Category)
			}
			categoryID = category.ID
		}

		source, ok := sourceByURL[entry.URL]
		if !ok {
			source = &models.Source{
				ID:        common.NewID(),
				URL:       entry.URL,
				CreatedAt: time.Now().UTC(),
			}
		}
		source.Name = entry.Name
		source.CategoryID = categoryID
		source.Keywords = entry.Keywords
		source.Type = entry.Type
		if source.Type == "" {
			source.Type = models.SourceTypeWebsite
		}
		source.FetchIntervalMinutes = entry.FetchIntervalMinutes
		if source.FetchIntervalMinutes <= 0 {
			source.FetchIntervalMinutes = 60
		}
		source.Enabled = entry.Enabled == nil || *entry.Enabled

		if err := application.Storage.SourceStorage().SaveSource(ctx, source); err != nil {
			return fmt.Errorf("failed to save source %s: %w", entry.Name, err)
		}
		saved++
	}

	fmt.Printf("seeded %d categories, %d sources\n", len(seed.Categories), saved)
	return nil
}
