package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/services/digest"
	"github.com/ternarybob/vigil/internal/services/fetcher"
	"github.com/ternarybob/vigil/internal/services/jobruns"
	"github.com/ternarybob/vigil/internal/services/llm"
	"github.com/ternarybob/vigil/internal/services/notifier"
	"github.com/ternarybob/vigil/internal/services/settings"
	"github.com/ternarybob/vigil/internal/services/summarizer"
	"github.com/ternarybob/vigil/internal/storage/sqlite"
)

// App wires the storage layer and services together. All three
// binaries build the same graph and use the parts they need.
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Storage  interfaces.StorageManager
	Settings *settings.Service
	JobRuns  *jobruns.Service
	Fetcher  *fetcher.Manager
	Digest   *digest.Service
	Schedule *digest.Scheduler

	browser *fetcher.Browser
}

// New builds the application graph. The database is opened and
// migrated here; a failure to reach it is fatal for every binary.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storage, err := sqlite.NewManager(logger, &config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	settingsService := settings.NewService(storage.SettingStorage(), logger)
	jobRunService := jobruns.NewService(storage.JobRunStorage(), logger)

	browser := fetcher.NewBrowser(logger)
	pageClient := httpclient.New()
	registry := fetcher.NewRegistry(
		fetcher.NewWebsiteFetcher(pageClient, browser, logger),
	)
	fetchManager := fetcher.NewManager(storage, registry, logger)

	llmFactory := llm.NewFactory(&config.LLM, logger)
	summarizerService := summarizer.NewService(settingsService, llmFactory, logger)
	telegramNotifier := notifier.NewTelegramNotifier(&config.Telegram, config.Digest.BaseURL, logger)

	digestService := digest.NewService(storage, settingsService, summarizerService, telegramNotifier, config.Digest.OutputDir, logger)
	scheduler := digest.NewScheduler(digestService, settingsService, jobRunService, logger)

	return &App{
		Config:   config,
		Logger:   logger,
		Storage:  storage,
		Settings: settingsService,
		JobRuns:  jobRunService,
		Fetcher:  fetchManager,
		Digest:   digestService,
		Schedule: scheduler,
		browser:  browser,
	}, nil
}

// Close releases the browser and the database.
func (a *App) Close() {
	if a.browser != nil {
		a.browser.Shutdown()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
