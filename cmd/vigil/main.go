package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/app"
	"github.com/ternarybob/vigil/internal/common"
)

const usage = `Usage: vigil <command> [options]

Commands:
  fetch      Fetch due sources now (optionally one source by id)
  digest     Generate a digest (today or a given date)
  seed       Import categories and sources from a YAML file
  settings   List or change runtime settings
  runs       Show the latest run of a background job
  version    Print version information

Run 'vigil <command> -h' for command options.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if command == "version" || command == "-v" || command == "--version" {
		fmt.Printf("Vigil version %s\n", common.GetFullVersion())
		return
	}

	config, logger := bootstrap()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "fetch":
		err = runFetch(ctx, application, args)
	case "digest":
		err = runDigest(ctx, application, args)
	case "seed":
		err = runSeed(ctx, application, args)
	case "settings":
		err = runSettings(ctx, application, args)
	case "runs":
		err = runRuns(ctx, application, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("command", command).Msg("Command failed")
		os.Exit(1)
	}
}

// bootstrap loads configuration and initializes logging for every
// subcommand.
func bootstrap() (*common.Config, arbor.ILogger) {
	var configFiles []string
	if _, err := os.Stat("vigil.toml"); err == nil {
		configFiles = append(configFiles, "vigil.toml")
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	return config, logger
}

func runFetch(ctx context.Context, application *app.App, args []string) error {
	flags := flag.NewFlagSet("fetch", flag.ExitOnError)
	sourceID := flags.String("source", "", "Fetch one source by id, ignoring its interval")
	maxSources := flags.Int("max", 10, "Maximum sources to fetch this run")
	workerCount := flags.Int("workers", 1, "Concurrent fetch workers")
	flags.Parse(args)

	if *sourceID != "" {
		result, err := application.Fetcher.FetchSource(ctx, *sourceID)
		if err != nil {
			return err
		}
		fmt.Printf("found=%d saved=%d filtered=%d old=%d duplicate=%d\n",
			result.Found, result.Saved, result.Filtered, result.Old, result.Duplicate)
		return nil
	}

	stats, err := application.Fetcher.FetchDueSources(ctx, *maxSources, *workerCount)
	if err != nil {
		return err
	}
	fmt.Printf("sources checked=%d fetched=%d, articles found=%d new=%d filtered=%d old=%d\n",
		stats.SourcesChecked, stats.SourcesFetched,
		stats.ArticlesFound, stats.ArticlesNew, stats.ArticlesFiltered, stats.ArticlesOld)
	for _, sourceErr := range stats.Errors {
		fmt.Printf("error: %s\n", sourceErr)
	}
	return nil
}

func runDigest(ctx context.Context, application *app.App, args []string) error {
	flags := flag.NewFlagSet("digest", flag.ExitOnError)
	date := flags.String("date", "", "Digest date (YYYY-MM-DD, UTC); empty means today")
	flags.Parse(args)

	digest, err := application.Digest.Generate(ctx, *date)
	if err != nil {
		return err
	}
	fmt.Printf("digest %s generated: %s\n", digest.Date, digest.HTMLPath)
	return nil
}

func runRuns(ctx context.Context, application *app.App, args []string) error {
	flags := flag.NewFlagSet("runs", flag.ExitOnError)
	jobName := flags.String("job", "", "Job name (fetch_cycle, digest_scheduler)")
	flags.Parse(args)

	if *jobName == "" {
		return fmt.Errorf("missing -job")
	}

	run, err := application.JobRuns.GetLatest(ctx, *jobName)
	if err != nil {
		return err
	}

	fmt.Printf("job:      %s\n", run.JobName)
	fmt.Printf("status:   %s\n", run.Status)
	fmt.Printf("started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	if run.FinishedAt != nil {
		fmt.Printf("finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	if run.ErrorMessage != "" {
		fmt.Printf("error:    %s\n", run.ErrorMessage)
	}
	for key, value := range run.Details {
		fmt.Printf("  %s: %v\n", key, value)
	}
	return nil
}
