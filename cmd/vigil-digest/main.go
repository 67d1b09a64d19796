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

var (
	configFile  = flag.String("config", "", "Configuration file path")
	runOnce     = flag.Bool("once", false, "Generate today's digest and exit")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vigil-digest version %s\n", common.GetFullVersion())
		return
	}

	var configFiles []string
	if *configFile != "" {
		configFiles = append(configFiles, *configFile)
	} else if _, err := os.Stat("vigil.toml"); err == nil {
		configFiles = append(configFiles, "vigil.toml")
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetFullVersion())

	common.InstallCrashHandler("logs")
	defer common.RecoverWithCrashFile()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *runOnce {
		if err := application.Schedule.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("Digest generation failed")
			os.Exit(1)
		}
		return
	}

	application.Schedule.Loop(ctx)
}
