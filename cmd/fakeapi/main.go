package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/common-nighthawk/go-figure"

	"go-fintrack/internal/app"
	"go-fintrack/internal/config"
	"go-fintrack/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger.Setup(os.Stdout, cfg.LogLevel)
	displayAppname("fintrack api")

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
