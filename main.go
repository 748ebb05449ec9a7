package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"redis_browser/internal/command"
	"redis_browser/src"
	"redis_browser/src/logger"
)

func main() {
	// Load environment variables from .env file; the file is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	config, err := src.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(config.LogConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	app := command.App(command.Deps{
		Config: config,
		Logger: logger.Component("cli"),
		In:     os.Stdin,
		Out:    os.Stdout,
	})
	if err := app.Run(os.Args); err != nil {
		logger.Debug().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
