// Command fetchdsl runs a fetch-pipeline script against the network.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fetchdsl/fetchdsl/internal/bridge"
	"github.com/fetchdsl/fetchdsl/internal/config"
	"github.com/fetchdsl/fetchdsl/internal/dsl/interpreter"
	"github.com/fetchdsl/fetchdsl/internal/history"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
	"github.com/fetchdsl/fetchdsl/internal/logging"
)

func main() {
	var settingsPath string
	flag.StringVar(&settingsPath, "settings", "", "path to a YAML settings file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fetchdsl [-settings settings.yaml] <script.fdsl>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), settingsPath); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(scriptPath, settingsPath string) error {
	var cfg *config.Config
	if settingsPath != "" {
		loaded, err := config.Load(settingsPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
		cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output = "info", "text", "stdout"
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}

	settings := httpclient.DefaultSettings()
	if settingsPath != "" {
		settings = cfg.Settings()
	}

	opts := []httpclient.ClientOption{httpclient.WithLogger(logger)}
	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer store.Close()
		run, err := store.BeginRun(scriptPath)
		if err != nil {
			return fmt.Errorf("starting history run: %w", err)
		}
		opts = append(opts, httpclient.WithHistorySink(store.Sink(run)))
	}

	client := httpclient.NewClient(settings, opts...)
	defer client.Close(context.Background())

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	interp := interpreter.New(client, bridge.New())
	result, err := interp.Run(context.Background(), string(source), nil, nil)
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}
