package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evdialog/internal/agenda"
	"evdialog/internal/capture"
	"evdialog/internal/config"
	"evdialog/internal/dialog"
	"evdialog/internal/ics"
	appLog "evdialog/internal/log"
	"evdialog/internal/metrics"
	"evdialog/internal/remote"
	"evdialog/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath  string
	listen      string
	debug       bool
	writeConfig bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetFormat(conf.LogFormat)
	appLog.SetLevel(appLog.Level(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("evdialog starting", "version", version)

	if flags.writeConfig {
		if err := config.Save(flags.configPath, conf); err != nil {
			appLog.Error("failed to write config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Info("config written", "config_path", flags.configPath)
		return
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"date_layout", conf.DateLayout,
		"remote", conf.Remote.Endpoint,
		"agenda_refresh", conf.Agenda.Refresh,
		"horizon_days", conf.Agenda.HorizonDays,
		"basic_auth", conf.BasicAuth != nil,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := remote.NewGraphQLClient(conf.Remote.Endpoint, conf.Remote.Token, conf.Remote.Timeout())
	rec := metrics.New()

	events := agenda.New(client, agenda.Options{
		Location:     conf.Location(),
		HorizonDays:  conf.Agenda.HorizonDays,
		BackfillDays: conf.Agenda.BackfillDays,
		Metrics:      rec,
	})
	events.RefreshAsync()
	if err := events.Start(conf.Agenda.Refresh); err != nil {
		appLog.Error("failed to schedule agenda refresh", err, "spec", conf.Agenda.Refresh)
		os.Exit(1)
	}

	dialogs := dialog.NewStore(client)

	srv := web.NewServer(conf, web.Deps{
		Dialogs: dialogs,
		Agenda:  events,
		Previews: capture.NewPreviewer(
			conf.Preview.CacheDir,
			conf.Preview.Width,
			conf.Preview.Height,
			time.Duration(conf.Preview.TimeoutSeconds)*time.Second,
		),
		Fetcher: ics.NewFetcher(conf.Import.CacheDir, conf.Remote.Timeout()),
		Metrics: rec,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
	}

	dialogs.CloseAll()
	events.Stop()
	appLog.Info("evdialog exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evdialog/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&cfg.writeConfig, "write-config", false, "Write the normalized config back to -config and exit")

	flag.Parse()

	return cfg
}
