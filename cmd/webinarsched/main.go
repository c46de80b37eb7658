package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"webinarsched/internal/config"
	"webinarsched/internal/ics"
	appLog "webinarsched/internal/log"
	"webinarsched/internal/refresh"
	"webinarsched/internal/schedule"
	"webinarsched/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; set values override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	limit      int
	logLevel   string
	importPath string
}

func main() {
	flags := parseFlags()
	if flags.logLevel != "" {
		appLog.SetLevel(appLog.ParseLevel(flags.logLevel))
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override config file values if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.limit > 0 {
		conf.Display.Limit = flags.limit
	}
	if flags.logLevel == "" {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("webinarsched starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"mode", conf.Mode,
		"optin_leway", conf.OptinLeway,
		"refresh", conf.RefreshCron,
		"limit", conf.Display.Limit,
		"schedule_keys", len(conf.Schedule),
		"once", flags.once,
	)

	switch {
	case flags.importPath != "":
		if err := runImport(conf, flags.importPath); err != nil {
			appLog.Error("import failed", err, "path", flags.importPath)
			os.Exit(1)
		}
		return
	case flags.once:
		if err := runOnce(conf); err != nil {
			appLog.Error("failed to resolve schedule", err)
			os.Exit(1)
		}
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := flags.configPath
	listen := conf.Listen
	svc, err := refresh.NewService(conf, func() (*config.Config, error) {
		next, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		// Keep flag overrides across reloads.
		next.Listen = listen
		if flags.limit > 0 {
			next.Display.Limit = flags.limit
		}
		return next, nil
	}, schedule.SystemClock{})
	if err != nil {
		appLog.Error("failed to load schedule", err)
		os.Exit(1)
	}
	if err := svc.Start(); err != nil {
		appLog.Error("failed to start refresh", err)
		os.Exit(1)
	}

	serveErr := web.Run(ctx, listen, web.NewServer(svc))
	if serveErr != nil {
		appLog.Error("HTTP server failed", serveErr)
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	svc.Stop(stopCtx)
	stop()
	appLog.Info("webinarsched exiting")
	if serveErr != nil {
		os.Exit(1)
	}
}

// runOnce prints the next dates as JSON.
func runOnce(conf *config.Config) error {
	s, err := conf.NewSchedule(schedule.SystemClock{})
	if err != nil {
		return err
	}
	if err := s.SetSchedule(conf.Schedule); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		IsOver bool `json:"is_over"`
		Dates  any  `json:"dates"`
	}{
		IsOver: s.IsOver(),
		Dates:  s.NextDates(conf.Query()),
	})
}

// runImport converts an .ics file into a standard-mode schedule block.
func runImport(conf *config.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	loc, warn := schedule.ResolveLocation(conf.Timezone)
	if warn != nil {
		appLog.Warn("config value replaced by default", "err", warn)
	}
	tpl, err := ics.Import(f, ics.ImportOptions{
		Location: loc,
		From:     time.Now(),
	})
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(struct {
		Mode     string            `yaml:"mode"`
		Schedule schedule.Template `yaml:"schedule"`
	}{Mode: "standard", Schedule: tpl})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, string(out))
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/webinarsched/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print the next dates as JSON and exit")
	flag.IntVar(&cfg.limit, "limit", 0, "Number of dates to show (overrides config if > 0)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config if set)")
	flag.StringVar(&cfg.importPath, "import", "", "Convert an .ics file into a standard-mode schedule and exit")

	flag.Parse()

	return cfg
}
