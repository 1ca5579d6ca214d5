package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmscal/internal/calendar"
	"cmscal/internal/capture"
	"cmscal/internal/config"
	appLog "cmscal/internal/log"
	"cmscal/internal/model"
	"cmscal/internal/printdoc"
	"cmscal/internal/refresh"
	"cmscal/internal/web"
	"cmscal/internal/wordpress"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	out        string
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("cmscal starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	mode := calendar.ParseSortMode(conf.SortMode)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"sort_mode", string(mode),
		"headless_print", conf.Print.Headless,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := calendar.NewShared(calendar.NewView(conf.Location(), mode))
	runner := refresh.NewRunner(wordpress.NewClient(conf.Source), state)

	if flags.once {
		if err := runOnce(ctx, conf, runner, state, flags.out, time.Now()); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, runner, state); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("cmscal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/cmscal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, write the print document and exit")
	flag.StringVar(&cfg.out, "out", "", "Output path for -once (default stdout)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Parse()

	return cfg
}

// runOnce loads both lists, builds the print document from the full
// visible list and writes it to out ("" means stdout).
func runOnce(ctx context.Context, conf *config.Config, r *refresh.Runner, state *calendar.Shared, out string, now time.Time) error {
	r.Refresh(ctx)

	var (
		visible []model.Event
		status  calendar.Status
		loadErr error
	)
	state.Read(func(v *calendar.View) {
		visible = v.Visible()
		status = v.Status()
		loadErr = v.Err()
	})
	if status != calendar.StatusReady {
		if loadErr == nil {
			loadErr = errors.New("lists not loaded")
		}
		return fmt.Errorf("load: %w", loadErr)
	}

	doc, err := printdoc.Build(visible, now.In(conf.Location()), printdoc.Options{
		Title:      conf.Print.Title,
		Heading:    conf.Print.Heading,
		CloseDelay: conf.CloseDelay(),
	})
	if err != nil {
		return err
	}

	if out == "" {
		return writeDoc(os.Stdout, doc)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := writeDoc(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	appLog.Info("print document written", "path", out, "bytes", len(doc))
	return f.Close()
}

func writeDoc(w io.Writer, doc []byte) error {
	_, err := w.Write(doc)
	return err
}

// serve loads the lists in the background, schedules refreshes and runs
// the HTTP server until ctx is cancelled.
func serve(ctx context.Context, conf *config.Config, r *refresh.Runner, state *calendar.Shared) error {
	go r.Refresh(ctx)

	if conf.RefreshCron != "" {
		if err := r.Schedule(ctx, conf.RefreshCron, conf.Location()); err != nil {
			return err
		}
	}

	var opts []web.Option
	if conf.Print.Headless {
		provider := capture.NewChromeProvider(ctx, capture.Options{OutputDir: conf.Print.OutputDir})
		defer provider.Close()
		opts = append(opts, web.WithPrinter(provider))
	}

	srv := web.NewServer(conf, state, r, opts...)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
