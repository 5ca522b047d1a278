// Command openchamber runs the web front end for an assistant backend: it
// follows the backend's event stream, maintains the session store, and serves
// rendered transcripts plus a live event relay to the browser.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/btriapitsyn/openchamber-sub004/pkg/clipboard"
	"github.com/btriapitsyn/openchamber-sub004/pkg/config"
	"github.com/btriapitsyn/openchamber-sub004/pkg/eventstream"
	"github.com/btriapitsyn/openchamber-sub004/pkg/freshness"
	"github.com/btriapitsyn/openchamber-sub004/pkg/logging"
	"github.com/btriapitsyn/openchamber-sub004/pkg/metadata"
	"github.com/btriapitsyn/openchamber-sub004/pkg/notify"
	"github.com/btriapitsyn/openchamber-sub004/pkg/server"
	"github.com/btriapitsyn/openchamber-sub004/pkg/store"
	"github.com/btriapitsyn/openchamber-sub004/pkg/theme"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  string
		addr        string
		backendURL  string
		backendDir  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config)")
	flag.StringVar(&backendURL, "backend", "", "backend base URL (overrides config)")
	flag.StringVar(&backendDir, "dir", "", "workspace directory to follow (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("openchamber %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(configPath, addr, backendURL, backendDir); err != nil {
		fmt.Fprintf(os.Stderr, "openchamber: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, backendURL, backendDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Address = addr
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	if backendDir != "" {
		cfg.Backend.Directory = backendDir
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New()
	fresh := freshness.NewService()
	resolver := metadata.NewResolver(st)

	// New sessions observed after startup animate; everything already in the
	// store on arrival renders instantly.
	go recordSessionStarts(ctx, st, fresh)

	var push *notify.WebPushAdapter
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		push, err = notify.NewWebPushAdapter(notify.WebPushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		}, logger)
		if err != nil {
			return fmt.Errorf("initializing push: %w", err)
		}
	}

	var notifier notify.Adapter
	if push != nil {
		notifier = push
	}
	stream, err := eventstream.New(eventstream.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Directory: cfg.Backend.Directory,
		Store:     st,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	clip := clipboard.New(logger)
	defer clip.Stop()

	srv, err := server.New(server.Config{
		Address:          cfg.Server.Address,
		Store:            st,
		Resolver:         resolver,
		Logger:           logger,
		Push:             push,
		Clipboard:        clip,
		Freshness:        fresh,
		IncludeReasoning: cfg.UI.IncludeReasoning,
	})
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Start(ctx)
	})
	group.Go(func() error {
		err := stream.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	if cfg.UI.ThemePath != "" {
		if t, err := theme.Load(cfg.UI.ThemePath); err == nil {
			srv.SetTheme(t)
		}
		watcher, err := theme.NewWatcher(cfg.UI.ThemePath, 200*time.Millisecond, func(t *theme.Theme) {
			srv.SetTheme(t)
			_ = logger.Info(logging.CategoryTheme, "theme_reloaded", cfg.UI.ThemePath, nil)
		})
		if err != nil {
			_ = logger.Warn(logging.CategoryTheme, "theme_watch_failed", err.Error(), nil)
		} else {
			defer watcher.Close()
			group.Go(func() error {
				watcher.Watch(ctx)
				return nil
			})
		}
	}

	_ = logger.Info(logging.CategoryServer, "started", "", map[string]any{
		"address": cfg.Server.Address,
		"backend": cfg.Backend.BaseURL,
		"version": version,
	})

	err = group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// recordSessionStarts stamps each session the first time one of its messages
// reaches the store, anchoring the freshness cutoff for animation decisions.
func recordSessionStarts(ctx context.Context, st *store.Store, fresh *freshness.Service) {
	events, unsub := st.Hub().Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.SessionID != "" {
				fresh.RecordSessionStart(ev.SessionID)
			}
		}
	}
}
