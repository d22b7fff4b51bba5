// Package main runs the tabvault multi-session browser shell with
// automated login. Each URL passed on the command line opens in its own
// isolated session; navigations onto the vendor's login pages are picked
// up and driven through the rate-limited login scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tabvault/tabvault/pkg/authflow"
	"github.com/tabvault/tabvault/pkg/browser"
	appconfig "github.com/tabvault/tabvault/pkg/config"
	"github.com/tabvault/tabvault/pkg/credentials"
	"github.com/tabvault/tabvault/pkg/events"
	"github.com/tabvault/tabvault/pkg/formscan"
	"github.com/tabvault/tabvault/pkg/logging"
	"github.com/tabvault/tabvault/pkg/orchestrator"
)

const version = "0.1.0" // Version of the tabvault shell

// authHostMarker recognizes cross-origin auth frames by URL substring.
const authHostMarker = "auth."

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.tabvault/config.yaml)")
		urls        = flag.String("urls", "", "comma-separated URLs to open, one session each")
		headless    = flag.Bool("headless", true, "run browsers without a visible window")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tabvault v%s\n", version)
		return
	}

	if err := run(*configPath, *urls, *headless); err != nil {
		log.Fatalf("tabvault: %v", err)
	}
}

func run(configPath, urlList string, headless bool) error {
	logger, err := logging.NewLogger("main")
	if err != nil {
		// Fallback logger is already in place; just note it.
		logger.Warnf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	if configPath == "" {
		configPath, err = appconfig.DefaultPath()
		if err != nil {
			return err
		}
	}
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Browser.Headless = headless

	manager := browser.NewSessionManager(logger)
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer manager.Shutdown()
	if cfg.Browser.MaxSessions > 0 {
		manager.SetMaxSessions(cfg.Browser.MaxSessions)
	}

	classifier := authflow.NewClassifier(cfg.AuthFlow.VendorRoot, cfg.AuthFlow.EnvironmentNames)
	scanner := formscan.NewScanner(authHostMarker, logger)
	provider := credentials.NewStaticProvider(cfg.Credentials)

	bus := events.NewBus()
	if err := bus.Subscribe(newEventSink(logger)); err != nil {
		return err
	}

	orch := orchestrator.New(
		orchestrator.OptionsFromConfig(cfg),
		classifier,
		scanner,
		provider,
		bus,
		logger,
	)
	defer orch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nshutting down...")
		cancel()
	}()

	for i, rawURL := range splitURLs(urlList) {
		id := fmt.Sprintf("tab-%d", i+1)
		session, err := manager.StartSession(id, browser.SessionOptions{
			Headless: cfg.Browser.Headless,
			Viewport: &browser.Viewport{
				Width:  cfg.Browser.ViewportWidth,
				Height: cfg.Browser.ViewportHeight,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to open session for %s: %w", rawURL, err)
		}
		orch.AddSession(session)
		if err := session.Navigate(ctx, rawURL); err != nil {
			logger.Warnf("initial navigation failed for %s: %v", id, err)
		}
	}

	if !manager.HasSessions() {
		return fmt.Errorf("no sessions opened; pass -urls")
	}

	logger.Infof("tabvault v%s running, logs at %s", version, logger.LogPath())
	<-ctx.Done()
	return nil
}

// newEventSink logs every login event with structured fields.
func newEventSink(logger *logging.Logger) func(events.LoginEvent) {
	zl := logger.Structured()
	return func(event events.LoginEvent) {
		zl.Info().
			Str("event", string(event.Type)).
			Str("session", event.SessionID).
			Str("tenant", event.TenantKey).
			Time("at", event.At).
			Str("detail", event.Detail).
			Msg("login event")
	}
}

func splitURLs(urlList string) []string {
	var out []string
	for _, u := range strings.Split(urlList, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
