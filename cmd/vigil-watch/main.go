// Package main is a terminal presence watcher: it consumes the online-users
// API the way the admin console does and renders the live view as a table.
// SIGUSR1 backgrounds the watcher and SIGUSR2 foregrounds it, driving the
// same visibility gating the console applies to its socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/platform/config"
	"vigil/internal/platform/logger"
	"vigil/internal/presence/conn"
	"vigil/internal/presence/device"
	"vigil/internal/presence/gateway"
	pmetrics "vigil/internal/presence/metrics"
	"vigil/internal/presence/models"
	"vigil/internal/presence/service"
	"vigil/internal/presence/store"
	"vigil/internal/presence/visibility"
	"vigil/pkg/platform/privacy"
)

func main() {
	cfg := config.ClientFromEnv()

	apiBase := flag.String("api", cfg.BaseURL, "Presence API base URL")
	tokenFlag := flag.String("token", cfg.Token, "Bearer token (mint one with tokengen)")
	push := flag.Bool("push", cfg.PushEnabled, "Use the live socket; false polls over REST")
	interval := flag.Duration("interval", 2*time.Second, "Screen refresh interval")
	tenant := flag.String("tenant", "", "Only show users for this tenant id")
	showIPs := flag.Bool("show-ips", false, "Render full IP addresses instead of anonymized ones")
	metricsAddr := flag.String("metrics-addr", "", "Serve client metrics on this address (disabled when empty)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.NewAt(os.Stderr, level)

	cfg.BaseURL = *apiBase
	cfg.Token = *tokenFlag
	cfg.PushEnabled = *push

	if cfg.Token == "" {
		fmt.Fprintln(os.Stderr, "vigil-watch: a bearer token is required (-token or VIGIL_TOKEN)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mx := pmetrics.New()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	st := store.New(store.WithLogger(log), store.WithMetrics(mx))

	gw, err := gateway.New(cfg,
		gateway.WithLogger(log),
		gateway.WithEffects(st),
		gateway.WithMetrics(mx),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigil-watch: %v\n", err)
		os.Exit(1)
	}

	vis := visibility.NewSwitch(true)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithSessionExpiredHook(func() {
			fmt.Fprintln(os.Stderr, "vigil-watch: session expired, mint a fresh token with tokengen")
			stop()
		}),
	}

	if cfg.PushEnabled {
		dialer := &conn.WSDialer{Header: http.Header{"Authorization": {"Bearer " + cfg.Token}}}
		manager, err := conn.New(cfg.BaseURL, dialer,
			conn.WithLogger(log),
			conn.WithVisibilityGate(vis),
			conn.WithKeepAliveInterval(cfg.KeepAliveInterval),
			conn.WithReconnectDelay(cfg.ReconnectDelay),
			conn.WithMetrics(mx),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vigil-watch: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, service.WithConnection(manager))
	}

	svc, err := service.New(st, gw, cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigil-watch: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil-watch: %v\n", err)
		os.Exit(1)
	}

	if *tenant != "" {
		if err := svc.SetFilter(ctx, models.Filter{TenantID: *tenant}); err != nil {
			log.Warn("initial filter failed", "error", err)
		}
	}

	// While backgrounded an open socket stays up, but a drop will not
	// reconnect until the watcher is foregrounded again.
	visSig := make(chan os.Signal, 1)
	signal.Notify(visSig, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range visSig {
			vis.Set(sig == syscall.SIGUSR2)
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	render(svc, vis, *showIPs)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case <-ticker.C:
			render(svc, vis, *showIPs)
		case <-svc.Watch():
			render(svc, vis, *showIPs)
		}
	}
}

func render(svc *service.Service, vis *visibility.Switch, showIPs bool) {
	snap := svc.Snapshot()

	// ANSI home+clear keeps the table in place like a tiny top(1).
	fmt.Print("\033[H\033[2J")

	state := svc.ConnectionState().String()
	if !vis.Active() {
		state += " (backgrounded)"
	}
	mode := "push"
	if !svc.PushEnabled() {
		mode = "polling"
	}

	fmt.Printf("vigil-watch  %s  mode=%s  online=%d  peak=%d  avg_session=%.0fm\n",
		state, mode, snap.Stats.TotalOnline, snap.Stats.PeakOnlineToday, snap.Stats.AverageSessionMinutes)
	if banner := svc.CurrentError(); banner != "" {
		fmt.Printf("error: %s\n", banner)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tTENANT\tDEVICE\tIP\tLAST ACTIVITY\tSESSION")
	for _, u := range snap.Users {
		if !u.IsOnline {
			continue
		}
		ip := privacy.AnonymizeIP(u.IPAddress)
		if showIPs {
			ip = u.IPAddress
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.0fm\n",
			u.UserID,
			u.FullName,
			u.TenantName,
			device.ParseUserAgent(u.UserAgent),
			ip,
			formatAgo(u.LastActivity),
			u.SessionDurationMinutes,
		)
	}
	w.Flush() //nolint:errcheck // terminal output
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}
