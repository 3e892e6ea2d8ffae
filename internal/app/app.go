// Package app wires the orchestrator together: catalog, store, event bus,
// session manager, transaction processor, display, hub, and HTTP surface.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scanquest/orchestrator/internal/auth"
	"github.com/scanquest/orchestrator/internal/catalog"
	"github.com/scanquest/orchestrator/internal/devices"
	"github.com/scanquest/orchestrator/internal/display"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/handlers"
	"github.com/scanquest/orchestrator/internal/hub"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/session"
	"github.com/scanquest/orchestrator/internal/store"
	"github.com/scanquest/orchestrator/internal/transactions"
	"github.com/scanquest/orchestrator/pkg/videoplayer"
)

// Config carries the startup options
type Config struct {
	DBPath        string
	TokensPath    string
	BaseURL       string
	VideoTimeout  time.Duration
	WatchdogEvery time.Duration
}

// App holds all application dependencies
type App struct {
	log            logger.Logger
	handlers       *handlers.Handlers
	store          *store.SQLiteStore
	bus            *events.Bus
	cancelWatchdog context.CancelFunc
}

// New creates and initializes an application instance
func New(log logger.Logger, cfg Config, player videoplayer.Client, adminAuth *auth.Auth) (*App, error) {
	tokens, err := catalog.LoadFile(cfg.TokensPath)
	if err != nil {
		return nil, fmt.Errorf("load token catalog: %w", err)
	}
	cat := catalog.New(tokens)
	log.Info("Token catalog loaded", "tokens", cat.Len())

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	bus := events.NewBus()

	sessions := session.New(log, st, bus)
	if err := sessions.Restore(context.Background()); err != nil {
		log.Warn("Session restore failed, starting fresh", "error", err)
	}

	registry := devices.New(log, bus)
	processor := transactions.New(log, cat, sessions, bus)
	disp := display.New(log, cat, player, bus)

	h := hub.New(log, bus, registry, sessions, disp)
	h.Start()

	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 5 * time.Minute
	}
	if cfg.WatchdogEvery <= 0 {
		cfg.WatchdogEvery = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Watchdog(ctx, cfg.WatchdogEvery, cfg.VideoTimeout)

	hs := handlers.New(sessions, processor, disp, registry, cat, h, adminAuth, log, cfg.BaseURL)

	return &App{
		log:            log,
		handlers:       hs,
		store:          st,
		bus:            bus,
		cancelWatchdog: cancel,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancelWatchdog != nil {
		a.cancelWatchdog()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// Run starts the HTTP server
func (a *App) Run(addr string) error {
	if a.handlers.BaseURL == "" {
		a.handlers.BaseURL = fmt.Sprintf("http://%s%s", PreferredIP(), addr)
	}
	a.log.Info("Orchestrator starting", "url", a.handlers.BaseURL)
	return http.ListenAndServe(addr, a.Router())
}

// PreferredIP returns the best address for stations on the venue LAN,
// preferring private IPv4 ranges and falling back to localhost
func PreferredIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		s := ip.String()
		if strings.HasPrefix(s, "192.168.") || strings.HasPrefix(s, "10.") || ip.IsPrivate() {
			return s
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
