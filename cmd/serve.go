package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/supportdesk/host/internal/auth"
	"github.com/supportdesk/host/internal/config"
	"github.com/supportdesk/host/internal/console"
	"github.com/supportdesk/host/internal/mdns"
	"github.com/supportdesk/host/internal/server"
	"github.com/supportdesk/host/internal/session"
	"github.com/supportdesk/host/internal/storage"
)

// ServeFlags holds the command-line values of "serve".
type ServeFlags struct {
	Config  string
	Addr    string
	Store   string
	LogFile string
	Mdns    bool
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	flags := &ServeFlags{}
	fs.StringVar(&flags.Config, "config", "", "Path to config file (default: ~/.supportdesk/config.toml)")
	fs.StringVar(&flags.Addr, "addr", "", "Listen address (default: "+config.DefaultAddr+")")
	fs.StringVar(&flags.Store, "store", "", "Path to SQLite store (default: ~/.supportdesk/supportdesk.db)")
	fs.StringVar(&flags.LogFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&flags.Mdns, "mdns", false, "Advertise the host on the LAN via mDNS")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: supportdesk serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	base, err := loadConfig(flags.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg := mergeServeFlags(base, flags, explicitFlags).WithDefaults()

	if cfg.LogFile != "" {
		logFile, err := openLogFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	h, err := startHost(cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	<-ctx.Done()

	fmt.Fprintln(stdout, "\nShutting down...")
	h.Stop()
	return 0
}

// mergeServeFlags applies explicitly set flags over cfg. Flags win over the
// environment, which already won over the file.
func mergeServeFlags(cfg config.Config, flags *ServeFlags, explicit map[string]bool) config.Config {
	if flags.Addr != "" {
		cfg.Addr = flags.Addr
	}
	if flags.Store != "" {
		cfg.Store = flags.Store
	}
	if flags.LogFile != "" {
		cfg.LogFile = flags.LogFile
	}
	// Booleans only override when given, so --mdns=false beats a file's true.
	if explicit["mdns"] {
		cfg.MdnsEnabled = flags.Mdns
	}
	return cfg
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// host is a running support desk: store, router, event hub, server and
// optional mDNS advertiser.
type host struct {
	store      *storage.SQLiteStore
	hub        *session.Hub
	router     *session.Router
	server     *server.Server
	advertiser *mdns.Advertiser
}

// startHost wires every component from cfg and starts listening. cfg must
// already have defaults applied.
func startHost(cfg config.Config, stdout, stderr io.Writer) (*host, error) {
	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.AuthRatePerSec), cfg.AuthBurst)
	validator := auth.NewValidator(store, limiter)

	hub := session.NewHub(0)
	router := session.NewRouter(session.NewRegistry(), session.NewInboxes(), store, hub, cfg.OperatorName)
	api := console.NewAPI(router, hub)

	srv := server.NewServer(server.Options{
		Addr:         cfg.Addr,
		Router:       router,
		Log:          store,
		Validator:    validator,
		PingInterval: cfg.PingInterval(),
		FrameRate:    cfg.FrameRatePerSec,
		FrameBurst:   cfg.FrameBurst,
		Console:      console.New(api),
		Version:      Version,
	})

	if err := <-srv.StartAsync(); err != nil {
		hub.Close()
		store.Close()
		return nil, err
	}

	h := &host{store: store, hub: hub, router: router, server: srv}
	fmt.Fprintf(stdout, "supportdesk %s listening on %s\n", Version, srv.Addr())
	fmt.Fprintf(stdout, "Clients connect to ws://%s/ws; operator console at http://%s/api/\n", srv.Addr(), srv.Addr())

	if cfg.MdnsEnabled && isLoopbackAddr(srv.Addr()) {
		fmt.Fprintf(stderr, "Warning: mDNS discovery skipped: %s is only reachable from this machine; set --addr to a LAN address\n", srv.Addr())
	} else if cfg.MdnsEnabled {
		h.advertiser = mdns.NewAdvertiser(mdns.Config{
			Port:     listenPort(srv.Addr()),
			Operator: cfg.OperatorName,
		})
		if err := h.advertiser.Start(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to start mDNS discovery: %v\n", err)
			h.advertiser = nil
		} else {
			fmt.Fprintln(stdout, "mDNS discovery: ENABLED (visible on LAN)")
		}
	}

	return h, nil
}

// Stop shuts components down in reverse order of creation.
func (h *host) Stop() {
	if h.advertiser != nil {
		h.advertiser.Stop()
	}
	if err := h.server.Stop(); err != nil {
		log.Printf("serve: server stop: %v", err)
	}
	h.router.Registry().CloseAll()
	h.hub.Close()
	if err := h.store.Close(); err != nil {
		log.Printf("serve: store close: %v", err)
	}
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// isLoopbackAddr reports whether a listen address only accepts local
// connections. An empty or unspecified host listens on every interface.
func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
