package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"httprelay/api"
	"httprelay/config"
	"httprelay/relay"
)

const usage = `Usage: httprelay [flags] UPSTREAM_HOST UPSTREAM_PORT [RELAY_PORT [RELAY_HOST]]

Relays TCP connections from RELAY_HOST:RELAY_PORT (default 0.0.0.0 and
UPSTREAM_PORT) to UPSTREAM_HOST:UPSTREAM_PORT, byte-transparently.
IPv6 hosts may be written bracketed, e.g. [::1].
`

func main() {
	cfg, grace, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	setupLogging(cfg.GlobalLog)

	r, err := relay.New(cfg)
	if err != nil {
		log.Fatalf("RELAY: invalid configuration: %v", err)
	}
	r.Monitor().StartPeriodicLogging()

	if cfg.StatusListenAddr != "" {
		srv := api.NewServer(r, cfg.StatusListenAddr)
		if err := srv.Start(); err != nil {
			log.Fatalf("RELAY: status API failed to start on %s: %v", cfg.StatusListenAddr, err)
		}
		defer srv.Stop()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Printf("RELAY: received %s, shutting down (grace %s)", sig, grace)
		r.Shutdown()
		r.SigkillAfter(grace)
	}()

	if err := r.ListenAndServe(); err != nil && !errors.Is(err, relay.ErrRelayClosed) {
		log.Fatalf("RELAY: %v", err)
	}
	r.Wait()
}

// parseArgs builds the relay configuration from an optional YAML config
// file, positional endpoint arguments and flag overrides.
func parseArgs(args []string) (*config.RelayConfig, time.Duration, error) {
	fs := flag.NewFlagSet("httprelay", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	host := fs.String("host", "", "Host to listen on (overrides RELAY_HOST)")
	threads := fs.Int("threads", 0, "Worker pool size (max concurrent sessions)")
	buffer := fs.Int("buffer", 0, "Transfer buffer size in bytes per copy cycle")
	dialTimeout := fs.Duration("dial-timeout", 0, "Upstream connect timeout")
	bandwidth := fs.Int64("bandwidth", 0, "Bandwidth limit in bytes/sec shared by all sessions (0 = unlimited)")
	statusAddr := fs.String("status", "", "Listen address for the HTTP status API (disabled when empty)")
	grace := fs.Duration("sigkill-after", 10*time.Second, "Force-terminate this long after a shutdown signal")
	if err := fs.Parse(args); err != nil {
		return nil, 0, err
	}

	cfg := &config.RelayConfig{}
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, 0, fmt.Errorf("load config %s: %w", *configPath, err)
		}
		cfg = loaded
	}

	pos := fs.Args()
	if *configPath == "" && len(pos) < 2 {
		return nil, 0, fmt.Errorf("missing UPSTREAM_HOST and UPSTREAM_PORT")
	}
	if len(pos) > 4 {
		return nil, 0, fmt.Errorf("too many positional arguments")
	}
	if len(pos) >= 2 {
		cfg.UpstreamHost = pos[0]
		p, err := strconv.Atoi(pos[1])
		if err != nil {
			return nil, 0, fmt.Errorf("invalid UPSTREAM_PORT %q", pos[1])
		}
		cfg.UpstreamPort = p
		cfg.ListenPort = p
	}
	if len(pos) >= 3 {
		p, err := strconv.Atoi(pos[2])
		if err != nil {
			return nil, 0, fmt.Errorf("invalid RELAY_PORT %q", pos[2])
		}
		cfg.ListenPort = p
	}
	if len(pos) == 4 {
		cfg.ListenHost = pos[3]
	}

	if *host != "" {
		cfg.ListenHost = *host
	}
	if *threads != 0 {
		cfg.NumThreads = *threads
	}
	if *buffer != 0 {
		cfg.BufferSize = config.SizeString(*buffer)
	}
	if *dialTimeout != 0 {
		cfg.DialTimeout = config.DurationString(*dialTimeout)
	}
	if *bandwidth != 0 {
		cfg.BandwidthLimit = config.SizeString(*bandwidth)
	}
	if *statusAddr != "" {
		cfg.StatusListenAddr = *statusAddr
	}

	cfg.SetDefaults()
	return cfg, *grace, nil
}

// setupLogging routes the global logger to a rotated file when one is
// configured; otherwise logs stay on stderr.
func setupLogging(lc *config.GlobalLogConfig) {
	if lc == nil || lc.Filename == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   lc.Filename,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
		Compress:   lc.Compress,
	})
}
