// Command wslogd runs the broker: it accepts producer and consumer
// links, persists and re-broadcasts events per the configured routes,
// and exposes /status, /healthz, and /metrics. Signal handling and the
// --config/--create-config surface are grounded on
// examples/httpserver/main.go's signal.Notify/ShutdownListener pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/martinbechard/wslog/internal/broker"
	"github.com/martinbechard/wslog/internal/brokerhttp"
	"github.com/martinbechard/wslog/pkg/logger"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to a broker config file (JSON or YAML)")
		port         = flag.Int("port", 0, "override the configured HTTP port")
		createConfig = flag.String("create-config", "", "write a default config file to the given path and exit")
	)
	flag.Parse()

	if *createConfig != "" {
		if err := writeDefaultConfig(*createConfig); err != nil {
			log.Fatalf("wslogd: %v", err)
		}
		fmt.Printf("wrote default config to %s\n", *createConfig)
		return
	}

	cfg := broker.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("wslogd: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("wslogd: %v", err)
	}

	zapLogger := logger.NewLogger()
	b := broker.New(cfg, zapLogger, prometheus.DefaultRegisterer)
	if err := b.StartHeartbeat(); err != nil {
		log.Fatalf("wslogd: failed to start heartbeat: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := brokerhttp.New(addr, b, zapLogger)
	shutdown := httpServer.Run()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-interrupt

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		log.Printf("wslogd: error shutting down http server: %v", err)
	}
	if err := b.Shutdown(ctx); err != nil {
		log.Printf("wslogd: error shutting down broker: %v", err)
	}
}
