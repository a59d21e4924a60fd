package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"hqm_server/internal/config"
	"hqm_server/internal/match"
	"hqm_server/internal/metrics"
	"hqm_server/internal/rink"
	"hqm_server/internal/transport"
)

func main() {
	optimizeRuntime()

	cfg := config.Load()
	log.Printf("🚀 starting hqm server")
	log.Printf("📊 config: bind=%s:%d tickRate=%dHz rink=%vx%v",
		cfg.Network.BindHost, cfg.Network.BindPort, cfg.Game.TickRate, cfg.Rink.Width, cfg.Rink.Length)

	rnk := rink.New(cfg.Rink.Width, cfg.Rink.Length, cfg.Rink.CornerRadius)
	m := match.New(rnk, cfg.Game.StickHand)
	reg := metrics.New()

	srv := transport.New(cfg, m, reg)
	if err := srv.Listen(); err != nil {
		log.Fatalf("❌ failed to bind udp socket: %v", err)
	}

	go serveMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv.Run(ctx)
	log.Printf("🏒 hqm server shutting down")
}

func serveMetrics(reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	addr := os.Getenv("HQM_METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	log.Printf("📈 metrics listening on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("⚠️  metrics server stopped: %v", err)
	}
}

func optimizeRuntime() {
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}
	if os.Getenv("GOGC") == "" {
		os.Setenv("GOGC", "800")
	}
	log.Printf("⚙️  runtime optimized: GOMAXPROCS=%d, GOGC=%s", runtime.GOMAXPROCS(0), os.Getenv("GOGC"))
}
