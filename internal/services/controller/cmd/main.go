package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/services/controller"
	"github.com/LeonardoBeccarini/growbox/internal/services/device"
	"github.com/LeonardoBeccarini/growbox/internal/services/health"
	"github.com/LeonardoBeccarini/growbox/internal/services/remote"
	"github.com/LeonardoBeccarini/growbox/pkg/broker"
)

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
		log.Printf("invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envList(key string, def []string) []string {
	v := env(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// remoteTransport is implemented by remote.WebSocket and remote.MQTT.
type remoteTransport interface {
	controller.Sender
	health.Link
	Run(ctx context.Context) error
}

func loadConfig() config.Config {
	cfg := config.Default()
	if path := env("GROWBOX_CONFIG", ""); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg = loaded
	}

	// usage: controller [host [port]]
	flag.Parse()
	if host := flag.Arg(0); host != "" {
		cfg.Socket.Host = host
	}
	if p := flag.Arg(1); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			log.Fatalf("invalid port %q: %v", p, err)
		}
		cfg.Socket.Port = port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func main() {
	if err := loadDotEnv(env("GROWBOX_ENV_FILE", ".env")); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg := loadConfig()
	m := metrics.New()

	portName := env("SERIAL_PORT", "")
	if portName == "" {
		name, err := device.Discover(log.Default(), envList("SERIAL_VENDORS", device.DefaultVendors))
		if err != nil {
			log.Fatalf("%v", err)
		}
		portName = name
	}

	var runner *controller.Runner

	serialPort := device.NewSerial(device.Config{
		Port:     portName,
		BaudRate: envInt("SERIAL_BAUD", device.DefaultBaudRate),
	}, device.Options{
		Metrics:   m,
		OnOpen:    func() { runner.DeviceOpened() },
		OnMessage: func(line string) { runner.DeviceMessage(line) },
	})

	remoteOpts := remote.Options{
		Metrics:   m,
		OnOpen:    func() { runner.RemoteOpened() },
		OnMessage: func(msg string) { runner.RemoteMessage(msg) },
	}
	var peer remoteTransport
	switch mode := env("REMOTE_TRANSPORT", "ws"); mode {
	case "ws":
		peer = remote.NewWebSocket(remote.WebSocketConfig{URL: cfg.Endpoint()}, remoteOpts)
		log.Printf("remote: websocket %s", cfg.Endpoint())
	case "mqtt":
		peer = remote.NewMQTT(remote.MQTTConfig{
			Broker: broker.Config{
				Host:     env("RABBITMQ_HOST", "localhost"),
				Port:     envInt("RABBITMQ_PORT", 1883),
				User:     env("RABBITMQ_USER", "guest"),
				Password: env("RABBITMQ_PASSWORD", "guest"),
			},
			TopicPrefix: env("MQTT_TOPIC_PREFIX", remote.DefaultTopicPrefix),
		}, remoteOpts)
	default:
		log.Fatalf("unknown REMOTE_TRANSPORT %q (want ws or mqtt)", mode)
	}

	engine := controller.New(cfg, serialPort, peer, controller.Options{
		CoarseInterval: time.Duration(envInt("COARSE_TICK_MS", 100)) * time.Millisecond,
		FastInterval:   time.Duration(envInt("FAST_TICK_MS", 10)) * time.Millisecond,
		Metrics:        m,
	})
	runner = controller.NewRunner(engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := health.Checker{Device: serialPort, Remote: peer}
	mux := http.NewServeMux()
	mux.Handle("/healthz", health.NewHealthHandler(checker))
	mux.Handle("/readyz", health.NewReadyHandler(checker))
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              ":" + env("HTTP_PORT", "8081"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				log.Printf("%s: %v", name, err)
				cancel()
			}
		}()
	}

	start("controller", runner.Run)
	start("serial", serialPort.Run)
	start("remote", peer.Run)
	if grpcPort := env("GRPC_HEALTH_PORT", ""); grpcPort != "" {
		start("health", func(ctx context.Context) error {
			return health.ServeGRPC(ctx, ":"+grpcPort, checker, time.Second)
		})
	}

	go func() {
		log.Printf("http: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http: %v", err)
			cancel()
		}
	}()

	// ---- graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	log.Println("shutting down...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}
