// caqtidemo exercises the pool engine end to end with a toy in-memory
// resource factory: it stands in for what a real driver package (sqlite,
// postgres, ...) would provide, and exposes the pool's metrics over
// /metrics so the stack in this repo — config, pool, metrics — has a
// runnable home instead of only living in tests.
//
// Usage:
//
//	caqtidemo [flags]
//
// Flags:
//
//	-config string
//	    Path to a pool config TOML file (default "./caqtipool.toml")
//	-listen string
//	    Address to serve /metrics on (default "127.0.0.1:9191")
//	-v
//	    Enable verbose logging
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chizy7/ocaml-caqti/config"
	"github.com/chizy7/ocaml-caqti/metrics"
	"github.com/chizy7/ocaml-caqti/pool"
)

func main() {
	os.Exit(run())
}

// toyConn is the "resource" this demo pools: a sequence number and a
// closed flag, standing in for a live database connection.
type toyConn struct {
	id     int64
	closed bool
}

var connCounter atomic.Int64

func run() int {
	configPath := flag.String("config", "./caqtipool.toml", "Path to a pool config TOML file")
	listen := flag.String("listen", "127.0.0.1:9191", "Address to serve /metrics on")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	file, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Error("failed to load pool config")
		return 1
	}

	p, err := pool.New[*toyConn](
		func(ctx context.Context, _ any) (*toyConn, error) {
			return &toyConn{id: connCounter.Add(1)}, nil
		},
		func(c *toyConn) { c.closed = true },
		pool.Config[*toyConn]{
			MaxSize:     config.IntPtr(file.MaxSize),
			MaxIdleSize: config.IntPtr(file.MaxIdleSize),
			MaxUseCount: useCountPtr(file.MaxUseCount),
			MaxIdleAge:  idleAgePtr(file.MaxIdleAge),
			Name:        "caqtidemo",
		},
	)
	if err != nil {
		logrus.WithError(err).Error("failed to construct pool")
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: *listen, Handler: mux}

	go func() {
		metrics.Observe(metrics.Stats{})
		for range time.Tick(2 * time.Second) {
			s := p.Stats()
			metrics.Observe(metrics.Stats{Size: s.Size, Idle: s.Idle, Waiting: s.Waiting})
		}
	}()

	go func() {
		logrus.WithField("addr", *listen).Info("serving /metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()

	go func() {
		for i := 0; i < 5; i++ {
			i := i
			go func() {
				_, _ = pool.Use(context.Background(), p, 0.0, func(c *toyConn) (any, error) {
					logrus.WithField("conn", c.id).WithField("worker", i).Debug("using connection")
					time.Sleep(50 * time.Millisecond)
					return nil, nil
				})
			}()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("pool drain did not converge before shutdown timeout")
	}
	_ = srv.Shutdown(shutdownCtx)

	return 0
}

func idleAgePtr(d time.Duration) *time.Duration {
	if d <= 0 {
		return nil
	}
	return config.DurationPtr(d)
}

func useCountPtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return config.IntPtr(n)
}
