//go:build !tinygo

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"ember/app"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/kernel"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// errRunnerDone stops the other goroutines once the headless runner reached its frame limit.
var errRunnerDone = errors.New("runner done")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v, err := loadConfig(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	level, err := zapcore.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return err
	}

	h := hal.New()
	log := hal.NewZapLogger(h.Logger(), level).With(
		zap.String("session", uuid.NewString()),
	)
	defer log.Sync()
	log.Info("boot", zap.String("build", buildinfo.String()))

	sys, err := app.New(h, log, app.Config{
		Kernel: kernel.Config{
			MaxTasks:   v.GetInt("kernel.maxTasks"),
			StackCells: v.GetUint32("kernel.stackCells"),
			CellBytes:  v.GetUint32("kernel.cellBytes"),
		},
		Producers:  v.GetInt("demo.producers"),
		QueueDepth: v.GetInt("demo.queueDepth"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sys.Run(ctx) })
	if addr := v.GetString("metrics.addr"); addr != "" {
		serveMetrics(ctx, g, log, addr, sys)
	}

	if v.GetBool("headless") {
		g.Go(func() error {
			err := hal.RunHeadless(ctx, h, sys.Step, hal.HeadlessConfig{
				Enabled: true,
				Hz:      v.GetInt("hz"),
				Ticks:   v.GetUint64("ticks"),
			})
			if err == nil {
				return errRunnerDone
			}
			return err
		})
		return result(log, g.Wait())
	}

	werr := hal.RunWindow(h, sys.Step)
	stop()
	if err := result(log, g.Wait()); err != nil {
		return err
	}
	return result(log, werr)
}

func serveMetrics(ctx context.Context, g *errgroup.Group, log *zap.Logger, addr string, sys *app.System) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		sys.Collector(),
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}

// result maps the ways a run can end to the process exit error.
func result(log *zap.Logger, err error) error {
	var tr *kernel.Trap
	switch {
	case err == nil,
		errors.Is(err, errRunnerDone),
		errors.Is(err, hal.ErrWindowClosed),
		errors.Is(err, context.Canceled):
		log.Info("shutdown")
		return nil
	case errors.As(err, &tr):
		return fmt.Errorf("halted: %w", tr)
	default:
		return err
	}
}
