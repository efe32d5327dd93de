package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"schedula/reservations/internal/config"
	"schedula/reservations/internal/events"
	"schedula/reservations/internal/expiry"
	"schedula/reservations/internal/metrics"
	"schedula/reservations/internal/service/scheduling"
	"schedula/reservations/internal/store/sqlstore"
	"schedula/reservations/internal/transport/admin"
	grpcTransport "schedula/reservations/internal/transport/grpc"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "schedula-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "schedula-server"),
	)
	slog.SetDefault(log)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("admin_addr", cfg.AdminAddr),
		slog.String("time_zone", cfg.TimeZone.String()),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("opening database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := sqlstore.Open(cfg.DatabaseURL, sqlstore.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sqlstore.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if err := sqlstore.CreateSchema(ctx, db); err != nil {
		return err
	}
	st := sqlstore.New(db)

	if cfg.DatabaseSeed {
		seeded, err := sqlstore.Seed(ctx, st, time.Now().In(cfg.TimeZone))
		if err != nil {
			return err
		}
		if seeded {
			log.Info("seeded empty database")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := events.NewBus(log)
	defer bus.Close()

	sched := expiry.NewScheduler(expiry.SystemClock(), log)
	defer sched.Stop()

	svc := scheduling.NewService(st, bus, sched, scheduling.Options{
		LeadTime:          cfg.LeadTime,
		PendingTTL:        cfg.PendingTTL,
		ReservationLength: cfg.DefaultReservationLength,
		Location:          cfg.TimeZone,
		Metrics:           metrics.New(reg),
		Logger:            log,
	})

	// Pending reservations left over from a previous run get their timers
	// back, or expire now if they are already overdue.
	if n, err := svc.SweepExpired(ctx); err != nil {
		log.Warn("startup expiry sweep failed", slog.Any("err", err))
	} else if n > 0 {
		log.Info("expired stale reservations", slog.Int("count", n))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.DefaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.RequestLogInterceptor(log),
		),
	)
	grpcTransport.RegisterSchedulingServiceServer(grpcServer, grpcTransport.NewSchedulingServer(svc, bus, grpcTransport.ServerOptions{
		ResyncInterval: cfg.ResyncInterval,
	}, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	adminServer := admin.NewRouter(st, reg, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("admin server started", slog.String("admin_addr", cfg.AdminAddr))
		if err := adminServer.Start(cfg.AdminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return svc.RunExpirySweeper(gctx, cfg.SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info("shutdown signal received")
		}
		shutdown(log, grpcServer, adminServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

func shutdown(log *slog.Logger, s *grpc.Server, e *echo.Echo, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warn("admin server shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	if !sqlstore.IsPostgres(databaseURL) {
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		return []any{
			slog.String("db_driver", "sqlite"),
			slog.String("db_path", path),
		}
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", "postgres"),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
