package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Arielutooo/restaurant-app/internal/adapter/crm"
	"github.com/Arielutooo/restaurant-app/internal/adapter/db"
	"github.com/Arielutooo/restaurant-app/internal/adapter/memory"
	"github.com/Arielutooo/restaurant-app/internal/adapter/notify"
	"github.com/Arielutooo/restaurant-app/internal/adapter/payment"
	"github.com/Arielutooo/restaurant-app/internal/config"
	"github.com/Arielutooo/restaurant-app/internal/database"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/messaging"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/notification"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
	"github.com/Arielutooo/restaurant-app/internal/services/staff"
	"github.com/Arielutooo/restaurant-app/internal/services/tracking"
)

// storage is what the order service needs from a backend
type storage interface {
	order.Store
	tracking.Reader
	staff.Directory
}

type crmSink interface {
	order.CRMSink
	io.Closer
}

func main() {
	var (
		mode          = flag.String("mode", "", "Service mode (order-service, notification-subscriber, staff-register, migrate)")
		configPath    = flag.String("config", "config.yaml", "Path to the configuration file")
		port          = flag.Int("port", 0, "HTTP port, overrides server.port")
		migrationsDir = flag.String("migrations", "migrations", "Directory holding SQL migrations")
		source        = flag.String("source", "rabbitmq", "Notification source for the subscriber (rabbitmq, redis)")
		queue         = flag.String("queue", messaging.NotificationsQueue, "RabbitMQ queue to consume")
		pattern       = flag.String("pattern", "*", "Redis channel pattern to subscribe to")
		prefetch      = flag.Int("prefetch", 10, "RabbitMQ prefetch count")
		staffName     = flag.String("name", "", "Staff member name (staff-register)")
		staffRole     = flag.String("role", string(models.RoleWaiter), "Staff role (staff-register)")
		staffPIN      = flag.String("pin", "", "Staff PIN (staff-register)")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logger.NewWithLevel(*mode, cfg.Log.Level, os.Stdout)
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, log, *migrationsDir)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *source, *queue, *pattern, *prefetch)
	case "staff-register":
		err = runStaffRegister(ctx, cfg, log, *staffName, models.Role(*staffRole), *staffPIN)
	case "migrate":
		err = runMigrate(ctx, cfg, log, *migrationsDir)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runOrderService runs the HTTP API over the lifecycle engine
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, migrationsDir string) error {
	requestID := logger.GenerateRequestID()

	store, closeStore, err := openStorage(ctx, cfg, log, migrationsDir)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		dispatchers notify.Fanout
		checks      = map[string]order.HealthCheck{}
	)

	if cfg.HasDriver("rabbitmq") {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

		dispatchers = append(dispatchers, messaging.NewPublisher(conn, log))
		checks["rabbitmq"] = func(context.Context) error { return conn.Ping() }
	}

	if cfg.HasDriver("redis") {
		client, err := notify.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		rdb := notify.NewRedis(client, log)
		defer rdb.Close()
		log.Info("redis_connected", "Connected to Redis", requestID, map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})

		dispatchers = append(dispatchers, rdb)
		checks["redis"] = rdb.Ping
	}

	var sink crmSink = crm.Noop{}
	if cfg.Kafka.Enabled {
		sink = crm.NewKafka(cfg.Kafka, log)
		log.Info("kafka_configured", "CRM events go to Kafka", requestID, map[string]interface{}{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.CRMTopic,
		})
	}
	defer sink.Close()

	staffSvc := staff.NewService(store, log)
	gateway := payment.Bounded{Gateway: payment.NewSimulated(300 * time.Millisecond)}

	service := order.NewService(store, dispatchers, gateway, staffSvc, sink, log, order.Options{
		TaxRate:               cfg.Orders.TaxRate,
		PaymentTimeout:        cfg.Payments.Timeout,
		SkipApprovalByDefault: !cfg.Orders.DefaultRequiresApproval,
	})

	handler := order.NewHandler(service, log)
	for name, check := range checks {
		handler.AddHealthCheck(name, check)
	}
	trackingHandler := tracking.NewHandler(tracking.NewService(store, store, log), log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRoutes(trackingHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("service_started", fmt.Sprintf("Order Service started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
			"port":          cfg.Server.Port,
			"storage":       cfg.Storage.Driver,
			"notifications": cfg.Notifications.Drivers,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("graceful_shutdown", "Shutting down HTTP server", requestID, nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, migrationsDir string) (storage, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("storage_memory", "Using in-memory storage, data is lost on restart", "startup", nil)
		return memory.NewStore(), func() {}, nil
	}

	conn, err := database.New(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("db_connected", "Connected to PostgreSQL database", "startup", nil)

	if err := conn.RunMigrations(ctx, migrationsDir); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db.NewStore(conn), conn.Close, nil
}

// runNotificationSubscriber prints notifications from RabbitMQ or Redis
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, source, queue, pattern string, prefetch int) error {
	sub := notification.NewSubscriber(log)

	switch source {
	case "rabbitmq":
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		hostname, _ := os.Hostname()
		consumer := messaging.NewConsumer(conn, log, queue, fmt.Sprintf("notification-subscriber-%s-%d", hostname, os.Getpid()), prefetch)
		return sub.ConsumeRabbitMQ(ctx, consumer)
	case "redis":
		client, err := notify.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		return sub.ConsumeRedis(ctx, client, pattern)
	default:
		return fmt.Errorf("unknown notification source: %s", source)
	}
}

// runStaffRegister creates a staff member with a hashed PIN
func runStaffRegister(ctx context.Context, cfg *config.Config, log *logger.Logger, name string, role models.Role, pin string) error {
	if cfg.Storage.Driver != "postgres" {
		return errors.New("staff-register requires storage.driver postgres")
	}

	conn, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer conn.Close()

	member, err := staff.NewService(db.NewStore(conn), log).Register(ctx, name, role, pin)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s %s (%s)\n", member.Role, member.Name, member.ID)
	return nil
}

// runMigrate applies pending migrations and exits
func runMigrate(ctx context.Context, cfg *config.Config, log *logger.Logger, migrationsDir string) error {
	conn, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer conn.Close()

	return conn.RunMigrations(ctx, migrationsDir)
}
