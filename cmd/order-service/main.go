// cmd/order-service/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"orderdesk/internal/pkg/bootstrap"
	"orderdesk/internal/pkg/httpclient"
	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/pkg/nacos"
	"orderdesk/internal/pkg/redis"
	"orderdesk/internal/pkg/tracing"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"
	"orderdesk/internal/service/order/infrastructure"
	"orderdesk/internal/service/order/infrastructure/adapter"
	"orderdesk/internal/service/order/interfaces"
	"orderdesk/internal/zookeeper"
)

// cleanup 是关停时需要执行的清理动作，按注册的逆序执行
type cleanup = func(ctx context.Context) error

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: cfg.App.Name})

	if err := run(context.Background(), cfg); err != nil {
		logger.L().Fatal().Err(err).Msg("order-service exited")
	}
}

func run(ctx context.Context, cfg *bootstrap.Config) error {
	var cleanups []cleanup
	// 启动失败时，已创建的组件也要释放
	started := false
	defer func() {
		if started {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i](context.Background())
		}
	}()

	// 1. 初始化核心技术组件
	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, tp.Shutdown)
	tracer := otel.Tracer(cfg.App.Name)
	m := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	var nacosClient *nacos.Client
	if cfg.Infra.Nacos.ServerAddrs != "" {
		nacosClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func(context.Context) error { nacosClient.Close(); return nil })
	}

	// 2. 出站适配器
	repo, closeRepo, err := buildRepository(cfg)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeRepo)

	venue, err := buildVenue(cfg, tracer, nacosClient)
	if err != nil {
		return err
	}

	hub := interfaces.NewStatusHub()
	engineOpts := []application.EngineOption{
		application.WithStatusPublisher(hub),
		application.WithTimeouts(cfg.Engine.PlacementTimeout, cfg.Engine.ProcessingTimeout),
	}
	guard, closeGuard, err := buildGuard(cfg)
	if err != nil {
		return err
	}
	if guard != nil {
		engineOpts = append(engineOpts, application.WithPlacementGuard(guard))
		cleanups = append(cleanups, closeGuard)
	}

	// 3. 核心：生命周期引擎 + 投递方式
	engine := application.NewPlacementEngine(repo, venue, tracer, m, engineOpts...)
	dispatcher, stopDispatch, err := buildDispatcher(cfg, engine, m)
	if err != nil {
		return err
	}
	// 最后注册，关停时最先执行：先排空下单任务，再关闭存储等依赖
	cleanups = append(cleanups, stopDispatch)

	// 4. 入站适配器
	svc := application.NewOrderApplicationService(repo, dispatcher, tracer, m)
	handler := interfaces.NewOrderHandler(svc, hub, prometheus.DefaultGatherer)

	info := bootstrap.AppInfo{
		ServiceName:     cfg.App.Name,
		Port:            cfg.App.Port,
		Handler:         interfaces.NewRouter(handler, cfg.App.CORSOrigins),
		ShutdownTimeout: cfg.App.ShutdownTimeout,
		Runners:         []func(context.Context) error{hub.Run},
		Cleanups:        cleanups,
	}
	if nacosClient != nil {
		info.Registrar = nacosClient
	}

	started = true
	return bootstrap.StartService(ctx, info)
}

func buildRepository(cfg *bootstrap.Config) (domain.OrderRepository, cleanup, error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := infrastructure.OpenMySQL(infrastructure.MySQLOptions{
			DSN:             cfg.Store.MySQL.DSN,
			MaxOpenConns:    cfg.Store.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.MySQL.ConnMaxLifetime,
			AutoMigrate:     cfg.Store.MySQL.AutoMigrate,
		})
		if err != nil {
			return nil, nil, err
		}
		closeDB := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		logger.L().Info().Msg("✅ Order store: mysql")
		return infrastructure.NewGormOrderRepository(db), closeDB, nil
	default:
		store, err := infrastructure.NewPebbleOrderRepository(cfg.Store.Pebble.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.L().Info().Str("path", cfg.Store.Pebble.Path).Msg("✅ Order store: pebble")
		return store, func(context.Context) error { return store.Close() }, nil
	}
}

func buildVenue(cfg *bootstrap.Config, tracer trace.Tracer, nacosClient *nacos.Client) (port.Venue, error) {
	if cfg.Venue.Mode == "http" {
		client := httpclient.NewClient(tracer)
		if cfg.Venue.URL == "" && nacosClient != nil {
			logger.L().Info().Str("service", cfg.Venue.Service).Msg("✅ Venue: http via nacos discovery")
			return adapter.NewDiscoveredHTTPVenue(client, nacosClient, cfg.Venue.Service, cfg.Venue.Path), nil
		}
		logger.L().Info().Str("url", cfg.Venue.URL).Msg("✅ Venue: http")
		return adapter.NewHTTPVenue(client, cfg.Venue.URL), nil
	}

	rules := make([]adapter.VenueRule, 0, len(cfg.Venue.Rules))
	for _, r := range cfg.Venue.Rules {
		rules = append(rules, adapter.VenueRule{Name: r.Name, Expr: r.Expr, Reason: r.Reason})
	}
	logger.L().Info().Int("rules", len(rules)).Float64("fill_probability", cfg.Venue.FillProbability).Msg("✅ Venue: simulated")
	return adapter.NewSimulatedVenue(adapter.SimulatedVenueOptions{
		Rules:           rules,
		FillProbability: cfg.Venue.FillProbability,
		Latency:         cfg.Venue.Latency,
	})
}

func buildGuard(cfg *bootstrap.Config) (port.PlacementGuard, cleanup, error) {
	switch cfg.Guard.Mode {
	case "redis":
		redisClient, err := redis.NewClient(cfg.Guard.Redis.Addrs)
		if err != nil {
			return nil, nil, err
		}
		guard, err := adapter.NewRedisPlacementGuard(redisClient, cfg.Guard.TTL)
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, err
		}
		return guard, func(context.Context) error { return redisClient.Close() }, nil
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Guard.Zookeeper.Servers, cfg.Guard.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, nil, err
		}
		return adapter.NewZookeeperPlacementGuard(conn), func(context.Context) error { conn.Close(); return nil }, nil
	default:
		return nil, nil, nil
	}
}

func buildDispatcher(cfg *bootstrap.Config, engine *application.PlacementEngine, m *metrics.OrderMetrics) (port.PlacementDispatcher, cleanup, error) {
	if cfg.Dispatch.Mode != "kafka" {
		pool := adapter.NewWorkerPoolDispatcher(engine, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, m)
		pool.Start()
		return pool, pool.Stop, nil
	}

	k := cfg.Dispatch.Kafka
	writer := mq.NewKafkaWriter(k.Brokers, k.Topic)
	reader := mq.NewKafkaReader(k.Brokers, k.Topic, k.GroupID)

	var (
		failureHandler *mq.FailureHandler
		dlt            *interfaces.DltConsumerAdapter
		dltWriter      *kafka.Writer
	)
	if k.DeadLetterTopic != "" {
		dltWriter = mq.NewKafkaWriter(k.Brokers, k.DeadLetterTopic)
		failureHandler = mq.NewFailureHandler(dltWriter)
		dlt = interfaces.NewDltConsumerAdapter(mq.NewKafkaReader(k.Brokers, k.DeadLetterTopic, k.GroupID+"-dlt"))
		_ = dlt.Start(context.Background())
	}

	consumer := interfaces.NewPlacementConsumerAdapter(reader, engine, failureHandler)
	if err := consumer.Start(context.Background()); err != nil {
		return nil, nil, err
	}
	logger.L().Info().Strs("brokers", k.Brokers).Str("topic", k.Topic).Msg("✅ Dispatch: kafka")

	stop := func(ctx context.Context) error {
		consumer.Stop(ctx)
		if dlt != nil {
			dlt.Stop(ctx)
			_ = dltWriter.Close()
		}
		return writer.Close()
	}
	return adapter.NewKafkaPlacementDispatcher(writer), stop, nil
}
