// The main file of Agora.

package main

import (
	"Agora/internal/auth"
	"Agora/internal/cache"
	"Agora/internal/channel"
	"Agora/internal/config"
	"Agora/internal/emit"
	"Agora/internal/metrics"
	"Agora/internal/navigation"
	"Agora/internal/query"
	"Agora/internal/realtime"
	"Agora/internal/relay"
	"Agora/internal/room"
	"Agora/internal/signal"
	"Agora/internal/sse"
	"Agora/pkg/cleanup"
	"Agora/pkg/db"
	"Agora/pkg/log"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Indicates the current version of Agora, overridden by VERSION.
var Version = "1.0.0"

func main() {
	cfg, cfgerr := config.Load("config/dev.env")
	if cfgerr != nil {
		log.New(Version).Fatal().Err(cfgerr).Msg("Agora couldn't load its configuration.")
	}
	if cfg.Version != "dev" {
		Version = cfg.Version
	}
	logger := log.New(Version)

	logger.Info().Msgf("Welcome to Agora: v%s", Version)
	logger.Info().Msgf("Agora Environment: %s", cfg.Env)
	// This is the preferred mode used by gin server in DEV environment.
	if cfg.Env == "DEV" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	session, sesserr := auth.ParseSession(logger, cfg.Token, cfg.Secret)
	if sesserr != nil {
		logger.Fatal().Err(sesserr).Msg("SYNC_TOKEN is not a usable session token.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewService(registry)

	// Picking the event transport the session runs on.
	var (
		transport channel.Transport
		dbwrp     *db.RedisDB
	)
	switch cfg.Transport {
	case config.TransportRedis:
		var dberr error
		dbwrp, dberr = db.NewDbConnection(ctx, logger, db.Options{
			Addr:     cfg.RedisAddr,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if dberr != nil {
			logger.Fatal().Err(dberr).Msg("Redis client couldn't be initialized.")
		}
		// Sending a PING request to DB for connection status check.
		if pingerr := dbwrp.CheckDbConnection(ctx, logger); pingerr != nil {
			logger.Fatal().Err(pingerr).Msg("Redis client couldn't PING the redis-server.")
		}
		transport = channel.NewRedisTransport(dbwrp, cfg.ChannelPrefix, logger)
	default:
		transport = channel.NewWebsocketTransport(cfg.ServerURL, session.Token, logger)
	}

	client := channel.NewClient(transport, cfg.ReconnectDelay, m, logger)
	store := cache.NewStore()
	signals := signal.NewService(cfg.Signals)
	nav := navigation.NewTracker("/", logger)
	rooms := room.NewManager(client, room.NewPolicy(cfg.DenyPaths), logger)

	// Realtime handlers are registered before the first connection so no event is missed.
	subscription := realtime.NewService(client, rooms, store, signals, nav, session, m, logger).Start(ctx)

	hub := sse.NewService(logger)
	stopForward := relay.Forward(hub, store, signals, nav)

	relaySvc := relay.NewService(ctx, relay.Components{
		Store:   store,
		Queries: query.NewService(cfg.APIBase, session.Token, &http.Client{Timeout: 15 * time.Second}, store, logger),
		Signals: signals,
		Rooms:   rooms,
		Nav:     nav,
		Emit:    emit.NewService(client, cfg.PingsPerSecond, m, logger),
		Conn:    client,
		Session: session,
	}, logger)

	// Initializing the gin server.
	server := gin.New()
	Router(server, cfg, session, relaySvc, hub, registry, logger)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server,
	}

	group, runctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return client.Run(runctx)
	})
	group.Go(func() error {
		hub.Listen(runctx)
		return nil
	})
	group.Go(func() error {
		logger.Info().Msgf("Relay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown of Agora triggered due to system interruptions or a failed worker.
	operations := map[string]cleanup.Operation{
		"Gin": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"Event-channel": func(ctx context.Context) error {
			subscription.Close()
			stopForward()
			cancel()
			return nil
		},
		"Signals": func(ctx context.Context) error {
			signals.Close()
			return nil
		},
	}
	if dbwrp != nil {
		operations["Redis-server"] = func(ctx context.Context) error {
			return dbwrp.Client().Close()
		}
	}
	wait := cleanup.GracefulShutdown(runctx, logger, 5*time.Second, operations)
	<-wait

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("Agora stopped with an error.")
	}
}
