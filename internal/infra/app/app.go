package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/chat"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/infra/config"
	"github.com/caspian-yx/socket-chat-app/internal/infra/database"
	kafkainfra "github.com/caspian-yx/socket-chat-app/internal/infra/kafka"
	"github.com/caspian-yx/socket-chat-app/internal/infra/logger"
	redisinfra "github.com/caspian-yx/socket-chat-app/internal/infra/redis"
	"github.com/caspian-yx/socket-chat-app/internal/infra/security"
	"github.com/caspian-yx/socket-chat-app/internal/infra/telemetry"
	"github.com/caspian-yx/socket-chat-app/internal/protocol"
	postgresrepo "github.com/caspian-yx/socket-chat-app/internal/repository/postgres"
	redisrepo "github.com/caspian-yx/socket-chat-app/internal/repository/redis"
	transporthttp "github.com/caspian-yx/socket-chat-app/internal/transport/http"
	"github.com/caspian-yx/socket-chat-app/internal/usecase"
)

// Application wires the full server: storage, queue, token lifecycle, the
// chat listener, and the admin sidecar.
type Application struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	server *chat.Server
	admin  *transporthttp.AdminServer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	tokens, err := security.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	users := postgresrepo.NewUserRepository(pool)
	messages := postgresrepo.NewMessageRepository(pool)
	rooms := postgresrepo.NewRoomRepository(pool)

	queue := redisrepo.NewOfflineQueue(redisClient.Client(), redisrepo.OfflineQueueOptions{
		KeyPrefix: cfg.Redis.QueuePrefix,
		MaxDepth:  cfg.Redis.QueueMaxDepth,
		TTL:       cfg.Redis.QueueTTL,
	})
	denylist := redisrepo.NewTokenDenylist(redisClient.Client(), cfg.Redis.DenylistPrefix)
	presenceStore := redisrepo.NewPresenceStore(redisClient.Client(), cfg.Redis.PresencePrefix)

	var events port.EventPublisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	directory := chat.NewDirectory()
	deliveryService := usecase.NewDeliveryService(directory, queue, events, metrics, log)
	presenceService := usecase.NewPresenceService(directory, presenceStore, cfg.Redis.PresenceTTL, log)
	authService := usecase.NewAuthService(users, tokens, denylist, directory, presenceService, deliveryService, events, metrics, log)
	registrationService := usecase.NewRegistrationService(users, events, log)
	messageService := usecase.NewMessageService(messages, rooms, deliveryService, log)
	roomService := usecase.NewRoomService(rooms, log)

	router := chat.NewRouter(log).WithMetrics(metrics)
	router.Register(protocol.CmdAuthLogin, authService.HandleLogin)
	router.Register(protocol.CmdAuthRegister, registrationService.HandleRegister)
	router.Register(protocol.CmdAuthRefresh, authService.HandleRefresh)
	router.Register(protocol.CmdAuthLogout, authService.HandleLogout)
	router.Register(protocol.CmdPresenceHeartbeat, presenceService.HandleHeartbeat)
	router.Register(protocol.CmdPresenceUpdate, presenceService.HandleUpdate)
	router.Register(protocol.CmdPresenceList, presenceService.HandleList)
	router.Register(protocol.CmdMessageSend, messageService.HandleSend)
	router.Register(protocol.CmdMessageHistory, messageService.HandleHistory)
	router.Register(protocol.CmdRoomCreate, roomService.HandleCreate)
	router.Register(protocol.CmdRoomJoin, roomService.HandleJoin)
	router.Register(protocol.CmdRoomLeave, roomService.HandleLeave)
	router.Register(protocol.CmdRoomList, roomService.HandleList)
	router.Register(protocol.CmdRoomMembers, roomService.HandleMembers)
	router.Register(protocol.CmdRoomDelete, roomService.HandleDelete)

	sessionOpts := chat.SessionOptions{
		MaxPayload:        cfg.Chat.MaxPayload,
		HeartbeatInterval: cfg.Chat.HeartbeatInterval,
		HeartbeatGrace:    cfg.Chat.HeartbeatGrace,
		WriteQueueSize:    cfg.Chat.WriteQueueSize,
		WriteTimeout:      cfg.Chat.WriteTimeout,
	}
	chatAddr := fmt.Sprintf("%s:%d", cfg.Chat.Host, cfg.Chat.Port)
	server := chat.NewServer(chatAddr, sessionOpts, router, metrics, log, authService.HandleDisconnect)

	adminAddr := fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port)
	admin := transporthttp.NewAdminServer(adminAddr, map[string]transporthttp.Checker{
		"postgres": pool.Ping,
		"redis":    redisClient.HealthCheck,
	}, log)

	return &Application{
		cfg:    cfg,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		server: server,
		admin:  admin,
	}, nil
}

// Run serves until the context is cancelled, then shuts everything down in
// reverse dependency order.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("start chat server: %w", err)
	}

	adminErrCh := make(chan error, 1)
	go func() {
		if err := a.admin.Start(); err != nil {
			adminErrCh <- fmt.Errorf("run admin server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.server.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown admin server: %w", err)
		}
		return nil
	case err := <-adminErrCh:
		a.server.Stop()
		return err
	}
}
