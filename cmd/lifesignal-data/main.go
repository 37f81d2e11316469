package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifesignal-data/internal/common/database"
	"lifesignal-data/internal/common/logger"
	commonmqtt "lifesignal-data/internal/common/mqtt"
	commonredis "lifesignal-data/internal/common/redis"
	"lifesignal-data/internal/config"
	"lifesignal-data/internal/events"
	httpapi "lifesignal-data/internal/http"
	"lifesignal-data/internal/identity"
	"lifesignal-data/internal/push"
	"lifesignal-data/internal/repository"
	"lifesignal-data/internal/service"
	"lifesignal-data/internal/store"
	"lifesignal-data/internal/telephony"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env 可选，仅本地开发使用
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "lifesignal-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	// 文档存储：默认 Postgres，DB 未就绪时回退到内存实现（本地联测）
	var docs store.DocStore
	if cfg.DBEnabled {
		sqlDB, dbErr := database.NewPostgresDB(&cfg.Database)
		if dbErr != nil {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(dbErr))
		} else {
			defer sqlDB.Close()
			pg := store.NewPostgresStore(sqlDB)
			if schemaErr := pg.EnsureSchema(context.Background()); schemaErr != nil {
				log.Fatal("Failed to ensure document schema", zap.Error(schemaErr))
			}
			docs = pg
			log.Info("DB enabled for lifesignal-data")
		}
	}
	if docs == nil {
		docs = store.NewMemoryStore()
		log.Warn("Using in-memory document store, data will not survive restart")
	}

	// MQTT 可选：仅报警广播需要，连接失败不阻塞启动
	var mqttClient *commonmqtt.Client
	if cfg.MQTTEnabled {
		if c, mqttErr := commonmqtt.NewClient(&cfg.MQTT); mqttErr != nil {
			log.Warn("MQTT enabled but connection failed, alarm broadcast disabled", zap.Error(mqttErr))
		} else {
			mqttClient = c
			defer mqttClient.Disconnect()
		}
	}

	verifier := identity.NewJWTVerifier(cfg.Auth.Secret)
	publisher := events.NewPublisher(redisClient, mqttClient, cfg.Events.Stream, cfg.MQTT.QoS, log)

	linksRepo := repository.NewLinksRepo(docs)
	invitesRepo := repository.NewInvitesRepo(docs)
	usersRepo := repository.NewUsersRepo(docs)
	devicesRepo := repository.NewRedisDevicesRepo(redisClient, log)

	sender := push.NewFCMClient(&cfg.Push, log)
	dialer := telephony.NewTelnyxClient(&cfg.Telephony, log)

	matcher := service.NewContactMatcher(linksRepo, log)
	notify := service.NewNotifyService(devicesRepo, sender, log)
	voiceSvc := service.NewVoiceMessageService(docs, linksRepo, usersRepo, matcher, notify, publisher, log)
	inviteSvc := service.NewInviteService(docs, invitesRepo, linksRepo, usersRepo, log)
	profileSvc := service.NewProfileService(docs, log)
	checkinSvc := service.NewCheckinService(docs, usersRepo, publisher, log)
	sosSvc := service.NewSOSService(docs, linksRepo, usersRepo, notify, dialer, publisher, log)

	router := httpapi.NewRouter(log)
	router.RegisterVoiceMessageRoutes(httpapi.NewVoiceMessageHandler(voiceSvc, verifier, log))
	router.RegisterContactRoutes(httpapi.NewContactHandler(inviteSvc, verifier, log))
	router.RegisterUserRoutes(httpapi.NewUserHandler(profileSvc, checkinSvc, verifier, log))
	router.RegisterSOSRoutes(httpapi.NewSOSHandler(sosSvc, verifier, log))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(devicesRepo, verifier, log))
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
