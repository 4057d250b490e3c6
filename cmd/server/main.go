package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/config"
	"github.com/hongminglow/rewear-be/internal/events"
	"github.com/hongminglow/rewear-be/internal/logging"
	"github.com/hongminglow/rewear-be/internal/media"
	"github.com/hongminglow/rewear-be/internal/notify"
	"github.com/hongminglow/rewear-be/internal/server"
	"github.com/hongminglow/rewear-be/internal/session"
	"github.com/hongminglow/rewear-be/internal/storage"
	"github.com/hongminglow/rewear-be/internal/storage/memory"
	"github.com/hongminglow/rewear-be/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}
	serve(cfg)
}

func serve(cfg config.Config) {
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	defer store.Close()

	deps := server.Deps{
		Store:     store,
		Denylist:  openDenylist(ctx, cfg),
		Notifier:  openNotifier(cfg),
		Publisher: openPublisher(cfg),
	}
	defer deps.Publisher.Close()

	images, err := media.NewS3Store(ctx, media.S3Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.AWSRegion,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatalf("init image storage: %v", err)
	}
	deps.Media = images

	srv := server.New(cfg, deps)

	go func() {
		log.WithFields(log.Fields{"addr": cfg.HTTPAddress(), "storage": cfg.StorageDriver}).Info("ReWear backend listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("graceful shutdown error")
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}
	return postgres.NewStore(ctx, cfg.DatabaseURL)
}

func openDenylist(ctx context.Context, cfg config.Config) session.Denylist {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set; revoked sessions are tracked in memory")
		return session.NewMemoryDenylist()
	}
	rd, err := session.NewRedisDenylist(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable; falling back to in-memory denylist")
		return session.NewMemoryDenylist()
	}
	return rd
}

func openNotifier(cfg config.Config) notify.Notifier {
	if cfg.SendGridAPIKey == "" {
		log.Info("SENDGRID_API_KEY not set; notifications are logged only")
		return notify.LogNotifier{}
	}
	return notify.NewSendGrid(cfg.SendGridAPIKey, cfg.EmailSender, cfg.EmailSenderName)
}

func openPublisher(cfg config.Config) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		log.WithError(err).Warn("NATS unavailable; events are not published")
		return events.NopPublisher{}
	}
	return p
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found; relying on existing environment")
	}
}
