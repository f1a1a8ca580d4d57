// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"attentid/internal/certificate"
	certhandler "attentid/internal/certificate/handler"
	"attentid/internal/certificate/lock"
	certservice "attentid/internal/certificate/service"
	certstore "attentid/internal/certificate/store"
	eventstore "attentid/internal/event/store"
	identityhandler "attentid/internal/identity/handler"
	identityservice "attentid/internal/identity/service"
	identitystore "attentid/internal/identity/store"
	"attentid/internal/ingest"
	jwttoken "attentid/internal/jwt_token"
	"attentid/internal/platform/config"
	"attentid/internal/platform/httpserver"
	"attentid/internal/platform/kafka/consumer"
	"attentid/internal/platform/logger"
	"attentid/internal/platform/metrics"
	platformredis "attentid/internal/platform/redis"
	"attentid/internal/presence"
	httptransport "attentid/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	var issueLock certservice.IssueLock = lock.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		issueLock = lock.NewRedis(redisClient.Client)
	}

	m := metrics.New()

	events := eventstore.NewPostgres(db)
	users := identityservice.NewService(identitystore.NewPostgres(db))
	matcher := presence.NewMatcher(events, log)
	signer := certificate.NewSigner(cfg.SigningSecret)
	certs := certservice.NewService(certstore.NewPostgres(db), users, matcher, signer, issueLock, log)
	pipeline := ingest.NewPipeline(events, certs, users, log, m)

	beaconConsumer, err := consumer.New(cfg.Kafka, pipeline, log)
	if err != nil {
		log.Error("connect kafka", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	router := httptransport.NewRouter(log, m,
		certhandler.New(certs, log, m, tokens),
		identityhandler.New(users, tokens, cfg.TokenExpiry, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting attentid", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return beaconConsumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
