package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/edgeee/chathub/api"
	"github.com/edgeee/chathub/api/validator"
	"github.com/edgeee/chathub/chat"
	"github.com/edgeee/chathub/config"
	"github.com/edgeee/chathub/cryptoutil"
	"github.com/edgeee/chathub/gateway"
	"github.com/edgeee/chathub/postgres"
	"github.com/edgeee/chathub/redis"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("Server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cipher, err := cryptoutil.New(cfg.EncryptionKey, logger)
	if err != nil {
		return err
	}

	pg, err := postgres.Connect(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return err
	}

	cache, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}

	// Keep the preview cache fresh for writes from any session, not only
	// ones that came through this process.
	unsubscribe, err := pg.Subscribe(ctx, func(ev chat.Event) {
		var err error
		switch ev.Type {
		case chat.EventInsert:
			err = cache.InsertMessage(ctx, ev.Message)
		case chat.EventUpdate:
			err = cache.SetReplyCount(ctx, ev.Message.ID, ev.Message.ReplyCount)
		case chat.EventDelete:
			err = cache.DeleteMessage(ctx, ev.Message.ID)
		}
		if err != nil {
			logger.Error("Could not sync cache", "type", string(ev.Type), "error", err.Error())
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	a := &api.API{
		Logger: logger,
		DB:     pg,
		Cache:  cache,
		Codec:  &gateway.Codec{Cipher: cipher},
		Auth:   headerAuth{},
		Val:    validator.New(),
	}

	logger.Info("Starting server", "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, a)
}

// headerAuth reads the session the OAuth proxy in front of this service
// injects per request. The proxy is authoritative; these headers never
// arrive from the outside.
type headerAuth struct{}

func (headerAuth) Session(r *http.Request) *chat.Session {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return nil
	}
	return &chat.Session{
		UserID:       userID,
		DisplayName:  r.Header.Get("X-User-Name"),
		AvatarURL:    r.Header.Get("X-User-Avatar"),
		IsPrivileged: r.Header.Get("X-User-Privileged") == "true",
	}
}
