// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/config"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/pipeline"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/server"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/transfer"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload pipeline HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper()

		cache := credentials.NewCache(&credentials.Credentials{
			Token:             cfg.Token,
			SecretKey:         cfg.SecretKey,
			EnableSignedURLs:  cfg.EnableSignedURLs,
			SigningKeyID:      cfg.SigningKeyID,
			SigningKeyPrivate: cfg.SigningKeyPrivate,
		})

		client := muxapi.New(muxapi.Config{
			BaseURL:        cfg.APIBaseURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			Credentials: func() (string, string) {
				creds := cache.Get()
				if creds == nil {
					return "", ""
				}
				return creds.Token, creds.SecretKey
			},
		})

		gate := credentials.NewGate(cache, client)
		store := buildStore(cfg)

		pipe := pipeline.New(pipeline.Config{
			Service: client,
			Gate:    gate,
			Store:   store,
			Transfer: transfer.Config{
				MinChunkSize:     cfg.MinChunkSize,
				MaxChunkSize:     cfg.MaxChunkSize,
				InitialChunkSize: cfg.InitialChunkSize,
			},
			PollInterval:    cfg.PollInterval,
			PollMaxAttempts: cfg.PollMaxAttempts,
		})

		srv := server.New(server.Config{
			ListenAddr:    cfg.ListenAddr,
			Pipeline:      pipe,
			Store:         store,
			Credentials:   cache,
			Gate:          gate,
			Keys:          signingKeys{client: client},
			ImageBaseURL:  cfg.ImageBaseURL,
			StreamBaseURL: cfg.StreamBaseURL,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("http server shutdown failed")
			}
		}()

		if err := srv.ListenAndServe(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	},
}

func buildStore(cfg config.Config) docstore.Store {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("using in-memory document store")
		return docstore.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis document store")
	return docstore.NewRedisStore(client)
}

// signingKeys adapts the remote client to the gate's key provisioner.
type signingKeys struct {
	client *muxapi.Client
}

func (s signingKeys) CreateSigningKey(ctx context.Context) (string, string, error) {
	key, err := s.client.CreateSigningKey(ctx)
	if err != nil {
		return "", "", err
	}
	return key.ID, key.PrivateKey, nil
}
