// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads pipeline configuration from config files and the
// environment via viper. Every remote call the pipeline makes has an
// explicit timeout and retry budget configured here rather than relying
// on transport defaults.
package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ConfigurationFileDirectory string
)

// Config holds the full runtime configuration for the upload pipeline.
type Config struct {
	// ListenAddr is the bind address for the HTTP surface.
	ListenAddr string

	// Remote video service endpoints.
	APIBaseURL    string
	ImageBaseURL  string
	StreamBaseURL string

	// Credentials for the remote service. Usually provided via
	// MUX_TOKEN / MUX_SECRET_KEY env vars or the secrets command.
	Token             string
	SecretKey         string
	EnableSignedURLs  bool
	SigningKeyID      string
	SigningKeyPrivate string

	// RequestTimeout bounds every individual remote call.
	RequestTimeout time.Duration
	// MaxRetries bounds transient-failure retries for credential test
	// and initiator calls.
	MaxRetries int

	// Readiness polling.
	PollInterval    time.Duration
	PollMaxAttempts int

	// Chunked transfer tuning. Sizes are bytes; chunk sizes are rounded
	// to 256KiB multiples by the engine.
	MinChunkSize     int64
	MaxChunkSize     int64
	InitialChunkSize int64

	// RedisAddr selects the Redis-backed document store when set.
	// Empty means the in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Default returns the built-in defaults, before any file/env overrides.
func Default() Config {
	return Config{
		ListenAddr:       ":8087",
		APIBaseURL:       "https://api.mux.com",
		ImageBaseURL:     "https://image.mux.com",
		StreamBaseURL:    "https://stream.mux.com",
		RequestTimeout:   30 * time.Second,
		MaxRetries:       3,
		PollInterval:     2 * time.Second,
		PollMaxAttempts:  10,
		MinChunkSize:     256 << 10,
		MaxChunkSize:     64 << 20,
		InitialChunkSize: 8 << 20,
	}
}

// LoadConfiguration merges the named config file into viper's state.
// Returns false when the file was not found and not required.
func LoadConfiguration(configFileName string, required bool) bool {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath(ConfigurationFileDirectory)
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.muxinput")
	viper.AddConfigPath("/usr/local/etc/muxinput/")
	viper.AddConfigPath("/etc/muxinput/")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if required {
				log.Fatal().Msgf("Config file not found: %s", configFileName)
			}
			log.Info().Msgf("Config file not found: %s", configFileName)
			return false
		}

		if required {
			log.Fatal().Msgf("Failed to load required config file: %s", configFileName)
		}
		return false
	}
	log.Info().Msgf("Loaded config file: %s", viper.ConfigFileUsed())

	return true
}

// FromViper materializes a Config from viper's merged state, applying
// defaults for anything unset.
func FromViper() Config {
	cfg := Default()

	if v := viper.GetString("listen_addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := viper.GetString("mux.api_base_url"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := viper.GetString("mux.image_base_url"); v != "" {
		cfg.ImageBaseURL = v
	}
	if v := viper.GetString("mux.stream_base_url"); v != "" {
		cfg.StreamBaseURL = v
	}
	if v := viper.GetString("mux.token"); v != "" {
		cfg.Token = v
	}
	if v := viper.GetString("mux.secret_key"); v != "" {
		cfg.SecretKey = v
	}
	cfg.EnableSignedURLs = viper.GetBool("mux.enable_signed_urls")
	if v := viper.GetString("mux.signing_key_id"); v != "" {
		cfg.SigningKeyID = v
	}
	if v := viper.GetString("mux.signing_key_private"); v != "" {
		cfg.SigningKeyPrivate = v
	}
	if v := viper.GetDuration("request_timeout"); v > 0 {
		cfg.RequestTimeout = v
	}
	if v := viper.GetInt("max_retries"); v > 0 {
		cfg.MaxRetries = v
	}
	if v := viper.GetDuration("poll.interval"); v > 0 {
		cfg.PollInterval = v
	}
	if v := viper.GetInt("poll.max_attempts"); v > 0 {
		cfg.PollMaxAttempts = v
	}
	if v := viper.GetInt64("transfer.min_chunk_size"); v > 0 {
		cfg.MinChunkSize = v
	}
	if v := viper.GetInt64("transfer.max_chunk_size"); v > 0 {
		cfg.MaxChunkSize = v
	}
	if v := viper.GetInt64("transfer.initial_chunk_size"); v > 0 {
		cfg.InitialChunkSize = v
	}
	if v := viper.GetString("redis.addr"); v != "" {
		cfg.RedisAddr = v
	}
	if v := viper.GetString("redis.password"); v != "" {
		cfg.RedisPassword = v
	}
	cfg.RedisDB = viper.GetInt("redis.db")

	return cfg
}
