// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/config"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"

	"github.com/spf13/cobra"
)

func init() {
	secretsCmd.AddCommand(secretsTestCmd)
	rootCmd.AddCommand(secretsCmd)
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage remote service credentials",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var secretsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate the configured credentials against the remote service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper()

		cache := credentials.NewCache(&credentials.Credentials{
			Token:     cfg.Token,
			SecretKey: cfg.SecretKey,
		})
		client := muxapi.New(muxapi.Config{
			BaseURL:        cfg.APIBaseURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			Credentials: func() (string, string) {
				return cfg.Token, cfg.SecretKey
			},
		})
		gate := credentials.NewGate(cache, client)

		if _, err := gate.EnsureValid(cmd.Context()); err != nil {
			logger.Fatal().Err(err).Msg("credential check failed")
		}
		fmt.Println("credentials ok")
	},
}
