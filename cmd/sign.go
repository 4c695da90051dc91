// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/config"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/token"

	"github.com/spf13/cobra"
)

var (
	signPolicy   string
	signAudience string
	signParams   []string
)

func init() {
	signCmd.Flags().StringVar(&signPolicy, "policy", "signed", "Playback policy (public, signed, drm)")
	signCmd.Flags().StringVar(&signAudience, "audience", "video-stream", "URL audience (thumbnail, animated-thumbnail, storyboard, video-stream)")
	signCmd.Flags().StringArrayVar(&signParams, "param", nil, "Extra query parameter as key=value (repeatable)")
	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign <playback-id>",
	Short: "Build a playback URL, signed when the policy requires it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.FromViper()

		builder := token.NewBuilder(token.KeyPair{
			ID:         cfg.SigningKeyID,
			PrivateKey: cfg.SigningKeyPrivate,
		})
		if cfg.ImageBaseURL != "" {
			builder.ImageBaseURL = cfg.ImageBaseURL
		}
		if cfg.StreamBaseURL != "" {
			builder.StreamBaseURL = cfg.StreamBaseURL
		}

		params := token.Params{}
		for _, p := range signParams {
			key, value, ok := strings.Cut(p, "=")
			if !ok {
				logger.Fatal().Str("param", p).Msg("params must be key=value")
			}
			params[key] = value
		}

		playbackID := args[0]
		var url string
		var err error
		switch signAudience {
		case "thumbnail":
			url, err = builder.ThumbnailURL(playbackID, signPolicy, params)
		case "animated-thumbnail":
			url, err = builder.AnimatedThumbnailURL(playbackID, signPolicy, params)
		case "storyboard":
			url, err = builder.StoryboardURL(playbackID, signPolicy, params)
		case "video-stream":
			url, err = builder.StreamURL(playbackID, signPolicy, params)
		default:
			logger.Fatal().Str("audience", signAudience).Msg("unknown audience")
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build playback URL")
		}

		fmt.Println(url)
	},
}
