// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "muxinput",
	Short: "muxinput - video upload & asset-readiness pipeline",
	Long: `muxinput stages editor video input (files or URLs), streams it to the
remote video-processing service in resumable chunks, polls for
processing completion, and materializes durable asset records for the
host document store. It also builds signed, time-boxed playback URLs
for assets behind a signed or drm playback policy.`,
	PersistentPreRun: loadConfiguration,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")

	rootCmd.PersistentFlags().String("mux_token", "", "Remote service API token (or set MUX_TOKEN)")
	rootCmd.PersistentFlags().String("mux_secret_key", "", "Remote service API secret (or set MUX_SECRET_KEY)")
	viper.BindPFlag("mux.token", rootCmd.PersistentFlags().Lookup("mux_token"))
	viper.BindPFlag("mux.secret_key", rootCmd.PersistentFlags().Lookup("mux_secret_key"))
}

func loadConfiguration(cmd *cobra.Command, args []string) {
	config.LoadConfiguration("muxinput", false)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
