// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foundersday/platform/services/registration"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:   "foundersday",
		Short: "The Founders Day event registration platform",
		Long: `Founders Day serves the public event and ticketing API, ingests
Square payment webhooks, and hosts the admin and live analytics surface.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the registration service",
		RunE:  runServe, // Defined below.
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := registration.LoadConfig()
	svc, err := registration.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	return svc.Run(ctx)
}
