// Package main provides the rxinsight operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxinsight",
		Short: "Prescription analytics tooling",
	}

	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(topicsCmd())
	rootCmd.AddCommand(publishOnceCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
