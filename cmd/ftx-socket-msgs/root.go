package main

import (
	"context"

	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "ftx-socket-msgs",
		Short: "Order-book feed staleness monitor",
	}
	root.AddCommand(watchCmd())
	return root.ExecuteContext(ctx)
}
