package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/idosync/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage the idosync config file",
	}
	c.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "idosync.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(a.out, "Wrote %s\n", path)
			return err
		},
	})
	return c
}
