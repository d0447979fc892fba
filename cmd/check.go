package cmd

import "github.com/spf13/cobra"

func (a *app) checkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check",
		Short: "Report tasks whose idOS a migration would change",
		Long: `Run a dry pass and list the tasks a migration would change. Exits with
status 4 when changes are pending, so it can gate a deploy or a CI job.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPass(cmd, true)
		},
	}
	addPassFlags(c)
	return c
}
