package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/idosync/internal/config"
	"github.com/zjrosen/idosync/internal/store"
	"github.com/zjrosen/idosync/internal/store/fixture"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load a YAML fixture into a local SQLite database",
		Long: `Load accounts and tasks from a YAML fixture into a sqlite:// database,
for rehearsing a migration locally. Existing tasks with the same keys are
replaced.

Example:
  idosync seed --database-url sqlite://rehearsal.db testdata/tasks.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := a.cfg.Backend()
			if err != nil {
				_, _ = fmt.Fprint(a.errOut, cmd.UsageString())
				return err
			}
			if backend != config.BackendSQLite {
				return &config.ConfigurationError{Field: "database_url", Reason: "seed only writes to sqlite:// databases"}
			}

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			putter, ok := s.(store.Putter)
			if !ok {
				return fmt.Errorf("store %T cannot be seeded", s)
			}

			stats, err := fixture.LoadFile(cmd.Context(), args[0], putter)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Seeded %d owner(s) and %d task(s) from %s\n", stats.Owners, stats.Tasks, args[0])
			return err
		},
	}
}
