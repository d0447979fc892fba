// Package cmd implements the idosync command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zjrosen/idosync/internal/config"
	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/migration"
	"github.com/zjrosen/idosync/internal/store"
	"github.com/zjrosen/idosync/internal/store/rtdb"
	"github.com/zjrosen/idosync/internal/store/sqlite"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitConfig      = 1
	ExitReadFailure = 2
	ExitInterrupted = 3
	ExitPending     = 4
)

// ErrPendingChanges is returned by check when a pass would change records.
var ErrPendingChanges = errors.New("pending idOS changes")

var version = "dev"

// configKeys are the settings that may come from flags, the environment or
// the config file, with their zero values. Flags are bound by name with
// dashes turned into underscores.
var configKeys = map[string]any{
	"service_account": "",
	"database_url":    "",
	"dry_run":         false,
	"derive_from_key": false,
	"json":            false,
	"verbose":         false,
	"debug":           false,
	"log_file":        "",
}

// app holds the state of one command-line invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config

	out    io.Writer
	errOut io.Writer

	cleanup []func()
}

func newApp(out, errOut io.Writer) *app {
	return &app{v: viper.New(), out: out, errOut: errOut}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "idosync",
		Short: "Normalize and deduplicate task idOS identifiers",
		Long: `idosync walks every account's tasks in a Realtime Database and gives
each task a canonical idOS identifier that is unique within its account.

Only the idOS field of tasks that need it is written. Running it again on
migrated data changes nothing.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: ./idosync.yaml or ~/.config/idosync/config.yaml)")
	pf.String("database-url", "", "database URL: https://<project>.firebaseio.com or sqlite://<file>")
	pf.String("service-account", "", "service account key file (required for https:// databases)")
	pf.Bool("debug", false, "log at debug level")
	pf.String("log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(a.migrateCmd(), a.checkCmd(), a.seedCmd(), a.configCmd())
	return root
}

// initConfig layers defaults, the config file, IDOSYNC_* environment
// variables and flags, in increasing priority.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	v := a.v

	defaults := config.Defaults()
	for key, zero := range configKeys {
		v.SetDefault(key, zero)
	}
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	v.SetEnvPrefix("IDOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		// Config lookup order:
		// 1. ./idosync.yaml
		// 2. ~/.config/idosync/config.yaml
		if _, err := os.Stat("idosync.yaml"); err == nil {
			v.SetConfigFile("idosync.yaml")
		} else {
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(filepath.Join(home, ".config", "idosync"))
			}
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return &config.ConfigurationError{Field: "config", Reason: "cannot be loaded", Err: err}
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, ok := configKeys[key]; !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return bindErr
	}

	a.cfg = config.Defaults()
	if err := v.Unmarshal(&a.cfg); err != nil {
		return &config.ConfigurationError{Field: "config", Reason: "cannot be decoded", Err: err}
	}

	if err := a.initLogging(); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug(log.CatConfig, "Loaded config file", "path", used)
	}
	return nil
}

func (a *app) initLogging() error {
	if a.cfg.LogFile != "" {
		cleanup, err := log.Init(a.cfg.LogFile)
		if err != nil {
			return &config.ConfigurationError{Field: "log_file", Reason: "cannot be opened", Err: err}
		}
		a.cleanup = append(a.cleanup, cleanup)
	} else {
		log.InitWriter(a.errOut)
	}
	if a.cfg.Debug {
		log.SetMinLevel(log.LevelDebug)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// openStore connects to the store selected by the database URL.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	backend, location, err := a.cfg.Backend()
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(location)
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func() { _ = s.Close() })
		return s, nil
	default:
		c, err := rtdb.New(ctx, location, rtdb.WithServiceAccountFile(a.cfg.ServiceAccount))
		if err != nil {
			return nil, &config.ConfigurationError{Field: "service_account", Reason: "cannot be used", Err: err}
		}
		return c, nil
	}
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	var readErr *migration.TopLevelReadError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPendingChanges):
		return ExitPending
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &readErr):
		return ExitReadFailure
	default:
		return ExitConfig
	}
}

// run executes the command line with args and returns the exit code.
func run(args []string, out, errOut io.Writer) int {
	a := newApp(out, errOut)
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && !errors.Is(err, ErrPendingChanges) {
		_, _ = fmt.Fprintln(errOut, "Error:", err)
	}
	return ExitCode(err)
}

// Execute runs the root command against the process arguments and returns
// the exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
