package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blockbudget/internal/log"
	"blockbudget/internal/services"
	"blockbudget/internal/storage"
)

const envPrefix = "BUDGETCTL"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New(), os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by subcommands once flags and config are read.
type app struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	a := &app{v: v, out: out}
	var cfgFile string

	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Inspect blockbudget data from the terminal",
		Long: `budgetctl reads a blockbudget SQLite database directly and prints the
month analysis or exports expenses as CSV.

Flags can also be set with BUDGETCTL_* environment variables or a
budgetctl.yaml config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cfgFile)
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./budgetctl.yaml or $HOME/.config/blockbudget/budgetctl.yaml)")
	flags.String("db", "./data/blockbudget.db", "SQLite database path")
	flags.String("user", "", "user ID whose data is read")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = v.BindPFlag("db", flags.Lookup("db"))
	_ = v.BindPFlag("user", flags.Lookup("user"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(a.analyzeCmd())
	root.AddCommand(a.exportCmd())
	return root
}

func (a *app) initConfig(cfgFile string) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.config/blockbudget")
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("budgetctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(a.v.GetString("log_level"))
	cfg.Component = log.ComponentCLI
	cfg.Output = os.Stderr
	log.SetDefault(log.New(cfg))
	return nil
}

func (a *app) userID() (string, error) {
	user := strings.TrimSpace(a.v.GetString("user"))
	if user == "" {
		return "", fmt.Errorf("a user is required: pass --user or set %s_USER", envPrefix)
	}
	return user, nil
}

// openService opens the existing database read by every subcommand. The
// caller closes the service.
func (a *app) openService() (*services.BudgetService, error) {
	path := a.v.GetString("db")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("database %s does not exist: check --db or %s_DB", path, envPrefix)
		}
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return services.NewBudgetService(repo, nil), nil
}
