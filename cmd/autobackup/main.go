package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autobackup/internal/config"
	"autobackup/internal/engine"
	"autobackup/internal/logging"
	"autobackup/internal/scheduler"
)

var (
	configPath string
	interval   time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autobackup",
	Short: "Directory file versioning tool",
	Long:  "Watches a directory and creates versioned backups when file content actually changes.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	watchCmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (overrides config)")
	rootCmd.AddCommand(watchCmd, cycleCmd, statusCmd)
}

// loadConfig merges the config file (if any) with command-line overrides.
func loadConfig(args []string) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	if len(args) > 0 {
		cfg.Watch.Path = args[0]
	}
	if interval > 0 {
		cfg.Watch.PollInterval = interval
		cfg.Watch.Cron = ""
	}

	if cfg.Watch.Path == "" {
		return nil, fmt.Errorf("no directory to watch: pass one as an argument or set watch.path")
	}
	return cfg, nil
}

func newEngine(cfg *config.Config) (*engine.Engine, logging.Logger, error) {
	log := logging.NewStd(logging.ParseLevel(cfg.Logging.Level))

	eng, err := engine.New(engine.Config{
		Dir:         cfg.Watch.Path,
		MaxTracked:  cfg.Watch.MaxTracked,
		OnRecreate:  engine.RecreatePolicy(cfg.Watch.OnRecreate),
		HashWorkers: cfg.Watch.HashWorkers,
	}, log, nil, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return eng, log, nil
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and back up changed files until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}

		eng, log, err := newEngine(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("watching %s (backups in %s/)", eng.Dir(), engine.BackupDirName)
		return scheduler.New(eng, log).Run(ctx, cfg.Watch.PollInterval, cfg.Watch.Cron)
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle [dir]",
	Short: "Run a single scan/backup cycle and exit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}

		eng, _, err := newEngine(cfg)
		if err != nil {
			return err
		}

		res, err := eng.RunCycle(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("discovered %d, backed up %d, %d error(s)\n",
			res.Discovered, res.BackedUp, res.Errors)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Show tracked files and their versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}

		eng, _, err := newEngine(cfg)
		if err != nil {
			return err
		}

		s := eng.Status()
		fmt.Printf("Watching: %s\n", s.Dir)
		fmt.Printf("Tracking %d of %d file(s):\n", s.Tracked, s.Capacity)
		for _, f := range s.Files {
			marker := ""
			if f.Missing {
				marker = " (missing)"
			}
			fmt.Printf("  %s (v%d)%s\n", f.Name, f.Version, marker)
		}
		return nil
	},
}
