// Command linelogd is the bounded TCP line-logging daemon: it binds a
// listening socket, accepts newline-terminated records from clients,
// replies with the current log on each append, and injects a timestamp
// record on a configurable schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aesdsocket/linelogd/internal/config"
	"github.com/aesdsocket/linelogd/internal/logger"
	"github.com/aesdsocket/linelogd/internal/reclog"
	"github.com/aesdsocket/linelogd/internal/schedule"
	"github.com/aesdsocket/linelogd/internal/supervisor"
	"github.com/aesdsocket/linelogd/internal/ticker"
)

func main() {
	var (
		detach       bool
		foreground   bool
		portFlag     int
		capacityFlag int
		periodFlag   string
		configFlag   string
	)

	root := &cobra.Command{
		Use:   "linelogd",
		Short: "Bounded, random-access TCP line-logging daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach && !foreground {
				return daemonize(os.Args[1:])
			}
			return run(cmd.Context(), runOptions{
				configPath:  configFlag,
				portSet:     cmd.Flags().Changed("port"),
				port:        portFlag,
				capacitySet: cmd.Flags().Changed("capacity"),
				capacity:    capacityFlag,
				periodSet:   cmd.Flags().Changed("period"),
				period:      periodFlag,
			})
		},
	}

	root.Flags().BoolVarP(&detach, "detach", "d", false, "run as a detached background process")
	root.Flags().BoolVar(&foreground, "foreground", false, "run in the foreground (internal, used by -d's re-exec)")
	root.Flags().MarkHidden("foreground")
	root.Flags().IntVar(&portFlag, "port", 0, "listen port (overrides config)")
	root.Flags().IntVar(&capacityFlag, "capacity", 0, "resident record capacity (overrides config)")
	root.Flags().StringVar(&periodFlag, "period", "", "timestamp tick period, e.g. 10s (overrides config)")
	root.Flags().StringVar(&configFlag, "config", "", "path to linelogd.yaml")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	configPath  string
	portSet     bool
	port        int
	capacitySet bool
	capacity    int
	periodSet   bool
	period      string
}

func run(ctx context.Context, opts runOptions) error {
	mgr, err := config.NewManager(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	if opts.portSet {
		cfg.Port = opts.port
	}
	if opts.capacitySet {
		cfg.Capacity = opts.capacity
	}
	if opts.periodSet {
		cfg.TickPeriod = opts.period
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sched, err := schedule.Parse(cfg.TickPeriod)
	if err != nil {
		return fmt.Errorf("parse tick period %q: %w", cfg.TickPeriod, err)
	}

	log := reclog.NewLog(cfg.Capacity)
	tk := ticker.New(sched, log)

	// Port and capacity are frozen once the supervisor has bound the
	// listener and sized the store; only tick_period changes live, and
	// log_level/log_file stay as the logger was initialized above. See
	// internal/config.Manager.Reload.
	mgr.OnReload(func(c config.Config) {
		if newSched, err := schedule.Parse(c.TickPeriod); err != nil {
			logger.Warn("ignoring invalid tick_period from reloaded config", "tick_period", c.TickPeriod, "err", err)
		} else {
			tk.SetSchedule(newSched)
		}
	})
	go mgr.Watch(ctx)

	sup := &supervisor.Supervisor{
		Port:   cfg.Port,
		Log:    log,
		Ticker: tk,
	}

	logger.Info("linelogd starting", "port", cfg.Port, "capacity", cfg.Capacity, "tick_period", cfg.TickPeriod)
	return sup.Run(ctx)
}

// daemonize re-execs the current binary with --foreground set and a
// detached session (Setsid), so the parent can return immediately while the
// child keeps running after the parent's controlling terminal goes away.
func daemonize(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	childArgs := append([]string{"--foreground"}, args...)

	logPath := os.Getenv("LINELOGD_LOG_FILE")
	if logPath == "" {
		logPath = "linelogd.log"
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	child := exec.Command(exe, childArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	if err := os.WriteFile("linelogd.pid", []byte(strconv.Itoa(child.Process.Pid)), 0644); err != nil {
		logger.Warn("could not write pid file", "err", err)
	}
	fmt.Printf("linelogd daemon started (pid %d)\n", child.Process.Pid)
	fmt.Printf("  log: %s\n", logPath)
	return nil
}
