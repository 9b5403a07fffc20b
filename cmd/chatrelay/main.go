// Package main is the CLI entry point for chatrelay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chatrelay/internal/capture"
	"chatrelay/internal/config"
	"chatrelay/internal/control"
	"chatrelay/internal/daemon"
	"chatrelay/internal/dispatch"
	"chatrelay/internal/ocr"
	"chatrelay/internal/window"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Watches a chat window region, OCRs it, and relays new text to a webhook",
	Long: `chatrelay periodically captures a configured on-screen region of a chat
window, extracts its text, and forwards newly-appeared text to a webhook
endpoint. It runs unattended as a background process and coordinates with
an external supervisor through pid/stop/status files on disk.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture-recognize-dispatch loop in the foreground",
	Long: `Runs the relay loop until a stop record appears, a termination signal
arrives, or a fatal error occurs. Configuration is read once at startup from
the env file; edits made while the loop runs take effect on the next start.`,
	RunE: runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay loop as a detached background process",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the relay loop is running",
	Long:  `Reads the status and pid records and reports loop health. The status record is considered stale when its timestamp is older than three heartbeat intervals.`,
	RunE:  runStatus,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request a clean stop of the relay loop",
	Long:  `Creates the stop record. The loop observes it at its next iteration boundary, so stopping can take up to one capture+recognize+dispatch cycle.`,
	RunE:  runStop,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	envPath    string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Path to the KEY=VALUE configuration file")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load(envPath)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := createLogger(cfg.LogDir)
	defer func() { _ = logger.Sync() }()

	engine, err := ocr.NewEngine(cfg.OCRLang, cfg.PageSegMode)
	if err != nil {
		return fmt.Errorf("recognition engine init: %w", err)
	}
	defer engine.Close()

	files := control.NewFiles(
		cfg.PIDFile, cfg.StopFile, cfg.StatusFile, cfg.LogDir,
		cfg.LatestLogMaxChars, cfg.RecentLogMaxLines, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := daemon.New(cfg,
		window.NewLocator(),
		capture.NewGrabber(),
		engine,
		dispatch.NewWebhookSender(cfg.WebhookURL),
		files,
		logger)

	return relay.Run(ctx)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Load(envPath)

	if pid := control.ReadPID(cfg.PIDFile); pid > 0 {
		if alive, _ := process.PidExists(int32(pid)); alive {
			fmt.Printf("chatrelay is already running (pid %d)\n", pid)
			return nil
		}
	}

	pid, err := daemon.StartDetached(envPath)
	if err != nil {
		return fmt.Errorf("failed to start relay process: %w", err)
	}
	fmt.Printf("Started relay process (pid %d)\n", pid)
	fmt.Printf("Watch %s for status updates.\n", cfg.StatusFile)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load(envPath)

	state, ts := control.ReadStatus(cfg.StatusFile)
	pid := control.ReadPID(cfg.PIDFile)

	fmt.Println("\n=== chatrelay Status ===")

	alive := false
	if pid > 0 {
		alive, _ = process.PidExists(int32(pid))
	}

	stale := ts > 0 && time.Since(time.Unix(ts, 0)) > 3*cfg.HeartbeatInterval()

	switch {
	case state == "running" && alive && !stale:
		fmt.Printf("Status: RUNNING (pid %d)\n", pid)
	case state == "running" && (stale || !alive):
		fmt.Println("Status: STALE (process presumed dead)")
	default:
		fmt.Println("Status: STOPPED")
	}

	if ts > 0 {
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(time.Unix(ts, 0)).Round(time.Second))
	}
	fmt.Printf("Window title: %q\n", cfg.WindowTitle)
	fmt.Printf("Poll interval: %.1fs\n", cfg.PollSec)
	fmt.Printf("Logs: %s\n", filepath.Clean(cfg.LogDir))
	fmt.Println("========================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg := config.Load(envPath)

	pid := control.ReadPID(cfg.PIDFile)
	if pid == 0 {
		fmt.Println("No pid record found; the loop does not appear to be running.")
	}

	if err := control.RequestStop(cfg.StopFile); err != nil {
		return fmt.Errorf("failed to write stop record: %w", err)
	}
	fmt.Println("Stop requested.")

	if pid == 0 {
		return nil
	}

	// The loop observes the stop record at its next iteration boundary.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if alive, _ := process.PidExists(int32(pid)); !alive {
			fmt.Println("Relay process exited cleanly.")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Printf("Relay process (pid %d) is still running; it stops at the next poll boundary.\n", pid)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("chatrelay %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	}
}

func createLogger(logDir string) *zap.Logger {
	_ = os.MkdirAll(logDir, 0755)

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(logDir, "chatrelay.log"), "stderr"}
	cfg.ErrorOutputPaths = []string{filepath.Join(logDir, "chatrelay.error.log"), "stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
