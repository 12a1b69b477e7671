package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

var tuiTarget float64

func init() {
	tuiCmd.Flags().Float64Var(&tuiTarget, "target", 0, "Attendance target percentage (default from daemon config)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	addr := resolveAPI()

	if !isDaemonRunning(addr) {
		fmt.Println("⚡ classmate daemon not running. Starting background service...")
		if err := startDaemon(addr); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	app := tui.New(addr, userID, tuiTarget)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning(addr string) bool {
	health, err := checkHealth(addr)
	return err == nil && health.OK
}

func startDaemon(addr string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	child := exec.Command(exe, args...)
	configureDaemonProc(child)

	// The daemon outlives this process; its log goes next to the database.
	logFile, err := openDaemonLog()
	if err != nil {
		return err
	}
	defer logFile.Close()
	child.Stdout = logFile
	child.Stderr = logFile

	if err := child.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for daemon...")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if isDaemonRunning(addr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s (see %s)", addr, logFile.Name())
}

func openDaemonLog() (*os.File, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(cfg.DB)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(filepath.Join(dir, "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
