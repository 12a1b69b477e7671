package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "classmate",
	Short: "classmate - timetable and attendance tracker",
	Long: `classmate turns a scanned timetable into a weekly schedule, tracks attendance
per subject and keeps a backlog of study tasks that can be placed in free slots.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	userID     string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "API server address (default from config listen)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "User whose schedule to operate on")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.classmate/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(subjectCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultUser() string {
	if u := os.Getenv("CLASSMATE_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// loadConfig reads --config, or the home config when the flag is unset.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfigFromHome()
}

// resolveAPI returns --api, falling back to the configured listen address.
func resolveAPI() string {
	if apiAddr != "" {
		return apiAddr
	}
	listen := config.DefaultConfig().Listen
	if cfg, err := loadConfig(); err == nil {
		listen = cfg.Listen
	}
	return "http://" + listen
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
