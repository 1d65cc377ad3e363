package cmd

import (
	"fmt"
	"os"

	vtconfig "vtcode/pkg/engine/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize config.toml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved config (defaults merged with config.toml)",
	Run:   runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.toml with default values under $VTCODE_HOME",
	Run:   runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := vtconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config path:            %s\n", vtconfig.Path())
	fmt.Printf("tool_timeout:           %s\n", cfg.ToolTimeout)
	fmt.Printf("max_steps:              %d\n", cfg.MaxSteps)
	fmt.Printf("max_tool_output_bytes:  %d\n", cfg.MaxToolOutputBytes)
	fmt.Printf("snapshot.retention_count: %d\n", cfg.Snapshot.RetentionCount)
	fmt.Printf("snapshot.retention_age:   %s\n", cfg.Snapshot.RetentionAge)
	fmt.Printf("pty.output_cap_bytes:     %d\n", cfg.Pty.OutputCapBytes)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path, err := vtconfig.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config.toml ready at %s\n", path)
}
