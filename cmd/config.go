package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/calidris/movetrack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage movetrack configuration",
	Long: `Manage the config.json file in the current directory.

config init — create a config.json with default values
config get  — print the resolved configuration
config set  — update one key in config.json`,
}

// ─── config init ──────────────────────────────────────────────────────────────

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config.json with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultConfigFile)
		}
		if err := config.WriteFile(config.DefaultConfigFile, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", config.DefaultConfigFile)
		return nil
	},
}

// ─── config get ───────────────────────────────────────────────────────────────

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		cfg := deps.Config

		source := cfg.ConfigPath
		if source == "" {
			source = "(defaults)"
		}
		printKVTable(cmd.OutOrStdout(), [][2]string{
			{"data_dir", cfg.DataDir},
			{"figures_dir", cfg.FiguresDir},
			{"reports_dir", cfg.ReportsDir},
			{"db_path", cfg.DBPath},
			{"default_format", cfg.Format},
			{"timeout", cfg.Timeout.String()},
			{"rate", fmt.Sprintf("%g", cfg.Rate)},
			{"chunk_size", fmt.Sprintf("%d", cfg.ChunkSize)},
			{"seed", fmt.Sprintf("%d", cfg.Seed)},
			{"clusters", fmt.Sprintf("%d", cfg.Clusters)},
			{"bins", fmt.Sprintf("%d", cfg.Bins)},
			{"source", source},
		})
		return nil
	},
}

// ─── config set ───────────────────────────────────────────────────────────────

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one key in config.json",
	Example: `  movetrack config set data_dir /srv/tracking
  movetrack config set clusters 8
  movetrack config set timeout 2m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		var f config.File
		if data, err := os.ReadFile(config.DefaultConfigFile); err == nil {
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("parsing %s: %w", config.DefaultConfigFile, err)
			}
		} else if os.IsNotExist(err) {
			f = config.Template()
		} else {
			return err
		}

		switch key {
		case "data_dir":
			f.DataDir = value
		case "figures_dir":
			f.FiguresDir = value
		case "reports_dir":
			f.ReportsDir = value
		case "db_path":
			f.DBPath = value
		case "default_format":
			f.DefaultFormat = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout %q: %w", value, err)
			}
			f.Timeout = value
		case "rate":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid rate %q: expected a positive number", value)
			}
			f.Rate = v
		case "chunk_size", "clusters", "bins", "seed":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: expected an integer", key, value)
			}
			switch key {
			case "chunk_size":
				f.ChunkSize = int(v)
			case "clusters":
				f.Clusters = int(v)
			case "bins":
				f.Bins = int(v)
			case "seed":
				f.Seed = v
			}
		default:
			return fmt.Errorf("unknown config key %q", key)
		}

		if err := config.WriteFile(config.DefaultConfigFile, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", key, value)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false,
		"overwrite an existing config.json")
}
