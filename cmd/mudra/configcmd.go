package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
	cmd.Flags().Bool("init", false, "write the default config file if it does not exist")
	return cmd
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	if initFile, _ := cmd.Flags().GetBool("init"); initFile {
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return cfg.Write(cmd.OutOrStdout())
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# mudra configuration\n# Environment variables (MUDRA_*) and CLI flags override these values.\n\n")
	if err := config.Default().Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
