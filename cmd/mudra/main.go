// Package main provides the CLI entrypoint for mudra.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

var configPath string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mudra",
		Short:        "Hand-sign vowel trainer",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the TOML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCoursesCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig reads the config file and environment, then applies any flags
// set explicitly on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringFlag(cmd, "addr", &cfg.Server.Addr)
	applyStringFlag(cmd, "static", &cfg.Server.StaticDir)
	applyStringFlag(cmd, "db", &cfg.Store.Path)
	applyIntFlag(cmd, "device", &cfg.Camera.Device)
	applyIntFlag(cmd, "fps", &cfg.Camera.FPS)
	applyIntFlag(cmd, "goal", &cfg.Training.Goal)

	if persist, _ := cmd.Flags().GetBool("persist"); persist && cfg.Store.Path == store.MemoryPath {
		cfg.Store.Path = config.DefaultDBPath()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyStringFlag(cmd *cobra.Command, name string, target *string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	if v, err := cmd.Flags().GetString(name); err == nil {
		*target = v
	}
}

func applyIntFlag(cmd *cobra.Command, name string, target *int) {
	if !cmd.Flags().Changed(name) {
		return
	}
	if v, err := cmd.Flags().GetInt(name); err == nil {
		*target = v
	}
}

// openApp opens the store and builds the application around feed.
func openApp(ctx context.Context, cfg config.Config, feed app.Config) (*app.App, *store.Store, error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}

	feed.Store = st
	feed.Catalog = course.Builtin(cfg.Training.Goal)
	feed.Timing = cfg.Timing()

	a, err := app.New(ctx, feed)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return a, st, nil
}

// newCameraPipeline builds the local camera feed from cfg.
func newCameraPipeline(cfg config.Config) *app.Pipeline {
	return app.NewPipeline(app.PipelineConfig{
		Camera:      capture.NewCamera(cfg.Camera.Device),
		NewDetector: detector.NewMediaPipe,
		Detector:    cfg.DetectorOptions(),
		FPS:         cfg.Camera.FPS,
	})
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		log.Printf("failed to close db: %v", err)
	}
}

// findWebDir returns dir when it exists, otherwise the first web directory
// found in common locations, or "".
func findWebDir(dir string) string {
	candidates := []string{dir, "web", "../web", "../../web", filepath.Join(config.XDGDataHome(), config.AppName, "web")}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
