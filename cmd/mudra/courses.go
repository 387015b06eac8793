package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
)

func newCoursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List courses with saved progress",
		Args:  cobra.NoArgs,
		RunE:  runCoursesCmd,
	}
	cmd.Flags().String("db", "", "SQLite database path")
	cmd.Flags().Bool("persist", false, "read progress from the XDG data directory")
	cmd.Flags().Int("goal", 0, "correct gestures needed to complete a course")
	cmd.Flags().Int("attempts", 0, "also show the last N attempts")
	return cmd
}

func runCoursesCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, st, err := openApp(cmd.Context(), cfg, app.Config{})
	if err != nil {
		return err
	}
	defer closeStore(st)
	defer a.Close()

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, renderCourses(a.Catalog().List(), a.Tracker().Get)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	limit, _ := cmd.Flags().GetInt("attempts")
	if limit <= 0 {
		return nil
	}
	attempts, err := st.Attempts().List(cmd.Context(), "", limit)
	if err != nil {
		return fmt.Errorf("failed to list attempts: %w", err)
	}
	if _, err := fmt.Fprintln(out, renderAttempts(attempts)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
