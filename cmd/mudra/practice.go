package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/session"
)

func newPracticeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice <course>",
		Short: "Practice one course with the local camera",
		Args:  cobra.ExactArgs(1),
		RunE:  runPracticeCmd,
	}
	cmd.Flags().String("db", "", "SQLite database path")
	cmd.Flags().Bool("persist", false, "store progress under the XDG data directory")
	cmd.Flags().Int("device", 0, "camera device id")
	cmd.Flags().Int("fps", 0, "camera frames per second")
	cmd.Flags().Int("goal", 0, "correct gestures needed to complete a course")
	return cmd
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, st, err := openApp(ctx, cfg, app.Config{Feed: newCameraPipeline(cfg)})
	if err != nil {
		return err
	}
	defer closeStore(st)
	defer a.Close()

	crs, err := a.Catalog().Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Course %s: %s", crs.ID, crs.Instruction)))

	ctl := a.Controller()
	finished := make(chan session.Snapshot, 1)
	var mu sync.Mutex
	var last string
	unsubscribe := ctl.Subscribe(func(s session.Snapshot) {
		line := renderSnapshot(s)
		mu.Lock()
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		mu.Unlock()

		if s.State.Terminal() {
			select {
			case finished <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := ctl.Start(ctx, crs.ID); err != nil {
		fmt.Fprintln(out, renderSummary(ctl.Snapshot()))
		return err
	}

	select {
	case s := <-finished:
		fmt.Fprintln(out, renderSummary(s))
	case <-ctx.Done():
		fmt.Fprintln(out, renderSummary(abandon(ctl)))
	}
	return nil
}

// abandon fails a session that still holds the camera and returns the final
// snapshot.
func abandon(ctl *session.Controller) session.Snapshot {
	if ctl.Snapshot().State.Active() {
		if err := ctl.Stop(false); err != nil {
			log.Printf("stop: %v", err)
		}
	}
	return ctl.Snapshot()
}
