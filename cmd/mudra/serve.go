package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trainer API and web UI",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("static", "", "directory with the web UI")
	cmd.Flags().String("db", "", "SQLite database path (\":memory:\" keeps progress in memory)")
	cmd.Flags().Bool("persist", false, "store progress under the XDG data directory")
	cmd.Flags().Bool("camera", false, "detect hands with the local camera instead of browser-pushed frames")
	cmd.Flags().Int("device", 0, "camera device id")
	cmd.Flags().Int("fps", 0, "camera frames per second")
	cmd.Flags().Int("goal", 0, "correct gestures needed to complete a course")
	cmd.Flags().Bool("tray", false, "show a system tray menu")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	useCamera, _ := cmd.Flags().GetBool("camera")
	useTray, _ := cmd.Flags().GetBool("tray")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := app.Config{}
	var pipeline *app.Pipeline
	var push *app.PushFeed
	if useCamera {
		pipeline = newCameraPipeline(cfg)
		appCfg.Feed = pipeline
	} else {
		push = app.NewPushFeed()
		appCfg.Feed = push
	}

	a, st, err := openApp(ctx, cfg, appCfg)
	if err != nil {
		return err
	}
	defer closeStore(st)
	defer a.Close()

	srvCfg := server.Config{
		StaticDir:  findWebDir(cfg.Server.StaticDir),
		Store:      st,
		Catalog:    a.Catalog(),
		Tracker:    a.Tracker(),
		Controller: a.Controller(),
	}
	if pipeline != nil {
		srvCfg.Preview = pipeline
	} else {
		srvCfg.Frames = push
	}
	if srvCfg.StaticDir != "" {
		log.Printf("Serving static files from: %s", srvCfg.StaticDir)
	}

	srv := server.New(srvCfg)
	defer srv.Close()

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s (store %s)", cfg.Server.Addr, st.Path())
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverErr <- err
	}()

	if useTray {
		t := newTray(a, cfg.Server.Addr, stop)
		go func() {
			select {
			case <-ctx.Done():
			case err := <-serverErr:
				serverErr <- err
			}
			t.Quit()
		}()
		t.Run()
	} else {
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			serverErr <- err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := <-serverErr; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newTray wires the tray menu to the controller.
func newTray(a *app.App, addr string, quit func()) *tray.Tray {
	ctl := a.Controller()
	t := tray.New()
	t.Update(ctl.Snapshot())
	ctl.Subscribe(t.Update)

	t.OnPause(func() {
		if err := ctl.Pause(); err != nil {
			log.Printf("pause: %v", err)
		}
	})
	t.OnResume(func() {
		if err := ctl.Resume(); err != nil {
			log.Printf("resume: %v", err)
		}
	})
	t.OnOpen(func() { openBrowser(trainerURL(addr)) })
	t.OnQuit(quit)
	return t
}

func trainerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("open browser: %v", err)
	}
}
