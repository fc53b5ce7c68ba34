// Package main is the entry point for the taskdeckd daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskdeck-io/taskdeck/internal/config"
	"github.com/taskdeck-io/taskdeck/internal/daemon"
	"github.com/taskdeck-io/taskdeck/internal/daemon/tray"
	"github.com/taskdeck-io/taskdeck/internal/models"
)

func main() {
	foreground := flag.Bool("foreground", false, "Run in foreground (for development)")
	port := flag.Int("port", 0, "Port to listen on (0 for dynamic allocation)")
	webPort := flag.Int("web-port", 0, "grpc-web port for browser surfaces (0 disables)")
	flag.Parse()

	log.SetPrefix("[taskdeckd] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := config.EnsureGlobalDir(); err != nil {
		log.Fatalf("Failed to create global directory: %v", err)
	}

	// Check if daemon is already running
	running, info, err := config.IsDaemonRunning()
	if err != nil {
		log.Fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		log.Fatalf("Daemon already running on port %d (PID %d)", info.Port, info.PID)
	}

	opts := daemon.Options{Port: *port, WebPort: *webPort}

	if *foreground {
		log.Println("Running in foreground mode (no system tray)")
		runForeground(opts)
	} else {
		log.Println("Running in background mode (with system tray)")
		runWithTray(opts)
	}
}

// runForeground runs the daemon without a system tray, blocking on signals.
func runForeground(opts daemon.Options) {
	d, err := daemon.New(opts)
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	daemonInfo := models.NewDaemonInfo("localhost", d.Port(), os.Getpid())
	if err := config.SaveDaemonInfo(daemonInfo); err != nil {
		log.Fatalf("Failed to write daemon info: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh, err := d.Start(ctx)
	if err != nil {
		log.Fatalf("Failed to start daemon: %v", err)
	}

	log.Printf("Daemon started on port %d (PID %d)", d.Port(), os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	}

	d.Stop()

	if err := config.RemoveDaemonInfo(); err != nil {
		log.Printf("Failed to remove daemon info: %v", err)
	}

	fmt.Println("Daemon stopped")
}

// runWithTray runs the daemon with a system tray icon on the main goroutine.
// systray.Run must occupy the main goroutine on macOS (Cocoa requirement).
func runWithTray(opts daemon.Options) {
	var d *daemon.Daemon

	onStart := func() {
		var err error
		d, err = daemon.New(opts)
		if err != nil {
			log.Fatalf("Failed to create daemon: %v", err)
		}
		d.OnShutdown(tray.Quit)

		daemonInfo := models.NewDaemonInfo("localhost", d.Port(), os.Getpid())
		if err := config.SaveDaemonInfo(daemonInfo); err != nil {
			log.Fatalf("Failed to write daemon info: %v", err)
		}

		errCh, err := d.Start(context.Background())
		if err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}

		log.Printf("Daemon started on port %d (PID %d)", d.Port(), os.Getpid())

		go func() {
			if err := <-errCh; err != nil {
				log.Printf("Server error: %v", err)
				tray.Quit()
			}
		}()

		// Quit the tray on SIGINT/SIGTERM.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			log.Printf("Received signal %v, shutting down...", sig)
			tray.Quit()
		}()
	}

	onExit := func() {
		if d != nil {
			d.Stop()
		}

		if err := config.RemoveDaemonInfo(); err != nil {
			log.Printf("Failed to remove daemon info: %v", err)
		}

		fmt.Println("Daemon stopped")
	}

	// The tray needs a DaemonState before the daemon exists, so a lazy
	// wrapper defers to the real TrayState once onStart has run.
	lazyState := &lazyDaemonState{get: func() *daemon.Daemon { return d }}

	// This blocks the main goroutine until tray exits.
	tray.Run(lazyState, onStart, onExit)
}

// lazyDaemonState wraps daemon.TrayState with lazy initialization. The
// daemon is nil at tray startup and created inside onStart.
type lazyDaemonState struct {
	get func() *daemon.Daemon
}

func (l *lazyDaemonState) Port() int {
	if d := l.get(); d != nil {
		return daemon.NewTrayState(d).Port()
	}
	return 0
}

func (l *lazyDaemonState) ActiveTheme() string {
	if d := l.get(); d != nil {
		return daemon.NewTrayState(d).ActiveTheme()
	}
	return ""
}

func (l *lazyDaemonState) ToggleTimer() {
	if d := l.get(); d != nil {
		daemon.NewTrayState(d).ToggleTimer()
	}
}

func (l *lazyDaemonState) NextTask() {
	if d := l.get(); d != nil {
		daemon.NewTrayState(d).NextTask()
	}
}

func (l *lazyDaemonState) CompleteTask() {
	if d := l.get(); d != nil {
		daemon.NewTrayState(d).CompleteTask()
	}
}

func (l *lazyDaemonState) RequestShutdown() {
	if d := l.get(); d != nil {
		daemon.NewTrayState(d).RequestShutdown()
	}
}
