package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	roomSweepInterval = 5 * time.Minute
	roomIdleTimeout   = 5 * time.Minute
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "../client", "Path to client directory")
	dbPath := flag.String("db", "openroad.db", "Path to SQLite database (empty disables accounts)")
	logPath := flag.String("log", "", "Log file path (rotated; empty for stderr only)")
	publicURL := flag.String("public-url", "http://localhost:8080", "Public URL encoded in the join QR")
	flag.Parse()

	InitLogger(*logPath)
	defer SyncLogger()

	var db *DB
	if *dbPath != "" {
		var err error
		db, err = OpenDB(*dbPath)
		if err != nil {
			Log.Fatalw("open database", "path", *dbPath, "err", err)
		}
		defer db.Close()
	}

	hub := NewHub(db)
	go hub.Run()

	// Background sweep of idle rooms, independent of any connection.
	go func() {
		ticker := time.NewTicker(roomSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := hub.registry.CleanupInactiveRooms(roomIdleTimeout); n > 0 {
				Log.Infow("cleaned up inactive rooms", "count", n)
			}
		}
	}()

	mux := SetupRoutes(hub, *clientDir, *publicURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		Log.Infow("server starting", "addr", *addr, "client", *clientDir,
			"maxPlayersPerRoom", maxPlayersPerRoom)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			Log.Fatalw("listen", "err", err)
		}
	}()

	<-stop
	Log.Info("shutting down")
	server.Close()
}
