package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"leafdb/config"
	"leafdb/executor"
	"leafdb/server"
	"leafdb/storage"
	"leafdb/version"
)

func main() {
	cfg := config.Parse()
	if cfg.ShowVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("%s starting", version.String())

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("opened %s: %d tables, %s snapshot store", cfg.DataDir, db.NumTables(), cfg.SnapshotStore)

	srv := server.New(cfg, executor.New(db))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sig := <-sigCh
		log.Printf("received %v, shutting down...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		db.Close()
		log.Fatal(err)
	}
	<-stopped
	if err := db.Close(); err != nil {
		log.Printf("close database: %v", err)
	}
}

// openDatabase opens the data directory with the configured snapshot
// store. Pebble keeps its LSM in a subdirectory of the data directory;
// storage.Open closes it again if the database fails to open.
func openDatabase(cfg *config.Config) (*storage.Database, error) {
	opts := storage.Options{Order: cfg.Order, Compress: cfg.Compress}
	if cfg.SnapshotStore == config.StorePebble {
		store, err := storage.OpenPebbleSnapshotStore(filepath.Join(cfg.DataDir, "indexes.pebble"))
		if err != nil {
			return nil, fmt.Errorf("open pebble snapshot store: %w", err)
		}
		opts.Store = store
	}
	return storage.Open(cfg.DataDir, opts)
}
