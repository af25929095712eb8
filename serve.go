package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/vipnode/peerrpc/kvstore"
	badgerStore "github.com/vipnode/peerrpc/kvstore/badger"
	"github.com/vipnode/peerrpc/peer/ws/gorilla"
	"golang.org/x/sync/errgroup"
)

// findDataDir returns a valid data dir, will create it if it doesn't
// exist.
func findDataDir(overridePath string) (string, error) {
	path := overridePath
	if path == "" {
		path = xdg.New("peerrpc", "kvstore").DataHome()
	}
	err := os.MkdirAll(path, 0700)
	return path, err
}

func openStore(driver string, dataDir string) (kvstore.Store, error) {
	switch driver {
	case "memory":
		return kvstore.NewMemoryStore(), nil
	case "persist":
		fallthrough
	case "badger":
		dir, err := findDataDir(dataDir)
		if err != nil {
			return nil, err
		}
		s, err := badgerStore.OpenDir(dir)
		if err != nil {
			return nil, ErrExplain{err, "Failed to open the badger database. Make sure no other peerrpc server is using the same --datadir."}
		}
		logger.Infof("Persistent store using badger backend: %s", dir)
		return s, nil
	}
	return nil, errors.New("storage driver not implemented")
}

func newServer(store kvstore.Store, allowOrigin string, debugLog bool) *server {
	handler := &server{
		ws:       &gorilla.Upgrader{},
		service:  kvstore.NewService(store),
		header:   http.Header{},
		debugLog: debugLog,
	}
	if allowOrigin != "" {
		handler.header.Set("Access-Control-Allow-Origin", allowOrigin)
	}
	return handler
}

func runServe(options Options) error {
	store, err := openStore(options.Serve.Store, options.Serve.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &http.Server{
		Addr:    options.Serve.Bind,
		Handler: newServer(store, options.Serve.AllowOrigin, len(options.Verbose) >= len(logLevels)-1),
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.Infof("Starting peerrpc (version %s), listening on: ws://%s", Version, options.Serve.Bind)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Shutting down...")
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
