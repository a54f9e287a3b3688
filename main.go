package main

import (
	"log/slog"
	"net/http"
	"os"

	"safechat.app/config"
	"safechat.app/logging"
	"safechat.app/push"
	"safechat.app/server"
	"safechat.app/spatial"
	"safechat.app/store"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var st store.Store
	st, err = store.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Warn("sqlite unavailable, falling back to in-memory store", "path", cfg.DBPath, "error", err)
		st = store.NewMemory()
	}
	defer st.Close()

	var pm *push.Manager
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pm = push.NewManager("subscriptions.json", cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	}

	srv := server.New(cfg, st, spatial.New(), pm)

	slog.Info("listening", "address", cfg.Address, "resolver", cfg.ResolverMode)
	if err := http.ListenAndServe(cfg.Address, srv.Router()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
