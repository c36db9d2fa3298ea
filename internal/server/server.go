package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Deepayon/LocalSeva/internal/dispatch"
	"github.com/Deepayon/LocalSeva/internal/identity"
	"github.com/Deepayon/LocalSeva/internal/server/middleware"
	"github.com/Deepayon/LocalSeva/pkg/config"
	"github.com/Deepayon/LocalSeva/pkg/presence"
	"github.com/Deepayon/LocalSeva/pkg/rooms"
	"github.com/Deepayon/LocalSeva/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type App struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	wg         sync.WaitGroup
	http       *http.Server
	config     *config.Config
	started    time.Time

	ctx context.Context
}

// NewApp wires the realtime stack: presence registry, room router and
// dispatcher are constructed here and injected, never package globals.
func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, validator identity.Validator) *App {
	registry := presence.NewRegistry(logger)
	roomRouter := rooms.NewRouter(logger)
	dispatcher := dispatch.New(logger, validator, registry, roomRouter, cfg.Auth.HandshakeTimeout)

	app := &App{
		logger:     logger,
		dispatcher: dispatcher,
		config:     cfg,
		started:    time.Now(),
		ctx:        rootCtx,
	}

	connCycler := func(ip string) {
		if oldest, found := dispatcher.OldestByIP(ip); found {
			logger.Info("Cycling connection: closing oldest", slog.String("ip", ip), slog.String("connID", oldest.ID().String()))
			oldest.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				dispatcher.CountByIP,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	mux.HandleFunc("/healthz", app.healthHandler)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.dispatcher.HandleMessage,
		nil,
		connLogger,
	)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Releasing connection state", slog.String("connID", id.String()))
		a.dispatcher.Detach(id)
	})

	// Track the connection (and greet it) before the pumps start so the
	// first inbound event always finds it.
	a.dispatcher.Attach(conn, reqMeta.IP)
	conn.Run()
	<-conn.Done()
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := a.dispatcher.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"uptimeSeconds":   int(time.Since(a.started).Seconds()),
		"connections":     stats.Connections,
		"registeredUsers": stats.RegisteredUsers,
	})
}

// Shutdown runs the graceful shutdown sequence: stop accepting
// upgrades, close every live connection, wait for their goroutines.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Closing all active connections...")
	a.dispatcher.CloseAll()

	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
