package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vango-dev/state/internal/chat"
	"github.com/vango-dev/state/internal/config"
	"github.com/vango-dev/state/internal/errors"
	"github.com/vango-dev/state/internal/todo"
	"github.com/vango-dev/state/pkg/instrument"
	"github.com/vango-dev/state/pkg/live"
	"github.com/vango-dev/state/pkg/persist"
	"github.com/vango-dev/state/pkg/state"
)

func serveCmd(opts *options) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stores over HTTP and WebSocket",
		Long: `Serve the todo list and the chat room.

Routes:
  GET  /healthz
  GET  /todos          current list
  PUT  /todos          replace the list
  POST /todos/reset    reload the list from storage
  GET  /todos/ws       live updates
  POST /chat/join, POST /chat/messages, DELETE /chat/members/{id}
  GET  /chat/history/ws, GET /chat/members/ws
  GET  /metrics        when metrics are enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			return run(ctx, cmd, cfg, srv, logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "Host to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on")

	return cmd
}

// run listens until ctx is done, then shuts down within the configured
// timeout.
func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config, srv *server, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return errors.New("E402").
			WithDetailf("could not listen on %s", cfg.Address()).
			WithSuggestion("Pick another port with --port").
			Wrap(err)
	}

	httpServer := &http.Server{Handler: srv}
	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	out := cmd.OutOrStdout()
	success(out, "Serving on http://%s", ln.Addr())
	info(out, "Storage: %s", cfg.Storage.Driver)
	if cfg.Metrics.Enabled {
		info(out, "Metrics: http://%s%s", ln.Addr(), cfg.Metrics.Path)
	}

	select {
	case err := <-errc:
		return errors.New("E402").Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout())
	srv.disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.New("E402").WithDetail("graceful shutdown did not finish").Wrap(err)
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.New("E402").Wrap(err)
	}
	return nil
}

// server is the statectl HTTP surface and the stores behind it.
type server struct {
	http.Handler

	todos *state.Leaf[[]todo.Record]
	room  *chat.Room

	handlers []interface{ Close() }
	cleanup  []func()
}

// disconnect closes every live connection.
func (s *server) disconnect() {
	for _, h := range s.handlers {
		h.Close()
	}
}

// Close stops store watchers and releases storage.
func (s *server) Close() {
	s.disconnect()
	for _, fn := range slices.Backward(s.cleanup) {
		fn()
	}
}

// newServer opens storage and wires the stores to their routes.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server, error) {
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &server{}
	s.cleanup = append(s.cleanup, func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	})

	var metrics *instrument.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = instrument.NewMetrics(
			instrument.WithNamespace(cfg.Metrics.Namespace),
			instrument.WithRegistry(reg),
		)
	}

	todos, err := todo.OpenWith(ctx, backend, todoInit(cfg, backend),
		state.WithPersist(todoHook(cfg, backend, metrics)),
		state.WithLogger[[]todo.Record](logger),
	)
	if err != nil {
		s.Close()
		return nil, errors.New("E202").Wrap(err)
	}
	s.todos = todos
	s.room = chat.NewRoom()

	if metrics != nil {
		s.cleanup = append(s.cleanup,
			instrument.Watch[[]todo.Record](metrics, todo.StoreKey, todos),
			instrument.Watch(metrics, "chat_history", s.room.History()),
			instrument.Watch(metrics, "chat_members", s.room.Members()),
		)
	}

	liveOpts := []live.Option{
		live.WithLogger(logger),
		live.WithCheckOrigin(originChecker(cfg.Server.AllowedOrigins)),
	}
	if metrics != nil {
		liveOpts = append(liveOpts, live.WithMetrics(metrics))
	}
	readOnly := append(slices.Clone(liveOpts), live.ReadOnly())

	todoHandler := live.NewHandler[[]todo.Record](todo.StoreKey, todos, liveOpts...)
	historyHandler := live.NewHandler("chat_history", s.room.History(), readOnly...)
	membersHandler := live.NewHandler("chat_members", s.room.Members(), readOnly...)
	s.handlers = append(s.handlers, todoHandler, historyHandler, membersHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Mount("/todos", todoHandler.Routes())
	r.Route("/chat", func(r chi.Router) {
		s.room.Mount(r)
		r.Mount("/history", historyHandler.Routes())
		r.Mount("/members", membersHandler.Routes())
	})
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	s.Handler = r
	return s, nil
}

// todoHook builds the todo persistence chain: the backend writer, then
// tracing and metrics when enabled.
func todoHook(cfg *config.Config, backend persist.Backend, metrics *instrument.Metrics) state.PersistFunc[[]todo.Record] {
	hook := persist.Writer[[]todo.Record](backend, todo.StoreKey)
	if cfg.Tracing.Enabled {
		hook = instrument.TracePersist(todo.StoreKey, hook,
			instrument.WithTracerName(cfg.Tracing.TracerName))
	}
	if metrics != nil {
		hook = instrument.Persist(metrics, todo.StoreKey, hook)
	}
	return hook
}

// todoInit builds the todo initializer, traced when tracing is enabled.
func todoInit(cfg *config.Config, backend persist.Backend) state.InitFunc[[]todo.Record] {
	load := todo.Loader(backend)
	if cfg.Tracing.Enabled {
		load = instrument.TraceInit(todo.StoreKey, load,
			instrument.WithTracerName(cfg.Tracing.TracerName))
	}
	return load
}

// originChecker allows same-host origins plus the configured ones. "*"
// allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
