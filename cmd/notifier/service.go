package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/locationup/locationup-go/internal/panel"
	"github.com/locationup/locationup-go/internal/session"
	"github.com/locationup/locationup-go/internal/stream"
	"github.com/locationup/locationup-go/pkg/config"
	"github.com/locationup/locationup-go/pkg/logger"
	"github.com/locationup/locationup-go/pkg/redis"
)

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Sessions *session.Manager
	Stream   *stream.Client
	Panel    *panel.Store
	Registry *prometheus.Registry
}

// Service runs the notification agent: it keeps a live stream subscription
// feeding the panel store and serves health/metrics on the ops port.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	redis    *redis.Client
	sessions *session.Manager
	stream   *stream.Client
	panel    *panel.Store
	registry *prometheus.Registry
	server   *http.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if params.Stream == nil {
		return nil, errors.New("stream client is required")
	}
	if params.Panel == nil {
		return nil, errors.New("panel store is required")
	}
	if params.Registry == nil {
		return nil, errors.New("metrics registry is required")
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		redis:    params.Redis,
		sessions: params.Sessions,
		stream:   params.Stream,
		panel:    params.Panel,
		registry: params.Registry,
	}, nil
}

// resolveUserID prefers the cached session's user over the configured one.
func (s *Service) resolveUserID(ctx context.Context) (string, error) {
	sess, err := s.sessions.Current(ctx)
	switch {
	case err == nil:
		return sess.UserID, nil
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		if s.cfg.Stream.UserID != "" {
			return s.cfg.Stream.UserID, nil
		}
		return "", errors.New("no cached session and no configured stream user")
	default:
		return "", err
	}
}

func (s *Service) opsHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := s.redis.Ping(req.Context()); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Service) Run(ctx context.Context) error {
	userID, err := s.resolveUserID(ctx)
	if err != nil {
		return err
	}
	ctx = s.logg.WithUserID(ctx, userID)

	if err := s.panel.Activate(ctx, userID); err != nil {
		s.logg.Warn(ctx, "initial panel fetch failed, starting empty")
	}

	s.server = &http.Server{Addr: ":" + s.cfg.App.Port, Handler: s.opsHandler()}
	serverErr := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sub, err := s.stream.Connect(userID)
	if err != nil {
		return err
	}
	defer sub.Close()
	s.logg.Info(ctx, "notification stream connected")

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "notifier context canceled")
			return ctx.Err()
		case err := <-serverErr:
			s.logg.Error(ctx, "ops server stopped unexpectedly", err)
			return err
		case record, ok := <-sub.Events():
			if !ok {
				continue
			}
			s.panel.Apply(record)
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				s.logg.Error(ctx, "notification stream closed", err)
				return err
			}
			return nil
		}
	}
}

// Close flushes pending panel writes and releases shared clients.
func (s *Service) Close() error {
	s.stream.Disconnect(true)
	s.panel.Wait()

	var errs error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = multierr.Append(errs, s.server.Shutdown(shutdownCtx))
	}
	errs = multierr.Append(errs, s.redis.Close())
	return errs
}
