package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nithindas-k/lazydraft/internal/ai"
	"github.com/nithindas-k/lazydraft/internal/auth"
	"github.com/nithindas-k/lazydraft/internal/config"
	"github.com/nithindas-k/lazydraft/internal/engine"
	"github.com/nithindas-k/lazydraft/internal/metrics"
	"github.com/nithindas-k/lazydraft/internal/repository"
	apptls "github.com/nithindas-k/lazydraft/internal/tls"
)

// Deps carries everything the HTTP layer needs
type Deps struct {
	Engine    *engine.Engine
	AI        *ai.Client
	Google    *auth.GoogleProvider
	Users     *repository.UserRepository
	Sessions  *repository.SessionRepository
	Messages  *repository.MessageRepository
	Templates *repository.TemplateRepository
	Recurring *repository.RecurringRepository
	Metrics   *metrics.Metrics
}

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	http   *http.Server
}

func NewServer(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	h := &Handlers{
		cfg:       cfg,
		logger:    logger,
		engine:    deps.Engine,
		ai:        deps.AI,
		google:    deps.Google,
		users:     deps.Users,
		sessions:  deps.Sessions,
		messages:  deps.Messages,
		templates: deps.Templates,
		recurring: deps.Recurring,
	}

	s := &Server{cfg: cfg, logger: logger}
	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.routes(h, deps.Metrics),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(h *Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger, m))
	r.Use(chimw.Recoverer)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Public: pixels load from recipients' mail clients.
	r.Get("/track/open", h.TrackOpen)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Post("/logout", h.Logout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/me", h.Me)

		r.Route("/mails", func(r chi.Router) {
			r.Post("/", h.ComposeMail)
			r.Get("/", h.ListMails)
			r.Get("/{id}", h.GetMail)
			r.Delete("/{id}", h.DeleteMail)
			r.Post("/{id}/resend", h.ResendMail)
			r.Post("/{id}/replied", h.MarkMailReplied)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Post("/", h.CreateRecurring)
			r.Get("/", h.ListRecurring)
			r.Get("/{id}", h.GetRecurring)
			r.Put("/{id}", h.UpdateRecurring)
			r.Delete("/{id}", h.DeleteRecurring)
			r.Post("/{id}/toggle", h.ToggleRecurring)
			r.Post("/{id}/run", h.RunRecurring)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.CreateTemplate)
			r.Get("/", h.ListTemplates)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/parse", h.ParseDraft)
			r.Post("/subject", h.SuggestSubject)
			r.Post("/reply", h.GenerateReply)
		})
	})

	return r
}

// Run serves until the context is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	tlsCfg, challenge, err := apptls.Configure(&s.cfg.Server.TLS)
	if err != nil {
		return err
	}
	s.http.TLSConfig = tlsCfg

	var challengeSrv *http.Server
	if challenge != nil {
		challengeSrv = &http.Server{Addr: ":80", Handler: challenge}
		go func() {
			s.logger.Info("starting ACME challenge listener", "addr", challengeSrv.Addr)
			if err := challengeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("challenge listener failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.http.Addr, "tls", tlsCfg != nil)
		if tlsCfg != nil {
			errCh <- s.http.ListenAndServeTLS("", "")
		} else {
			errCh <- s.http.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if challengeSrv != nil {
			challengeSrv.Shutdown(shutdownCtx)
		}
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
		return nil
	}
}
