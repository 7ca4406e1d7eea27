package restapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlercampaign"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlerrecipient"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlertag"
	"go.opentelemetry.io/otel"
)

type Config struct {
	AppServiceName   string               `validate:"required"`
	AppVersion       string               `validate:"required"`
	RecipientService recipientsvc.Service `validate:"required"`
	CampaignService  campaignsvc.Service  `validate:"required"`
	Tags             *tagsvc.Engine       `validate:"required"`
}

type DefaultHTTP struct {
	router *chi.Mux
}

func NewHTTPTransport(cfg Config) (*DefaultHTTP, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("http transport cfg error: %w", err)
	}

	// ** Recipient store handler
	handlerRecipient, err := handlerrecipient.NewHandler(handlerrecipient.HandlerConfig{
		RecipientService: cfg.RecipientService,
		CampaignService:  cfg.CampaignService,
	})
	if err != nil {
		return nil, err
	}

	// ** Queue and campaign run handler
	handlerCampaign, err := handlercampaign.NewHandler(handlercampaign.HandlerConfig{
		CampaignService: cfg.CampaignService,
	})
	if err != nil {
		return nil, err
	}

	handlerTag, err := handlertag.NewHandler(handlertag.HandlerConfig{
		Tags:             cfg.Tags,
		RecipientService: cfg.RecipientService,
	})
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	skip := func(r *http.Request) bool {
		switch strings.TrimSpace(path.Clean(r.URL.Path)) {
		case "/health",
			"/ping":
			return true
		}

		return false
	}

	router.Use(middleware.StripSlashes)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	router.Use(func(next http.Handler) http.Handler {
		return tracer.Middleware(tracer.MiddlewareConfig{
			TracerName:     "github.com/yusufsyaifudin/emailer",
			ServiceName:    cfg.AppServiceName,
			SkipFunc:       skip,
			TracerProvider: otel.GetTracerProvider(),    // global tracer provider
			TextPropagator: otel.GetTextMapPropagator(), // use global text map propagator
		}, next)
	})

	// add trace id and also log request response
	router.Use(func(next http.Handler) http.Handler {
		return requestLogger(skip, next)
	})

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := respbuilder.Success(r.Context(), map[string]string{
			"service": cfg.AppServiceName,
			"version": cfg.AppVersion,
			"state":   string(cfg.CampaignService.Status(r.Context()).State),
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	})

	// Resource: recipients
	router.Route("/api/v1/recipients", func(r chi.Router) {
		r.Post("/", handlerRecipient.Ingest())  // replace all recipients with raw text
		r.Get("/", handlerRecipient.List())     // list with sent flag
		r.Delete("/", handlerRecipient.Clear()) // wipe, confirm=true required
	})

	// Resource: checker emails
	router.Route("/api/v1/checker", func(r chi.Router) {
		r.Post("/", handlerRecipient.IngestChecker())
		r.Get("/", handlerRecipient.Checker())
	})

	// Resource: queue
	router.Route("/api/v1/queue", func(r chi.Router) {
		r.Get("/", handlerCampaign.Queue())
		r.Put("/", handlerCampaign.SetQueue())
		r.Delete("/", handlerCampaign.ClearQueue())
		r.Post("/unsent", handlerCampaign.LoadUnsent())
		r.Post("/checker", handlerCampaign.LoadChecker())
	})

	// Resource: campaign run
	router.Route("/api/v1/campaign", func(r chi.Router) {
		r.Post("/start", handlerCampaign.Start())
		r.Post("/stop", handlerCampaign.Stop())
		r.Get("/status", handlerCampaign.Status())
	})

	router.Get("/api/v1/tags", handlerTag.Tags())
	router.Get("/api/v1/names/random", handlerTag.RandomName())

	instance := &DefaultHTTP{
		router: router,
	}

	return instance, nil
}

// Server .
func (a *DefaultHTTP) Server() http.Handler {
	return a.router
}
