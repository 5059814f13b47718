// Package httpapi exposes the batch pipelines over HTTP. It owns input-shape
// validation and status-code mapping; all lifecycle semantics live in the
// batches package.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd/batches"
	"github.com/ripkitten-co/addressd/normalize"
	"github.com/ripkitten-co/addressd/queue"
)

// ValidationService is the slice of the validation lifecycle controller the
// HTTP layer needs.
type ValidationService interface {
	CreateSync(ctx context.Context, payload []normalize.Record) (uuid.UUID, []batches.ValidationResult, error)
	CreateQueued(ctx context.Context, payload []normalize.Record) (uuid.UUID, error)
	Results(ctx context.Context, batchID uuid.UUID) ([]batches.ValidationResult, error)
	Get(ctx context.Context, batchID uuid.UUID) (*batches.BatchSummary, error)
	List(ctx context.Context, opts batches.ListOptions) ([]batches.BatchSummary, error)
	Delete(ctx context.Context, batchID uuid.UUID) error
	Requeue(ctx context.Context, batchID uuid.UUID) (bool, error)
}

// RecognitionService is the recognition controller surface used over HTTP.
type RecognitionService interface {
	CreateSync(ctx context.Context, payload []normalize.Record) (uuid.UUID, []batches.RecognitionResult, error)
	CreateQueued(ctx context.Context, payload []normalize.Record) (uuid.UUID, error)
	Results(ctx context.Context, batchID uuid.UUID) ([]batches.RecognitionResult, error)
}

type Handler struct {
	validation  ValidationService
	recognition RecognitionService
	dispatcher  queue.Dispatcher
}

func NewHandler(v ValidationService, r RecognitionService, d queue.Dispatcher) *Handler {
	return &Handler{
		validation:  v,
		recognition: r,
		dispatcher:  d,
	}
}

// Routes builds the v1 router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/addresses/validate", h.validateAddresses)
		r.Get("/addresses/validate/{batchID}", h.validationResults)

		r.Get("/validation-batches", h.listValidationBatches)
		r.Get("/validation-batches/{batchID}", h.getValidationBatch)
		r.Delete("/validation-batches/{batchID}", h.deleteValidationBatch)
		r.Post("/validation-batches/{batchID}/requeue", h.requeueValidationBatch)

		r.Put("/addresses/recognize", h.recognizeAddresses)
		r.Get("/addresses/recognize/{recognitionID}", h.recognitionResults)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
