package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd"
	"github.com/ripkitten-co/addressd/batches"
)

const (
	headerValidationBatchID = "X-Validation-Batch-Id"
	headerRecognitionID     = "X-Recognition-Id"
)

func (h *Handler) validateAddresses(w http.ResponseWriter, r *http.Request) {
	recs, err := decodeRecords(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAddressRecords(recs); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	if isAsync(r) {
		id, err := h.validation.CreateQueued(ctx, recs)
		if err != nil {
			serverError(w, "create queued batch", err)
			return
		}
		if err := h.dispatcher.Dispatch(ctx, batches.ValidationPipeline{}.JobName(), id); err != nil {
			serverError(w, "dispatch batch", err)
			return
		}
		w.Header().Set(headerValidationBatchID, id.String())
		respondJSON(w, http.StatusAccepted, []batches.ValidationResult{})
		return
	}

	id, results, err := h.validation.CreateSync(ctx, recs)
	if err != nil {
		serverError(w, "validate batch", err)
		return
	}
	w.Header().Set(headerValidationBatchID, id.String())
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) validationResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}

	results, err := h.validation.Results(r.Context(), id)
	if err != nil {
		serverError(w, "fetch results", err)
		return
	}
	// an unknown id and a batch with no items are indistinguishable to callers
	if len(results) == 0 {
		respondError(w, http.StatusNotFound, "batch_id not found or empty")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) listValidationBatches(w http.ResponseWriter, r *http.Request) {
	opts := batches.ListOptions{Limit: batches.DefaultListLimit}

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > batches.MaxListLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		opts.Offset = n
	}
	if v := q.Get("status"); v != "" {
		status := batches.Status(v)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "unknown status")
			return
		}
		opts.Status = status
	}

	out, err := h.validation.List(r.Context(), opts)
	if err != nil {
		serverError(w, "list batches", err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getValidationBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}

	sum, err := h.validation.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, addressd.ErrNotFound) {
			respondError(w, http.StatusNotFound, "batch_id not found")
			return
		}
		serverError(w, "get batch", err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

func (h *Handler) deleteValidationBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}

	if err := h.validation.Delete(r.Context(), id); err != nil {
		if errors.Is(err, addressd.ErrNotFound) {
			respondError(w, http.StatusNotFound, "batch_id not found")
			return
		}
		serverError(w, "delete batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requeueValidationBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}

	requeued, err := h.validation.Requeue(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, addressd.ErrConflict):
			respondError(w, http.StatusConflict, "batch is processing")
		case errors.Is(err, addressd.ErrNotFound):
			respondError(w, http.StatusNotFound, "batch_id not found")
		default:
			serverError(w, "requeue batch", err)
		}
		return
	}
	if !requeued {
		respondError(w, http.StatusNotFound, "batch_id not found")
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), batches.ValidationPipeline{}.JobName(), id); err != nil {
		serverError(w, "dispatch batch", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) recognizeAddresses(w http.ResponseWriter, r *http.Request) {
	recs, err := decodeRecords(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(recs) == 0 {
		respondError(w, http.StatusBadRequest, "at least one address is required")
		return
	}

	ctx := r.Context()

	if isAsync(r) {
		id, err := h.recognition.CreateQueued(ctx, recs)
		if err != nil {
			serverError(w, "create queued recognition", err)
			return
		}
		if err := h.dispatcher.Dispatch(ctx, batches.RecognitionPipeline{}.JobName(), id); err != nil {
			serverError(w, "dispatch recognition", err)
			return
		}
		w.Header().Set(headerRecognitionID, id.String())
		respondJSON(w, http.StatusAccepted, []batches.RecognitionResult{})
		return
	}

	id, results, err := h.recognition.CreateSync(ctx, recs)
	if err != nil {
		serverError(w, "recognize batch", err)
		return
	}
	w.Header().Set(headerRecognitionID, id.String())
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) recognitionResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "recognitionID")
	if !ok {
		return
	}

	results, err := h.recognition.Results(r.Context(), id)
	if err != nil {
		serverError(w, "fetch recognition results", err)
		return
	}
	if len(results) == 0 {
		respondError(w, http.StatusNotFound, "recognition_id not found or empty")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func isAsync(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("async"))
	return err == nil && v
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func serverError(w http.ResponseWriter, op string, err error) {
	slog.Error(op, "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}
