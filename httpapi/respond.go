package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ileri/atelier/docstore"
	"github.com/ileri/atelier/reconcile"
	"github.com/ileri/atelier/shield"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// fail answers err with the status it maps to. Server-side failures are
// logged and reported without detail.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("httpapi: request failed", "error", err)
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	var derr *docstore.Error
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, reconcile.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrUnknownProduct):
		return http.StatusUnprocessableEntity
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &derr) && derr.Code == docstore.CodeInvalidArgument:
		return http.StatusBadRequest
	case errors.As(err, &derr) && derr.Code == docstore.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err)
			return false
		}
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return 0, false
	}
	return id, true
}
