package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ileri/atelier/site"
)

func (s *Server) handlePublishSettings(w http.ResponseWriter, r *http.Request) {
	var in site.Settings
	if !s.decode(w, r, &in) {
		return
	}
	if in.IsEmpty() {
		writeError(w, http.StatusBadRequest, errors.New("settings are empty"))
		return
	}
	if err := s.rec.PublishSettings(r.Context(), in); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type titleRequest struct {
	Value string `json:"value" validate:"required"`
}

func (s *Server) handlePublishTitle(w http.ResponseWriter, r *http.Request) {
	var in titleRequest
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.rec.PublishTitle(r.Context(), strings.TrimSpace(in.Value)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublishLegacy(w http.ResponseWriter, r *http.Request) {
	var in site.Configuration
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.rec.PublishLegacy(r.Context(), in); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func collectionParam(w http.ResponseWriter, r *http.Request) (site.Collection, bool) {
	c, err := site.ParseCollection(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return 0, false
	}
	return c, true
}

// handleAddItem creates or replaces an item. A body without an id gets
// a fresh one, returned in the response.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}
	item, err := site.NewItem(c)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(item); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if err := s.rec.AddItem(r.Context(), item); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.rec.DeleteItem(r.Context(), c, id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderStatusRequest struct {
	Status site.OrderStatus `json:"status" validate:"oneof=pending shipped completed cancelled return_requested returned refunded"`
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in orderStatusRequest
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.rec.SetOrderStatus(r.Context(), id, in.Status); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appointmentStatusRequest struct {
	Status site.AppointmentStatus `json:"status" validate:"oneof=pending confirmed cancelled"`
}

func (s *Server) handleAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in appointmentStatusRequest
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.rec.SetAppointmentStatus(r.Context(), id, in.Status); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type maintenanceRequest struct {
	Active  bool   `json:"active"`
	Message string `json:"message" validate:"max=500"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if s.mm == nil {
		writeError(w, http.StatusNotImplemented, errors.New("maintenance mode is not configured"))
		return
	}
	var in maintenanceRequest
	if !s.decode(w, r, &in) {
		return
	}
	if err := s.mm.Set(r.Context(), in.Active, in.Message); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": s.mm.Active(), "message": s.mm.Message()})
}
