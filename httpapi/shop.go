package httpapi

import (
	"net/http"

	"github.com/ileri/atelier/site"
)

type cartLine struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=99"`
}

type cartRequest struct {
	Customer site.Customer `json:"customer"`
	Items    []cartLine    `json:"items" validate:"min=1,max=50,dive"`
}

// handlePlaceOrder takes the cart as product ids and quantities. Names
// and prices in the body are ignored.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in cartRequest
	if !s.decode(w, r, &in) {
		return
	}
	lines := make([]site.OrderLine, 0, len(in.Items))
	for _, l := range in.Items {
		lines = append(lines, site.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	o, err := s.rec.PlaceOrder(r.Context(), in.Customer, lines)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type appointmentRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Time    string `json:"time" validate:"required,datetime=15:04"`
	Service string `json:"service" validate:"required"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointmentRequest
	if !s.decode(w, r, &in) {
		return
	}
	a, err := s.rec.BookAppointment(r.Context(), site.Appointment{
		Name:    in.Name,
		Phone:   in.Phone,
		Date:    in.Date,
		Time:    in.Time,
		Service: in.Service,
		Notes:   in.Notes,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
