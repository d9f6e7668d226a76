package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ileri/atelier/auth"
	"github.com/ileri/atelier/observability"
	"github.com/ileri/atelier/resilient"
	"github.com/ileri/atelier/site"
	"github.com/ileri/atelier/snapshot"
)

// ErrUnknownProduct is returned by PlaceOrder for a line whose product is
// not in the catalog.
var ErrUnknownProduct = errors.New("reconcile: unknown product")

// AddItem creates or replaces item in its collection. A zero identifier is
// replaced by a fresh one. Rich text fields are sanitized before the write.
// Requires an authenticated session.
func (r *Reconciler) AddItem(ctx context.Context, item site.Item) (err error) {
	defer r.record(ctx, "add_item", item, time.Now(), &err)
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	if item.ItemID() == 0 {
		item.SetItemID(r.seq.Next())
	} else {
		r.seq.Observe(item.ItemID())
	}
	r.sanitize(item)
	if err := site.Validate(item); err != nil {
		return err
	}
	return r.upsert(ctx, item)
}

// DeleteItem removes an item. Requires an authenticated session.
func (r *Reconciler) DeleteItem(ctx context.Context, c site.Collection, id int64) (err error) {
	defer r.record(ctx, "delete_item", map[string]any{"collection": c.String(), "id": id}, time.Now(), &err)
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	if err := r.store.DeleteItem(ctx, c.String(), id); err != nil {
		return writeErr("delete item", err)
	}
	return nil
}

// PublishSettings merges s into the global settings document. Fields absent
// from s keep their stored value.
func (r *Reconciler) PublishSettings(ctx context.Context, s site.Settings) (err error) {
	defer r.record(ctx, "publish_settings", s, time.Now(), &err)
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("reconcile: encode settings: %w", err)
	}
	if err := r.store.SetDocument(ctx, SettingsPath, b, true); err != nil {
		return writeErr("publish settings", err)
	}
	return nil
}

// PublishTitle writes the dedicated site title document.
func (r *Reconciler) PublishTitle(ctx context.Context, title string) (err error) {
	defer r.record(ctx, "publish_title", title, time.Now(), &err)
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	b, err := json.Marshal(map[string]string{"value": title})
	if err != nil {
		return fmt.Errorf("reconcile: encode title: %w", err)
	}
	if err := r.store.SetDocument(ctx, TitlePath, b, false); err != nil {
		return writeErr("publish title", err)
	}
	return nil
}

// PublishLegacy stores the public part of c as the legacy aggregate and in
// the local snapshot.
func (r *Reconciler) PublishLegacy(ctx context.Context, c site.Configuration) (err error) {
	defer r.record(ctx, "publish_legacy", nil, time.Now(), &err)
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	b, err := json.Marshal(c.WithoutPrivate())
	if err != nil {
		return fmt.Errorf("reconcile: encode legacy: %w", err)
	}
	if r.snaps != nil {
		if err := r.snaps.Write(snapshot.SiteConfigKey, b); err != nil {
			r.log.Warn("reconcile: write snapshot", "error", err)
		}
	}
	if err := r.store.SetValue(ctx, LegacyPath, b); err != nil {
		return writeErr("publish legacy", err)
	}
	return nil
}

// PlaceOrder creates a pending order from the cart. Names and prices come
// from the catalog, not from the caller.
func (r *Reconciler) PlaceOrder(ctx context.Context, customer site.Customer, lines []site.OrderLine) (o site.Order, err error) {
	start := time.Now()
	defer func() {
		r.record(ctx, "place_order", map[string]any{"lines": len(lines)}, start, &err)
		r.events.LogEvent(ctx, observability.BusinessEvent{
			EventType:   "order",
			ServiceName: "reconcile",
			EntityType:  "order",
			EntityID:    strconv.FormatInt(o.ID, 10),
			Action:      "place",
			Details:     o.TotalAmount,
			Success:     err == nil,
		})
	}()

	catalog := make(map[int64]site.Product)
	for _, p := range r.Snapshot().Products {
		catalog[p.ID] = p
	}
	var cents int64
	items := make([]site.OrderLine, 0, len(lines))
	for _, l := range lines {
		p, ok := catalog[l.ProductID]
		if !ok {
			return site.Order{}, fmt.Errorf("%w: %d", ErrUnknownProduct, l.ProductID)
		}
		cents += ParsePrice(p.Price) * int64(l.Quantity)
		items = append(items, site.OrderLine{ProductID: p.ID, Name: p.Name, Quantity: l.Quantity, Price: p.Price})
	}

	o = site.Order{
		ID:          r.seq.Next(),
		Customer:    customer,
		Items:       items,
		TotalAmount: FormatPrice(cents),
		Status:      site.OrderPending,
		Date:        r.now().Format(time.DateOnly),
	}
	if err := site.Validate(&o); err != nil {
		return site.Order{}, err
	}
	if err := r.upsert(ctx, &o); err != nil {
		return site.Order{}, err
	}
	return o, nil
}

// BookAppointment stores a as a new pending appointment.
func (r *Reconciler) BookAppointment(ctx context.Context, a site.Appointment) (out site.Appointment, err error) {
	start := time.Now()
	defer func() {
		r.record(ctx, "book_appointment", map[string]any{"service": a.Service, "date": a.Date}, start, &err)
		r.events.LogEvent(ctx, observability.BusinessEvent{
			EventType:   "appointment",
			ServiceName: "reconcile",
			EntityType:  "appointment",
			EntityID:    strconv.FormatInt(out.ID, 10),
			Action:      "book",
			Success:     err == nil,
		})
	}()

	a.ID = r.seq.Next()
	a.Status = site.AppointmentPending
	a.CreatedAt = r.now().UTC().Format(time.RFC3339)
	if err := site.Validate(&a); err != nil {
		return site.Appointment{}, err
	}
	if err := r.upsert(ctx, &a); err != nil {
		return site.Appointment{}, err
	}
	return a, nil
}

// SetOrderStatus moves an order to status.
func (r *Reconciler) SetOrderStatus(ctx context.Context, id int64, status site.OrderStatus) (err error) {
	defer r.record(ctx, "set_order_status", map[string]any{"id": id, "status": status}, time.Now(), &err)
	var o site.Order
	if err := r.load(ctx, site.Orders, id, &o); err != nil {
		return err
	}
	o.Status = status
	if err := site.Validate(&o); err != nil {
		return err
	}
	return r.upsert(ctx, &o)
}

// SetAppointmentStatus moves an appointment to status.
func (r *Reconciler) SetAppointmentStatus(ctx context.Context, id int64, status site.AppointmentStatus) (err error) {
	defer r.record(ctx, "set_appointment_status", map[string]any{"id": id, "status": status}, time.Now(), &err)
	var a site.Appointment
	if err := r.load(ctx, site.Appointments, id, &a); err != nil {
		return err
	}
	a.Status = status
	if err := site.Validate(&a); err != nil {
		return err
	}
	return r.upsert(ctx, &a)
}

func (r *Reconciler) load(ctx context.Context, c site.Collection, id int64, dst site.Item) error {
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	raw, err := r.store.GetItem(ctx, c.String(), id)
	if err != nil {
		return writeErr("get item", err)
	}
	if raw == nil {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, c, id)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("reconcile: decode %s/%d: %w", c, id, err)
	}
	return nil
}

func (r *Reconciler) upsert(ctx context.Context, item site.Item) error {
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("reconcile: encode item: %w", err)
	}
	if err := r.store.UpsertItem(ctx, item.Collection().String(), item.ItemID(), b); err != nil {
		return writeErr("upsert item", err)
	}
	return nil
}

func (r *Reconciler) sanitize(item site.Item) {
	switch v := item.(type) {
	case *site.BlogPost:
		v.Content = r.policy.Sanitize(v.Content)
	case *site.Service:
		v.LongDescription = r.policy.Sanitize(v.LongDescription)
	}
}

// record audits a mutation and counts its outcome.
func (r *Reconciler) record(ctx context.Context, op string, params any, start time.Time, errp *error) {
	err := *errp
	outcome := "ok"
	switch {
	case errors.Is(err, ErrUnauthenticated):
		outcome = "denied"
	case err != nil:
		outcome = "error"
	}
	if r.metrics != nil {
		r.metrics.Mutations.WithLabelValues(op, outcome).Inc()
	}
	user := "anonymous"
	if c := auth.GetClaims(ctx); c != nil {
		user = c.UserID
	}
	r.audit.Record("reconcile", op, user, params, err, time.Since(start))
}

// writeErr turns a store rejection into ErrUnauthenticated so callers can
// ask the user to log in again.
func writeErr(op string, err error) error {
	if resilient.Classify(err) == resilient.PermissionDenied {
		return fmt.Errorf("reconcile: %s: %w (%v)", op, ErrUnauthenticated, err)
	}
	return fmt.Errorf("reconcile: %s: %w", op, err)
}

// ParsePrice reads a display price such as "€45.00" into cents. Anything
// that is not a digit or a dot is ignored; an unreadable price is zero.
func ParsePrice(s string) int64 {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// FormatPrice renders cents as a euro amount with two decimals.
func FormatPrice(cents int64) string {
	return fmt.Sprintf("€%d.%02d", cents/100, cents%100)
}
