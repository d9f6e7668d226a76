package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ileri/atelier/dbopen"
)

func newStore(t *testing.T) (*Store, *atomic.Bool) {
	t.Helper()
	authed := new(atomic.Bool)
	db := dbopen.OpenMemory(t)
	s, err := New(db, WithAuthorizer(AuthorizerFunc(authed.Load)))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, authed
}

// recv waits for the next value on ch.
func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listener")
	}
	var zero T
	return zero
}

func TestDocumentListenerSeesWrites(t *testing.T) {
	s, authed := newStore(t)
	ctx := context.Background()

	got := make(chan json.RawMessage, 8)
	cancel := s.SubscribeDocument("settings/global", func(b json.RawMessage) { got <- b }, func(err error) { t.Errorf("unexpected error: %v", err) })
	defer cancel()

	assert.Nil(t, recv(t, got), "missing document is delivered as nil")

	authed.Store(true)
	require.NoError(t, s.SetDocument(ctx, "settings/global", json.RawMessage(`{"heroTitle":"New"}`), true))
	assert.JSONEq(t, `{"heroTitle":"New"}`, string(recv(t, got)))

	st := s.Stats()
	assert.GreaterOrEqual(t, st.Notifications, int64(1))
	assert.GreaterOrEqual(t, st.Subscribers, 1)
}

func TestSetDocumentMerge(t *testing.T) {
	s, authed := newStore(t)
	authed.Store(true)
	ctx := context.Background()

	require.NoError(t, s.SetDocument(ctx, "settings/global", json.RawMessage(`{"a":"1","nested":{"x":1}}`), false))
	require.NoError(t, s.SetDocument(ctx, "settings/global", json.RawMessage(`{"b":"2","nested":{"y":2}}`), true))

	doc, err := s.GetDocument(ctx, "settings/global")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":"2","nested":{"x":1,"y":2}}`, string(doc))

	require.NoError(t, s.SetDocument(ctx, "settings/global", json.RawMessage(`{"c":"3"}`), false))
	doc, err = s.GetDocument(ctx, "settings/global")
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"3"}`, string(doc))
}

func TestSetDocumentRejections(t *testing.T) {
	s, authed := newStore(t)
	ctx := context.Background()

	err := s.SetDocument(ctx, "settings/global", json.RawMessage(`{"a":"1"}`), true)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	authed.Store(true)
	err = s.SetDocument(ctx, "settings/global", json.RawMessage(`[1,2]`), true)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeInvalidArgument, se.Code)
}

func TestCollectionListenerOrderedByID(t *testing.T) {
	s, authed := newStore(t)
	authed.Store(true)
	ctx := context.Background()

	got := make(chan []json.RawMessage, 8)
	cancel := s.SubscribeCollection("products", func(items []json.RawMessage) { got <- items }, nil)
	defer cancel()

	first := recv(t, got)
	assert.NotNil(t, first)
	assert.Empty(t, first)

	require.NoError(t, s.UpsertItem(ctx, "products", 20, json.RawMessage(`{"id":20}`)))
	require.NoError(t, s.UpsertItem(ctx, "products", 10, json.RawMessage(`{"id":10}`)))

	var items []json.RawMessage
	require.Eventually(t, func() bool {
		select {
		case items = <-got:
		default:
		}
		return len(items) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"id":10}`, string(items[0]))
	assert.JSONEq(t, `{"id":20}`, string(items[1]))

	require.NoError(t, s.DeleteItem(ctx, "products", 10))
	items = recv(t, got)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"id":20}`, string(items[0]))
}

func TestPrivilegedCollectionDeniedWhenAnonymous(t *testing.T) {
	s, _ := newStore(t)

	errs := make(chan error, 1)
	s.SubscribeCollection("orders", func([]json.RawMessage) { t.Error("anonymous read delivered data") }, func(err error) { errs <- err })

	err := recv(t, errs)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.True(t, se.PermissionDenied())
	assert.False(t, se.Temporary())

	assert.Eventually(t, func() bool { return s.Listeners() == 0 }, time.Second, 5*time.Millisecond, "listener ends after an error")
}

func TestPublicCreateRules(t *testing.T) {
	s, authed := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, "orders", 1001, json.RawMessage(`{"id":1001,"status":"pending"}`)))
	assert.ErrorIs(t, s.UpsertItem(ctx, "orders", 1001, json.RawMessage(`{"id":1001,"status":"shipped"}`)), ErrPermissionDenied, "anonymous update")
	assert.ErrorIs(t, s.UpsertItem(ctx, "products", 1, json.RawMessage(`{"id":1}`)), ErrPermissionDenied)
	assert.ErrorIs(t, s.DeleteItem(ctx, "orders", 1001), ErrPermissionDenied)

	_, err := s.GetItem(ctx, "orders", 1001)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	authed.Store(true)
	require.NoError(t, s.UpsertItem(ctx, "orders", 1001, json.RawMessage(`{"id":1001,"status":"shipped"}`)))
	item, err := s.GetItem(ctx, "orders", 1001)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1001,"status":"shipped"}`, string(item))
}

func TestValueListener(t *testing.T) {
	s, authed := newStore(t)
	ctx := context.Background()

	got := make(chan json.RawMessage, 8)
	cancel := s.SubscribeValue("siteConfig", func(b json.RawMessage) { got <- b }, nil)
	defer cancel()
	assert.Nil(t, recv(t, got))

	assert.ErrorIs(t, s.SetValue(ctx, "siteConfig", json.RawMessage(`{"heroTitle":"Old"}`)), ErrPermissionDenied)

	authed.Store(true)
	require.NoError(t, s.SetValue(ctx, "siteConfig", json.RawMessage(`{"heroTitle":"Old"}`)))
	assert.JSONEq(t, `{"heroTitle":"Old"}`, string(recv(t, got)))

	require.NoError(t, s.SetValue(ctx, "siteConfig", json.RawMessage(`null`)))
	assert.Nil(t, recv(t, got))
}

func TestCancelStopsDelivery(t *testing.T) {
	s, authed := newStore(t)
	authed.Store(true)
	ctx := context.Background()

	var calls atomic.Int32
	ready := make(chan struct{})
	var cancel func()
	cancel = s.SubscribeDocument("doc", func(json.RawMessage) {
		<-ready
		calls.Add(1)
		cancel()
	}, nil)
	close(ready)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, s.SetDocument(ctx, "doc", json.RawMessage(`{"a":"b"}`), false))

	assert.Eventually(t, func() bool { return s.Listeners() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCloseEndsListeners(t *testing.T) {
	s, _ := newStore(t)
	s.SubscribeDocument("a", func(json.RawMessage) {}, nil)
	s.SubscribeValue("b", func(json.RawMessage) {}, nil)
	s.Close()
	s.Close()
	assert.Eventually(t, func() bool { return s.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}
