package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/events"
	"shareit/internal/models"
	"shareit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zerolog.New(io.Discard)
	bus := events.NewEventBus()

	users := service.NewUserService(db, &logger)
	items := service.NewItemService(db, bus, &logger)
	bookings := service.NewBookingService(db, bus, nil, &logger)
	requests := service.NewRequestService(db, &logger)
	export := NewExportHandler(db, &logger)

	cfg := config.Config{}
	return NewHTTPServer(cfg, users, items, bookings, requests, nil, export, &logger)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set(userHeader, fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func createUser(t *testing.T, srv *HTTPServer, name, email string) models.User {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/users", 0, map[string]string{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user
}

func createItem(t *testing.T, srv *HTTPServer, ownerID int64, name string) models.Item {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/items", ownerID, map[string]any{
		"name": name, "description": name + " description", "available": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	return item
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserLifecycle(t *testing.T) {
	srv := newTestServer(t)

	user := createUser(t, srv, "Alice", "alice@example.com")
	assert.NotZero(t, user.ID)

	// Duplicate email conflicts
	rec := doRequest(t, srv, http.MethodPost, "/users", 0, map[string]string{"name": "Clone", "email": "alice@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Patch the name only
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/users/%d", user.ID), 0, map[string]string{"name": "Alice B"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "alice@example.com", updated.Email)

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/users/%d", user.ID), 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingUserHeader(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/items", 0, map[string]any{
		"name": "Drill", "description": "d", "available": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), userHeader)
}

func TestBookingLifecycle(t *testing.T) {
	srv := newTestServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	end := start.Add(2 * time.Hour)

	// Owner cannot book own item
	rec := doRequest(t, srv, http.MethodPost, "/bookings", owner.ID, map[string]any{
		"itemId": item.ID, "start": start, "end": end,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": start, "end": end,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view models.BookingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.StatusWaiting, view.Status)
	assert.Equal(t, booker.ID, view.BookerID)
	assert.Equal(t, item.ID, view.Item.ID)

	// A third party cannot see it
	third := createUser(t, srv, "Third", "third@example.com")
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/bookings/%d", view.ID), third.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Only the owner decides
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", view.ID), booker.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=true", view.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.StatusApproved, view.Status)

	// Decisions are not idempotent
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/bookings/%d?approved=false", view.ID), owner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Both parties read it back
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/bookings/%d", view.ID), booker.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/bookings/%d", view.ID), owner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingValidation(t *testing.T) {
	srv := newTestServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	now := time.Now().UTC()

	// End before start
	rec := doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": now.Add(2 * time.Hour), "end": now.Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unavailable item
	rec = doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/items/%d", item.ID), owner.ID, map[string]any{"available": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": now.Add(time.Hour), "end": now.Add(2 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingListings(t *testing.T) {
	srv := newTestServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	start := time.Now().Add(time.Hour).UTC()
	rec := doRequest(t, srv, http.MethodPost, "/bookings", booker.ID, map[string]any{
		"itemId": item.ID, "start": start, "end": start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Booker list defaults to ALL
	rec = doRequest(t, srv, http.MethodGet, "/bookings", booker.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.BookingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 1)

	// Owner scope
	rec = doRequest(t, srv, http.MethodGet, "/bookings/owner?state=WAITING", owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Owner with no booked items gets 404
	rec = doRequest(t, srv, http.MethodGet, "/bookings/owner", booker.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Booker with nothing in a state gets an empty list
	rec = doRequest(t, srv, http.MethodGet, "/bookings?state=REJECTED", booker.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Empty(t, views)

	// Unknown state yields the contract message
	rec = doRequest(t, srv, http.MethodGet, "/bookings?state=SOMETIMES", booker.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown state: UNSUPPORTED_STATUS")
}

func TestItemSearchAndDetail(t *testing.T) {
	srv := newTestServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	viewer := createUser(t, srv, "Viewer", "viewer@example.com")
	item := createItem(t, srv, owner.ID, "Power Drill")

	rec := doRequest(t, srv, http.MethodGet, "/items/search?text=drill", viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []models.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, item.ID, found[0].ID)

	// Blank search is an empty list, not an error
	rec = doRequest(t, srv, http.MethodGet, "/items/search?text=", viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Empty(t, found)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/items/%d", item.ID), viewer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.ItemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, item.ID, detail.ID)
	assert.Nil(t, detail.LastBooking)
	assert.NotNil(t, detail.Comments)
}

func TestCommentRequiresFinishedBooking(t *testing.T) {
	srv := newTestServer(t)

	owner := createUser(t, srv, "Owner", "owner@example.com")
	booker := createUser(t, srv, "Booker", "booker@example.com")
	item := createItem(t, srv, owner.ID, "Drill")

	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/items/%d/comment", item.ID), booker.ID, map[string]string{"text": "great"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestFlow(t *testing.T) {
	srv := newTestServer(t)

	requester := createUser(t, srv, "Requester", "req@example.com")
	owner := createUser(t, srv, "Owner", "owner@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/requests", requester.ID, map[string]string{"description": "need a drill"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.ItemRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Offer an item in answer
	rec = doRequest(t, srv, http.MethodPost, "/items", owner.ID, map[string]any{
		"name": "Drill", "description": "cordless", "available": true, "requestId": created.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/requests/%d", created.ID), owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.ItemRequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)

	// Own requests show up under /requests, others under /requests/all
	rec = doRequest(t, srv, http.MethodGet, "/requests", requester.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var own []models.ItemRequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &own))
	assert.Len(t, own, 1)

	rec = doRequest(t, srv, http.MethodGet, "/requests/all", owner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var others []models.ItemRequestView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &others))
	assert.Len(t, others, 1)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/admin/export", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = doRequest(t, srv, http.MethodGet, "/admin/export?start=bogus", 0, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
