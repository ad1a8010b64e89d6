package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// userHeader identifies the acting user on every request.
const userHeader = "X-Sharer-User-Id"

// HTTPServer exposes the REST API.
type HTTPServer struct {
	cfg      config.Config
	users    domain.UserService
	items    domain.ItemService
	bookings domain.BookingService
	requests domain.RequestService
	limiter  domain.RateLimiter
	export   *ExportHandler
	logger   *zerolog.Logger
	server   *http.Server
}

func NewHTTPServer(
	cfg config.Config,
	users domain.UserService,
	items domain.ItemService,
	bookings domain.BookingService,
	requests domain.RequestService,
	limiter domain.RateLimiter,
	export *ExportHandler,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		users:    users,
		items:    items,
		bookings: bookings,
		requests: requests,
		limiter:  limiter,
		export:   export,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", srv.handleCreateUser)
	mux.HandleFunc("GET /users", srv.handleListUsers)
	mux.HandleFunc("GET /users/{id}", srv.handleGetUser)
	mux.HandleFunc("PATCH /users/{id}", srv.handleUpdateUser)
	mux.HandleFunc("DELETE /users/{id}", srv.handleDeleteUser)

	mux.HandleFunc("POST /items", srv.handleCreateItem)
	mux.HandleFunc("GET /items", srv.handleListOwnerItems)
	mux.HandleFunc("GET /items/search", srv.handleSearchItems)
	mux.HandleFunc("GET /items/{id}", srv.handleGetItem)
	mux.HandleFunc("PATCH /items/{id}", srv.handleUpdateItem)
	mux.HandleFunc("POST /items/{id}/comment", srv.handleAddComment)

	mux.HandleFunc("POST /bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /bookings", srv.handleListBookerBookings)
	mux.HandleFunc("GET /bookings/owner", srv.handleListOwnerBookings)
	mux.HandleFunc("GET /bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("PATCH /bookings/{id}", srv.handleDecideBooking)

	mux.HandleFunc("POST /requests", srv.handleCreateRequest)
	mux.HandleFunc("GET /requests", srv.handleListOwnRequests)
	mux.HandleFunc("GET /requests/all", srv.handleListOtherRequests)
	mux.HandleFunc("GET /requests/{id}", srv.handleGetRequest)

	if export != nil {
		mux.Handle("GET /admin/export", export)
	}

	mux.HandleFunc("GET /health", srv.handleHealth)

	handler := srv.requestIDMiddleware(srv.loggingMiddleware(srv.rateLimitMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- users ---

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.users.CreateUser(r.Context(), body.Name, body.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.users.UpdateUser(r.Context(), id, body.Name, body.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.users.DeleteUser(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- items ---

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Available   *bool  `json:"available"`
		RequestID   int64  `json:"requestId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Available == nil {
		writeError(w, http.StatusBadRequest, "available is required")
		return
	}

	item := &models.Item{
		Name:        body.Name,
		Description: body.Description,
		Available:   *body.Available,
		RequestID:   body.RequestID,
	}
	created, err := s.items.CreateItem(r.Context(), userID, item)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var patch models.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := s.items.UpdateItem(r.Context(), userID, id, patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	detail, err := s.items.GetItemDetail(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleListOwnerItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	details, err := s.items.ListOwnerItems(r.Context(), userID, from, size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *HTTPServer) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	items, err := s.items.SearchItems(r.Context(), userID, r.URL.Query().Get("text"), from, size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	comment, err := s.items.AddComment(r.Context(), userID, id, body.Text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// --- bookings ---

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, err := s.bookings.CreateBooking(r.Context(), userID, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncBookingCreated()
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleDecideBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	approvedRaw := r.URL.Query().Get("approved")
	approved, err := strconv.ParseBool(approvedRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "approved must be true or false")
		return
	}

	view, err := s.bookings.DecideBooking(r.Context(), userID, id, approved)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncBookingDecision(view.Status)
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := s.bookings.GetBooking(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleListBookerBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	views, err := s.bookings.ListByBooker(r.Context(), userID, stateParam(r), from, size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *HTTPServer) handleListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	views, err := s.bookings.ListByOwner(r.Context(), userID, stateParam(r), from, size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// --- requests ---

func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := s.requests.CreateRequest(r.Context(), userID, body.Description)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *HTTPServer) handleListOwnRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	views, err := s.requests.ListOwnRequests(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *HTTPServer) handleListOtherRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, size, ok := pageParams(w, r)
	if !ok {
		return
	}

	views, err := s.requests.ListOtherRequests(r.Context(), userID, from, size)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := s.requests.GetRequest(r.Context(), userID, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// --- helpers ---

// writeServiceError maps the sentinel taxonomy onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrItemNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrUnsupportedStatus):
		// Clients match on this exact message
		writeError(w, http.StatusBadRequest, database.ErrUnsupportedStatus.Error())
	case errors.Is(err, database.ErrValidation),
		errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrAlreadyDecided),
		errors.Is(err, database.ErrCommentNotAllowed):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(userHeader))
	if raw == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s header is required", userHeader))
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s header must be a positive integer", userHeader))
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (from, size int, ok bool) {
	from = 0
	size = models.DefaultPageSize

	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return 0, 0, false
		}
		from = v
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "size must be a positive integer")
			return 0, 0, false
		}
		size = v
	}
	return from, size, true
}

func stateParam(r *http.Request) string {
	state := r.URL.Query().Get("state")
	if state == "" {
		return string(models.StateAll)
	}
	return state
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// --- middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *HTTPServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		logger := s.logger.With().Str("request_id", requestID).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Anonymous endpoints are not throttled per user
		raw := strings.TrimSpace(r.Header.Get(userHeader))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil {
			next.ServeHTTP(w, r)
			return
		}

		window := time.Duration(s.cfg.RateLimit.Window) * time.Second
		allowed, err := s.limiter.CheckRateLimit(r.Context(), userID, s.cfg.RateLimit.Requests, window)
		if err != nil {
			s.logger.Error().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.IncRateLimited()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
