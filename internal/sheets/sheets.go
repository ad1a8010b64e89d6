package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"shareit/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const bookingsSheet = "Bookings"

var ErrRowNotFound = errors.New("booking row not found")

// Service mirrors the booking ledger into a Google spreadsheet so
// operations can follow approvals without touching the database.
type Service struct {
	api           *sheetsapi.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewService(ctx context.Context, credentialsFile, spreadsheetID string) (*Service, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(credentialsJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	api, err := sheetsapi.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	svc := &Service{
		api:           api,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = svc.WarmUpCache(warmCtx)
	}()

	return svc, nil
}

// TestConnection проверяет доступ к таблице
func (s *Service) TestConnection(ctx context.Context) error {
	_, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *Service) WarmUpCache(ctx context.Context) error {
	resp, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// AppendBooking добавляет строку нового бронирования
func (s *Service) AppendBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}

	valueRange := &sheetsapi.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}

	_, err := s.api.Spreadsheets.Values.Append(s.spreadsheetID, bookingsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpdateBookingStatus updates status (and UpdatedAt) for a booking row.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!F%d:F%d", bookingsSheet, rowIdx, rowIdx)
	_, err = s.api.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheetsapi.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := fmt.Sprintf("%s!H%d:H%d", bookingsSheet, rowIdx, rowIdx)
	_, err = s.api.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheetsapi.ValueRange{
		Values: [][]interface{}{{time.Now().UTC().Format("2006-01-02 15:04:05")}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// ReplaceBookingsSheet полностью перезаписывает лист с бронированиями
func (s *Service) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	clearReq := &sheetsapi.ClearValuesRequest{}
	_, err := s.api.Spreadsheets.Values.Clear(s.spreadsheetID, bookingsSheet+"!A:H", clearReq).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	values := [][]interface{}{
		{"ID", "Item ID", "Booker ID", "Start", "End", "Status", "Created At", "Updated At"},
	}
	for _, booking := range bookings {
		values = append(values, bookingRowValues(booking))
	}

	valueRange := &sheetsapi.ValueRange{Values: values}
	_, err = s.api.Spreadsheets.Values.Update(s.spreadsheetID, bookingsSheet+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}

	s.cacheMu.Lock()
	s.rowCache = make(map[int64]int)
	for i, b := range bookings {
		s.rowCache[b.ID] = i + 2 // +2 because data starts at row 2
	}
	s.cacheMu.Unlock()

	return nil
}

// FindBookingRow locates row index (1-based) for booking id in column A with cache.
func (s *Service) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, fmt.Errorf("booking id is required")
	}

	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, bookingsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == bookingID {
				rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
				s.setCachedRow(bookingID, rowIdx)
				return rowIdx, nil
			}
		case string:
			if v == fmt.Sprintf("%d", bookingID) {
				rowIdx := i + 1
				s.setCachedRow(bookingID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, ErrRowNotFound
}

func (s *Service) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *Service) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *Service) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func bookingRowValues(booking *models.Booking) []interface{} {
	return []interface{}{
		booking.ID,
		booking.ItemID,
		booking.BookerID,
		booking.Start.Format("2006-01-02 15:04:05"),
		booking.End.Format("2006-01-02 15:04:05"),
		booking.Status,
		booking.CreatedAt.Format("2006-01-02 15:04:05"),
		booking.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
