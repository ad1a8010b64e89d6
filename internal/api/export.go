package api

import (
	"fmt"
	"net/http"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

const exportSheet = "Бронирования"

// ExportHandler streams the booking ledger of a period as an xlsx file.
// Generating a workbook is not cheap, so the endpoint carries its own
// token-bucket limiter independent of the per-user throttle.
type ExportHandler struct {
	repo    domain.Repository
	limiter *rate.Limiter
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewExportHandler(repo domain.Repository, logger *zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		repo:    repo,
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 2),
		logger:  logger,
		now:     time.Now,
	}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "export rate limit exceeded")
		return
	}

	now := h.now()
	start, end := now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start format; expected YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end format; expected YYYY-MM-DD")
			return
		}
		end = parsed
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	bookings, err := h.repo.GetBookingsByDateRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error().Err(err).Msg("export query failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	f, err := h.buildWorkbook(r, start, end, bookings)
	if err != nil {
		h.logger.Error().Err(err).Msg("export workbook failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx", start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := f.Write(w); err != nil {
		h.logger.Error().Err(err).Msg("export write failed")
		return
	}
	h.logger.Info().Int("bookings", len(bookings)).Str("file", fileName).Msg("export served")
}

func (h *ExportHandler) buildWorkbook(r *http.Request, start, end time.Time, bookings []*models.Booking) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(exportSheet, "A1", fmt.Sprintf("Период: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.MergeCell(exportSheet, "A1", "G1")
	_ = f.SetCellStyle(exportSheet, "A1", "A1", titleStyle)

	headers := []string{"ID", "Вещь", "Арендатор", "Начало", "Конец", "Статус", "Создано"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(exportSheet, cell, header)
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	itemNames := map[int64]string{}
	userNames := map[int64]string{}

	for i, b := range bookings {
		row := i + 3
		itemName, ok := itemNames[b.ItemID]
		if !ok {
			if item, err := h.repo.GetItem(r.Context(), b.ItemID); err == nil {
				itemName = item.Name
			}
			itemNames[b.ItemID] = itemName
		}
		bookerName, ok := userNames[b.BookerID]
		if !ok {
			if user, err := h.repo.GetUser(r.Context(), b.BookerID); err == nil {
				bookerName = user.Name
			}
			userNames[b.BookerID] = bookerName
		}

		_ = f.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), b.ID)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), itemName)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), bookerName)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), b.Start.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), b.End.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), b.Status)
		_ = f.SetCellValue(exportSheet, fmt.Sprintf("G%d", row), b.CreatedAt.Format("02.01.2006 15:04"))

		if styleID, err := statusStyle(f, b.Status); err == nil {
			cell := fmt.Sprintf("F%d", row)
			_ = f.SetCellStyle(exportSheet, cell, cell, styleID)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 8)
	_ = f.SetColWidth(exportSheet, "B", "C", 25)
	_ = f.SetColWidth(exportSheet, "D", "G", 18)

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusApproved:
		color = "#C6EFCE"
	case models.StatusWaiting:
		color = "#FFEB9C"
	case models.StatusRejected:
		color = "#FFC7CE"
	default:
		color = "#FFFFFF"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}
