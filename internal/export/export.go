// Package export writes marketplace query results to XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "By item"
	usersSheet    = "Users"

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Exporter builds workbooks from the data client into the export directory.
type Exporter struct {
	client *client.Client
	dir    string
	logger zerolog.Logger
	now    func() time.Time
}

func NewExporter(c *client.Client, cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "export").Logger()
	}
	return &Exporter{client: c, dir: cfg.Path, logger: l, now: time.Now}
}

// Bookings exports every booking starting within [from, to] plus a per-item
// summary sheet, and returns the workbook path.
func (e *Exporter) Bookings(ctx context.Context, from, to time.Time) (string, error) {
	if to.Before(from) {
		return "", fmt.Errorf("export period ends before it starts")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	period := query.And(query.Gte("startDate", from), query.Lte("startDate", to))
	bookings, err := e.client.Booking.FindMany(ctx, query.FindArgs{
		Where:   period,
		OrderBy: []query.Order{query.Asc("startDate"), query.Asc("id")},
		Include: []string{"item", "user"},
	})
	if err != nil {
		return "", fmt.Errorf("load bookings: %w", err)
	}
	groups, err := e.client.Booking.GroupBy(ctx, query.GroupByArgs{
		By:         []string{"itemId"},
		Where:      period,
		OrderBy:    []query.Order{query.ByAggregate(query.AggSum, "totalPrice", true)},
		Aggregates: query.Aggregates{Count: []string{"_all"}, Sum: []string{"totalPrice"}},
	})
	if err != nil {
		return "", fmt.Errorf("summarize bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Period: %s - %s", from.Format(dateLayout), to.Format(dateLayout)))
	headers := []string{"ID", "Item", "Customer", "Phone", "Start", "End", "Status", "Payment", "Total"}
	if err := writeHeaders(f, bookingsSheet, 2, headers); err != nil {
		return "", err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")
	if title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err == nil {
		_ = f.SetCellStyle(bookingsSheet, "A1", "A1", title)
	}

	titles := make(map[string]string)
	for i := range bookings {
		b := &bookings[i]
		row := i + 3
		item, customer, phone := "", "", ""
		if b.Item != nil {
			item = b.Item.Title
			titles[b.Item.ID] = b.Item.Title
		}
		if b.User != nil {
			customer, phone = b.User.Name, b.User.Phone
		}
		values := []any{
			b.ID, item, customer, phone,
			b.StartDate.Format(dateTimeLayout), b.EndDate.Format(dateTimeLayout),
			deref(b.Status), deref(b.PaymentStatus), b.TotalPrice,
		}
		if err := f.SetSheetRow(bookingsSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return "", fmt.Errorf("write booking row: %w", err)
		}
		if style, err := statusStyle(f, b.Status); err == nil {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(bookingsSheet, first, last, style)
		}
	}
	_ = f.SetColWidth(bookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(bookingsSheet, "B", lastCol, 18)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeaders(f, summarySheet, 1, []string{"Item", "Bookings", "Revenue"}); err != nil {
		return "", err
	}
	for i, g := range groups {
		itemID, _ := g.Keys["itemId"].(string)
		name := titles[itemID]
		if name == "" {
			name = itemID
		}
		if name == "" {
			name = "(no item)"
		}
		values := []any{name, g.Count["_all"], g.Sum["totalPrice"]}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return "", fmt.Errorf("write summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 30)

	_ = f.DeleteSheet("Sheet1")

	name := fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format(dateLayout), to.Format(dateLayout))
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", path).Int("bookings", len(bookings)).Msg("bookings workbook created")
	return path, nil
}

// Users exports every user. Credentials are never written.
func (e *Exporter) Users(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	users, err := e.client.User.FindMany(ctx, query.FindArgs{
		OrderBy: []query.Order{query.Asc("createdAt"), query.Asc("id")},
		Omit:    []string{"password", "token", "tokenExpires"},
	})
	if err != nil {
		return "", fmt.Errorf("load users: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(usersSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Name", "Email", "Phone", "Role", "Verified", "City", "Country", "Registered"}
	if err := writeHeaders(f, usersSheet, 1, headers); err != nil {
		return "", err
	}
	for i := range users {
		u := &users[i]
		values := []any{
			u.ID, u.Name, u.Email, u.Phone, string(u.Role), yesNo(u.Verified),
			deref(u.City), deref(u.Country), u.CreatedAt.Format(dateTimeLayout),
		}
		if err := f.SetSheetRow(usersSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return "", fmt.Errorf("write user row: %w", err)
		}
	}
	_ = f.SetColWidth(usersSheet, "A", "A", 38)
	_ = f.SetColWidth(usersSheet, "B", "I", 18)

	_ = f.DeleteSheet("Sheet1")

	name := fmt.Sprintf("users_%s.xlsx", e.now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", path).Int("users", len(users)).Msg("users workbook created")
	return path, nil
}

func writeHeaders(f *excelize.File, sheet string, row int, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
	return nil
}

// statusStyle fills approved and completed rows green, pending rows yellow.
func statusStyle(f *excelize.File, status *models.BookingStatus) (int, error) {
	color := "#FFFFFF"
	if status != nil {
		switch *status {
		case models.BookingStatusApproved, models.BookingStatusCompleted:
			color = "#C6EFCE"
		case models.BookingStatusPending:
			color = "#FFEB9C"
		}
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "top"},
	})
}

func deref[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
