// Package report exports settlement results for the accounting side of
// the service center.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minhphan/garageflow/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SessionLister provides the settled sessions for a period.
type SessionLister interface {
	ListSettledBetween(ctx context.Context, from, to time.Time) ([]*models.SettlementSession, error)
}

// Exporter renders settled sessions into an Excel workbook.
type Exporter struct {
	sessions  SessionLister
	outputDir string
	logger    *zap.Logger
}

// NewExporter creates a new settlement report exporter
func NewExporter(sessions SessionLister, outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{
		sessions:  sessions,
		outputDir: outputDir,
		logger:    logger,
	}
}

const sheetName = "Settlements"

// Export writes the settlement report for [from, to) and returns the file
// path.
func (e *Exporter) Export(ctx context.Context, from, to time.Time) (string, error) {
	sessions, err := e.sessions.ListSettledBetween(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("load settled sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Order Code", "Checklist", "Amount (VND)", "Status", "Settled At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}

	var total int64
	for row, s := range sessions {
		values := []interface{}{
			s.OrderCode,
			s.ChecklistID,
			s.Amount,
			s.Status,
			s.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return "", fmt.Errorf("write row %d: %w", row+1, err)
			}
		}
		total += s.Amount
	}

	totalRow := len(sessions) + 2
	cellLabel, _ := excelize.CoordinatesToCellName(1, totalRow)
	cellTotal, _ := excelize.CoordinatesToCellName(3, totalRow)
	_ = f.SetCellValue(sheetName, cellLabel, "Total")
	_ = f.SetCellValue(sheetName, cellTotal, total)

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.outputDir, fmt.Sprintf("settlements_%s.xlsx", uuid.NewString()))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	e.logger.Info("Settlement report exported",
		zap.String("path", path),
		zap.Int("sessions", len(sessions)),
		zap.Int64("total", total))
	return path, nil
}
