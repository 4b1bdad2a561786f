package export

import (
	"fmt"
	"os"
	"path/filepath"

	"reservo/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const payoutSheet = "Payouts"

var payoutHeaders = []string{
	"Reference", "Host", "Period start", "Period end", "Earnings",
	"Gross", "Platform fees", "Tax", "Net", "Status", "Created at",
}

// PayoutReport writes one spreadsheet per payout run into dir.
type PayoutReport struct {
	dir    string
	logger *zerolog.Logger
}

func NewPayoutReport(dir string, logger *zerolog.Logger) *PayoutReport {
	return &PayoutReport{dir: dir, logger: logger}
}

// WritePayouts saves the statement and returns its path. A file for the same
// period is overwritten.
func (r *PayoutReport) WritePayouts(period models.PayoutPeriod, payouts []*models.HostPayout) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(payoutSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(payoutSheet, "A1", fmt.Sprintf("Payout statement %s - %s",
		period.Start.Format("2006-01-02"), period.End.Format("2006-01-02")))
	lastCol, _ := excelize.ColumnNumberToName(len(payoutHeaders))
	_ = f.MergeCell(payoutSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(payoutSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range payoutHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(payoutSheet, cell, h)
		_ = f.SetCellStyle(payoutSheet, cell, cell, headerStyle)
	}

	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})
	var net float64
	for i, p := range payouts {
		row := i + 3
		values := []interface{}{
			p.Reference, p.HostID, p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"),
			p.EarningsCount, p.TotalEarnings, p.TotalFees, p.TotalTax, p.NetAmount, p.Status,
			p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(payoutSheet, start, &values); err != nil {
			return "", fmt.Errorf("error writing payout %d: %w", p.ID, err)
		}
		from, _ := excelize.CoordinatesToCellName(6, row)
		to, _ := excelize.CoordinatesToCellName(9, row)
		_ = f.SetCellStyle(payoutSheet, from, to, moneyStyle)
		net += p.NetAmount
	}

	totalRow := len(payouts) + 3
	label, _ := excelize.CoordinatesToCellName(1, totalRow)
	total, _ := excelize.CoordinatesToCellName(9, totalRow)
	_ = f.SetCellValue(payoutSheet, label, "Total")
	_ = f.SetCellValue(payoutSheet, total, net)
	_ = f.SetCellStyle(payoutSheet, total, total, moneyStyle)

	_ = f.SetColWidth(payoutSheet, "A", "A", 26)
	_ = f.SetColWidth(payoutSheet, "B", lastCol, 14)
	_ = f.DeleteSheet("Sheet1")

	path := filepath.Join(r.dir, fmt.Sprintf("payouts_%s.xlsx", period.Start.Format("2006-01")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	r.logger.Info().Str("file_path", path).Int("payouts", len(payouts)).Msg("Payout statement created")
	return path, nil
}
