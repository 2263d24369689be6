package exam

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"smarttest/internal/models"
)

var reportHeaders = []interface{}{"#", "Full name", "Telegram ID", "Correct answers", "Result (%)", "Time spent (MM:SS)"}

func ReportSheet(code int) string {
	return fmt.Sprintf("Test %d results", code)
}

func ReportFileName(code int) string {
	return fmt.Sprintf("test_%d_results.xlsx", code)
}

// BuildReport renders the final ranking of a test as an xlsx workbook.
func BuildReport(code int, entries []models.LeaderboardEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := ReportSheet(code)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	widths := make([]int, len(reportHeaders))
	writeRow := func(rowNum int, values []interface{}) error {
		for i, v := range values {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[i] {
				widths[i] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := writeRow(1, reportHeaders); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	for i, e := range entries {
		row := []interface{}{
			e.Rank,
			e.FullName,
			e.UserID,
			fmt.Sprintf("%d/%d", e.Score, e.Total),
			fmt.Sprintf("%.1f%%", e.Percentage),
			FormatElapsed(e.Seconds),
		}
		if err := writeRow(i+2, row); err != nil {
			return nil, err
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, float64(w+2)); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
