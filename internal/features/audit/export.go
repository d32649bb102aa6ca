package audit

import (
	"encoding/json"
	"strings"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{"Timestamp", "Workflow ID", "From", "To", "Actor", "Metadata"}

func exportToExcel(entries []WorkflowAuditLog, filename string) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Audit Trail"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, entry := range entries {
		metadata := ""
		if len(entry.Metadata) > 0 {
			if raw, err := json.Marshal(entry.Metadata); err == nil {
				metadata = string(raw)
			}
		}
		values := []interface{}{
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.WorkflowID,
			entry.PreviousState,
			entry.NewState,
			entry.Actor,
			metadata,
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	for i := range exportColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 22)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	if !strings.HasSuffix(filename, ".xlsx") {
		filename += ".xlsx"
	}
	return buffer.Bytes(), filename, nil
}
