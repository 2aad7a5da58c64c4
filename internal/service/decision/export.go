package decision

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/vitalflow/internal/model"
)

const exportSheet = "Decision Log"

var exportHeaders = []string{"Seq", "Action ID", "Type", "Actor", "Entity Type", "Entity ID", "Timestamp", "Overrides", "Synced", "Payload"}

// ExportXLSX writes the actions matching f as a spreadsheet.
func (s *Service) ExportXLSX(w io.Writer, f model.ActionFilters) error {
	actions := s.Query(f)

	x := excelize.NewFile()
	defer x.Close()

	index, err := x.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	x.SetActiveSheet(index)

	headerStyle, err := x.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range exportHeaders {
		if err := setCell(x, col+1, 1, header); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := x.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, a := range actions {
		row := i + 2
		ref := ""
		if a.RefActionID != nil {
			ref = *a.RefActionID
		}
		values := []interface{}{
			a.Seq,
			a.ID,
			string(a.Type),
			a.Actor,
			string(a.EntityType),
			a.EntityID,
			a.Timestamp.UTC().Format(time.RFC3339),
			ref,
			a.Synced,
			string(a.Payload),
		}
		for col, v := range values {
			if err := setCell(x, col+1, row, v); err != nil {
				return fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := x.SetColWidth(exportSheet, "B", "B", 16); err != nil {
		return err
	}
	if err := x.SetColWidth(exportSheet, "C", "C", 22); err != nil {
		return err
	}
	if err := x.SetColWidth(exportSheet, "G", "G", 22); err != nil {
		return err
	}
	if err := x.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if _, err := x.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func setCell(x *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return x.SetCellValue(exportSheet, cell, value)
}
