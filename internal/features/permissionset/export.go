package permissionset

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Permission Sets"

var exportMetaHeaders = []string{"id", "name", "predefined", "editable", "account_owner", "super_admin", "created_at"}

// buildWorkbook renders one row per set and one column per leaf. Tiers are written by name.
func buildWorkbook(schema *Schema, sets []PermissionSet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(exportSheet); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if index, err := f.GetSheetIndex(exportSheet); err == nil {
		f.SetActiveSheet(index)
	}

	headers := append(append([]string(nil), exportMetaHeaders...), schema.Columns()...)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, h)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	for rowIdx, set := range sets {
		row := []any{
			set.ID, set.Name, set.Predefined, set.Editable, set.AccountOwner, set.SuperAdmin,
			set.CreatedAt.UTC().Format(time.RFC3339),
		}
		for leaf := range schema.Leaves() {
			switch v := set.Permissions[leaf.Column()].(type) {
			case Tier:
				row = append(row, v.String())
			default:
				row = append(row, v)
			}
		}

		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", rowIdx+2, err)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(exportSheet, "A", last, 15)
	f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
