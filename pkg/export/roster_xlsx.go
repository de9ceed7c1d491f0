package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ugel-puno/certificados-api/internal/models"
)

// RosterExporter renders the validated roster of an acta as an xlsx
// workbook for office use.
type RosterExporter struct{}

// NewRosterExporter builds a roster exporter.
func NewRosterExporter() *RosterExporter {
	return &RosterExporter{}
}

// RosterInput carries everything the workbook needs.
type RosterInput struct {
	Acta     models.ActaDetail
	Students []models.OCRStudent
	Areas    []models.TemplateArea
}

// Render produces the xlsx bytes for one acta roster. Area columns follow
// the curriculum template order; missing notes render as empty cells.
func (e *RosterExporter) Render(in RosterInput) ([]byte, error) {
	if len(in.Students) == 0 {
		return nil, fmt.Errorf("roster requires at least one student")
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Nomina"
	f.SetSheetName("Sheet1", sheet)
	orientation := "landscape"
	size := 9 // A4
	if err := f.SetPageLayout(sheet, &excelize.PageLayoutOptions{
		Orientation: &orientation,
		Size:        &size,
	}); err != nil {
		return nil, fmt.Errorf("set page layout: %w", err)
	}

	headers := []string{"N°", "DNI", "Apellido Paterno", "Apellido Materno", "Nombres", "Sexo"}
	for _, area := range in.Areas {
		headers = append(headers, area.Code)
	}
	headers = append(headers, "Situación Final")
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return nil, fmt.Errorf("resolve last column: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 10},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}
	f.SetCellValue(sheet, "A1", fmt.Sprintf("NÓMINA DE ESTUDIANTES - ACTA %s", in.Acta.Numero))
	f.SetCellStyle(sheet, "A1", lastCol+"1", titleStyle)

	f.SetCellValue(sheet, "A2", fmt.Sprintf("Año: %d", in.Acta.Year))
	f.SetCellValue(sheet, "C2", fmt.Sprintf("Grado: %s", in.Acta.GradeName))
	if in.Acta.Seccion != nil {
		f.SetCellValue(sheet, "E2", fmt.Sprintf("Sección: %s", *in.Acta.Seccion))
	}
	f.SetCellValue(sheet, "A3", fmt.Sprintf("Tipo: %s", in.Acta.Tipo))

	const headerRow = 5
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, fmt.Errorf("resolve header cell: %w", err)
		}
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A"+fmt.Sprint(headerRow), lastCol+fmt.Sprint(headerRow), headerStyle)

	students := make([]models.OCRStudent, len(in.Students))
	copy(students, in.Students)
	sort.SliceStable(students, func(i, j int) bool { return students[i].Numero < students[j].Numero })

	for rowIdx, st := range students {
		row := headerRow + 1 + rowIdx
		values := []interface{}{st.Numero, st.DNI, st.ApellidoPaterno, st.ApellidoMaterno, st.Nombres, st.Sexo}
		for _, area := range in.Areas {
			if nota, ok := st.Notas[area.Code]; ok {
				values = append(values, nota)
			} else {
				values = append(values, "")
			}
		}
		values = append(values, st.SituacionFinal)
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("resolve cell: %w", err)
			}
			f.SetCellValue(sheet, cell, v)
		}
		f.SetCellStyle(sheet, "A"+fmt.Sprint(row), lastCol+fmt.Sprint(row), cellStyle)
	}

	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 12)
	f.SetColWidth(sheet, "C", "E", 20)
	f.SetColWidth(sheet, "F", "F", 6)
	if len(in.Areas) > 0 {
		firstArea, _ := excelize.ColumnNumberToName(7)
		lastArea, _ := excelize.ColumnNumberToName(6 + len(in.Areas))
		f.SetColWidth(sheet, firstArea, lastArea, 8)
	}
	f.SetColWidth(sheet, lastCol, lastCol, 16)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
