// Package export writes lead workbooks.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/doernaz/brandlift/internal/discovery"
)

// SheetName is the worksheet that holds the leads.
const SheetName = "Leads"

// Header is the first row of the worksheet.
var Header = []string{
	"Lead ID", "Run ID", "Business", "Location", "Keyword", "Email", "Source",
	"Confidence", "Status", "Website", "Phone", "Address", "Rating", "Reviews", "Discovered At",
}

// WriteXLSX writes leads to a new workbook at path, one row per lead.
func WriteXLSX(path string, leads []*discovery.VerifiedLead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addStrings(sheet.AddRow(), Header...)
	for _, l := range leads {
		if l == nil {
			continue
		}
		row := sheet.AddRow()
		addStrings(row, l.LeadID, l.RunID, l.DisplayName, l.Location, l.Keyword, l.ContactEmail, l.EnrichmentSource)
		row.AddCell().SetFloat(l.Confidence)
		addStrings(row, l.Status(), l.WebsiteURI, l.Phone, l.FormattedAddress)
		if l.Rating != nil {
			row.AddCell().SetFloat(*l.Rating)
		} else {
			row.AddCell().SetString("")
		}
		if l.UserRatingCount != nil {
			row.AddCell().SetInt(*l.UserRatingCount)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(l.DiscoveredAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadXLSX returns the rows of the leads sheet as strings, header included.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open file")
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		return nil, eris.Errorf("export: sheet %q not found", SheetName)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// FormatConfidence renders a confidence as a percentage for listings.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c*100, 'f', 0, 64) + "%"
}
