package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the reference workbook
const (
	RevenueSheet      = "Netflix annual revenue 2011 to "
	SubscribersSheet  = "Netflix annual subscribers 2011"
	ContentSpendSheet = "Netflix annual content spend ($"
	NetIncomeSheet    = "Netflix annual net incomeloss ("
)

// SheetData is one worksheet; Rows[0] is the header
type SheetData struct {
	Name string
	Rows [][]interface{}
}

// AnnualRevenue holds the revenue history used by StandardSheets, in dollars
var AnnualRevenue = map[int]float64{
	2011: 3205000000, 2012: 3609000000, 2013: 4375000000, 2014: 5505000000,
	2015: 6780000000, 2016: 8831000000, 2017: 11693000000, 2018: 15794000000,
	2019: 20156000000, 2020: 24996000000, 2021: 29698000000, 2022: 31616000000,
	2023: 33723000000,
}

// StandardSheets returns the four tables for 2011 to 2023. Revenue and
// content spend are currency strings, subscribers are numbers and net income
// mixes both, as in the reference workbook.
func StandardSheets() []SheetData {
	subscribers := []float64{21.5, 30.4, 41.4, 54.5, 70.8, 89.1, 110.6, 139.3, 167.1, 203.7, 221.8, 230.8, 260.3}
	content := []float64{2.0, 2.4, 2.9, 3.3, 4.6, 6.8, 8.9, 12.0, 13.9, 11.8, 17.0, 16.7, 13.0}
	income := []float64{226, 17, 112, 266, 122, 186, 558, 1211, 1866, 2761, 5116, 4491, 5408}

	rev := SheetData{Name: RevenueSheet, Rows: [][]interface{}{{"Year", "Revenue ($bn)"}}}
	subs := SheetData{Name: SubscribersSheet, Rows: [][]interface{}{{"Year", "Subscribers (mm)"}}}
	cont := SheetData{Name: ContentSpendSheet, Rows: [][]interface{}{{"Year", "Content spend ($bn)"}}}
	inc := SheetData{Name: NetIncomeSheet, Rows: [][]interface{}{{"Year", "Net income ($mm)"}}}

	for i := 0; i < 13; i++ {
		year := 2011 + i
		rev.Rows = append(rev.Rows, []interface{}{year, Currency(AnnualRevenue[year])})
		subs.Rows = append(subs.Rows, []interface{}{year, subscribers[i] * 1e6})
		cont.Rows = append(cont.Rows, []interface{}{year, Currency(content[i] * 1e9)})
		if i%2 == 0 {
			inc.Rows = append(inc.Rows, []interface{}{year, Currency(income[i] * 1e6)})
		} else {
			inc.Rows = append(inc.Rows, []interface{}{year, income[i] * 1e6})
		}
	}
	return []SheetData{rev, subs, cont, inc}
}

// Currency formats v as "$1,234,567" (whole dollars)
func Currency(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := false
	if s[0] == '-' {
		neg, s = true, s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}

// BuildWorkbook renders sheets as an xlsx document
func BuildWorkbook(t testing.TB, sheets []SheetData) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("rename sheet %q: %v", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("add sheet %q: %v", s.Name, err)
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			row := row
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				t.Fatalf("write row %d of %q: %v", r+1, s.Name, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("encode workbook: %v", err)
	}
	return buf.Bytes()
}

// WriteWorkbook saves sheets to dir/name and returns the path
func WriteWorkbook(t testing.TB, dir, name string, sheets []SheetData) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create workbook dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildWorkbook(t, sheets), 0644); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return path
}

// ReplaceSheet returns a copy of sheets with the named sheet swapped for s
func ReplaceSheet(sheets []SheetData, name string, s SheetData) []SheetData {
	out := make([]SheetData, 0, len(sheets))
	for _, existing := range sheets {
		if existing.Name == name {
			out = append(out, s)
			continue
		}
		out = append(out, existing)
	}
	return out
}

// DropSheet returns a copy of sheets without the named sheet
func DropSheet(sheets []SheetData, name string) []SheetData {
	out := make([]SheetData, 0, len(sheets))
	for _, s := range sheets {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return out
}
