package dataprocessing

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"

	apperrors "revforecast/internal/errors"
)

// Container is a source of named tables, such as a workbook
type Container interface {
	SheetNames(ctx context.Context) ([]string, error)
	// Rows returns the sheet's cell text, header row included
	Rows(ctx context.Context, sheet string) ([][]string, error)
	Close() error
}

// ExcelContainer reads an xlsx workbook
type ExcelContainer struct {
	f    *excelize.File
	name string
}

// OpenExcelFile opens the workbook at path
func OpenExcelFile(path string) (*ExcelContainer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewSourceError("failed to open workbook", err).WithContext("path", path)
	}
	return &ExcelContainer{f: f, name: path}, nil
}

// OpenExcelReader reads a workbook from r, e.g. an uploaded file
func OpenExcelReader(r io.Reader, name string) (*ExcelContainer, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewSourceError("failed to read workbook", err).WithContext("name", name)
	}
	return &ExcelContainer{f: f, name: name}, nil
}

// Name returns the file path or upload name the workbook came from
func (c *ExcelContainer) Name() string {
	return c.name
}

func (c *ExcelContainer) SheetNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.f.GetSheetList(), nil
}

// Rows reads raw cell values so numeric cells keep their stored precision
// instead of the sheet's display format.
func (c *ExcelContainer) Rows(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := c.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewSourceError("failed to read sheet", err).WithContext("sheet", sheet)
	}
	return rows, nil
}

func (c *ExcelContainer) Close() error {
	return c.f.Close()
}
