package excel

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

func TestExportWritesHeaderAndRows(t *testing.T) {
	exporter := New()
	result := &domain.QueryResult{
		Columns: []string{"cfop_code", "total_value"},
		Rows: [][]any{
			{"5307", 123.45},
			{"0000", nil},
		},
	}

	data, err := exporter.Export(result)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Result")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "cfop_code" || rows[0][1] != "total_value" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "5307" {
		t.Fatalf("first row = %v", rows[1])
	}
	if len(rows[2]) > 1 && rows[2][1] != "" {
		t.Fatalf("null cell must stay empty, got %v", rows[2])
	}
}

func TestExportEmptyResult(t *testing.T) {
	data, err := New().Export(&domain.QueryResult{Columns: []string{"n"}})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("workbook must still serialize")
	}
}
