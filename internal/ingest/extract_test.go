package ingest

import (
	"errors"
	"testing"
)

func TestExtractCSV(t *testing.T) {
	content := []byte("Date,Description,Amount,Type\n2024-01-15,Freelance Payment,5000.00,Income\n2024-01-16,Grocery Shopping,-1500.00,Expense\n")

	rows, err := Extract(content, "statement.csv")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["description"] != "Freelance Payment" {
		t.Errorf("row 0 description = %q", rows[0]["description"])
	}
	if rows[1]["amount"] != "-1500.00" {
		t.Errorf("row 1 amount = %q", rows[1]["amount"])
	}
}

func TestExtractSemicolonDelimited(t *testing.T) {
	content := []byte("date;amount;description\n2024-01-15;100.00;load purchase\n")

	rows, err := Extract(content, "export.csv")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["description"] != "load purchase" {
		t.Errorf("description = %q", rows[0]["description"])
	}
}

func TestExtractTabDelimited(t *testing.T) {
	content := []byte("date\tamount\tdescription\n2024-01-15\t100.00\tload purchase\n")

	rows, err := Extract(content, "export.txt")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["amount"] != "100.00" {
		t.Errorf("amount = %q", rows[0]["amount"])
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract([]byte("data"), "archive.zip")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractHeaderOnly(t *testing.T) {
	rows, err := Extract([]byte("date,amount\n"), "empty.csv")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}
