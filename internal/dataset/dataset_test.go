package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/sakif/data-analyzer/internal/apperror"
)

const salesCSV = `Category,Sales,Date
Electronics,1500,2023-01-15
Clothing,800,2023-01-16
Groceries,450,2023-01-16
Electronics,2200,2023-01-17
Books,300,2023-01-18
`

func TestParse_Basic(t *testing.T) {
	d, err := Parse([]byte(salesCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if d.NumCols() != 3 {
		t.Fatalf("NumCols() = %d, want 3", d.NumCols())
	}
	if d.NumRows() != 5 {
		t.Fatalf("NumRows() = %d, want 5", d.NumRows())
	}

	wantDtypes := map[string]string{
		"Category": "object",
		"Sales":    "int64",
		"Date":     "object",
	}
	for _, c := range d.Columns {
		if c.Dtype != wantDtypes[c.Name] {
			t.Errorf("column %s dtype = %q, want %q", c.Name, c.Dtype, wantDtypes[c.Name])
		}
		if c.NonNull != 5 {
			t.Errorf("column %s NonNull = %d, want 5", c.Name, c.NonNull)
		}
	}
}

func TestParse_SkipsCommentLines(t *testing.T) {
	csvData := "# exported 2023-02-01\nName,Score\n# midway comment\nalpha,1\nbeta,2\n"

	d, err := Parse([]byte(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2 (comment lines must be skipped)", d.NumRows())
	}
	if d.Columns[0].Name != "Name" {
		t.Errorf("first column = %q, want %q", d.Columns[0].Name, "Name")
	}
}

func TestParse_DtypeInference(t *testing.T) {
	csvData := "Ints,Floats,Bools,Mixed,Empty\n1,1.5,true,1,\n2,2,false,x,\n"

	d, err := Parse([]byte(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"int64", "float64", "bool", "object", "object"}
	for i, c := range d.Columns {
		if c.Dtype != want[i] {
			t.Errorf("column %s dtype = %q, want %q", c.Name, c.Dtype, want[i])
		}
	}
	if d.Columns[4].NonNull != 0 {
		t.Errorf("Empty column NonNull = %d, want 0", d.Columns[4].NonNull)
	}
}

func TestParse_NullCounts(t *testing.T) {
	csvData := "A,B\n1,\n,y\n3,z\n"

	d, err := Parse([]byte(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.Columns[0].NonNull != 2 {
		t.Errorf("A NonNull = %d, want 2", d.Columns[0].NonNull)
	}
	if d.Columns[1].NonNull != 2 {
		t.Errorf("B NonNull = %d, want 2", d.Columns[1].NonNull)
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	_, err := Parse([]byte{'A', ',', 'B', '\n', 0xff, 0xfe, ',', 'x', '\n'})
	if err == nil {
		t.Fatal("Parse() should reject invalid UTF-8")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestParse_RaggedRows(t *testing.T) {
	_, err := Parse([]byte("A,B\n1,2,3\n"))
	if err == nil {
		t.Fatal("Parse() should reject rows with the wrong field count")
	}
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte(""))
	if err == nil {
		t.Fatal("Parse() should reject an empty file")
	}
}

func TestParse_KeepsRawBytes(t *testing.T) {
	d, err := Parse([]byte(salesCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if string(d.Raw()) != salesCSV {
		t.Error("Raw() must return the original CSV bytes unmodified")
	}
}

func TestDescribe_EveryColumnExactlyOnce(t *testing.T) {
	// Column names chosen so none is a substring of another — makes the
	// "exactly once" count meaningful.
	csvData := "Region,Total,Year\nnorth,10,2020\nsouth,20,2021\n"

	d, err := Parse([]byte(csvData))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	desc := d.Describe()
	for _, name := range []string{"Region", "Total", "Year"} {
		if got := strings.Count(desc, name); got != 1 {
			t.Errorf("Describe() contains %q %d times, want exactly 1\n%s", name, got, desc)
		}
	}
}

func TestDescribe_IncludesCountsAndDtypes(t *testing.T) {
	d, err := Parse([]byte(salesCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	desc := d.Describe()
	if !strings.Contains(desc, "5 entries") {
		t.Errorf("Describe() missing row count:\n%s", desc)
	}
	if !strings.Contains(desc, "total 3 columns") {
		t.Errorf("Describe() missing column count:\n%s", desc)
	}
	if !strings.Contains(desc, "int64") || !strings.Contains(desc, "object") {
		t.Errorf("Describe() missing dtypes:\n%s", desc)
	}
	if !strings.Contains(desc, "5 non-null") {
		t.Errorf("Describe() missing non-null counts:\n%s", desc)
	}
}

func TestHead_DefaultAndClamp(t *testing.T) {
	d, err := Parse([]byte(salesCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	head := d.Head(0)
	if !strings.Contains(head, "Electronics") || !strings.Contains(head, "Books") {
		t.Errorf("Head(0) should show all five default rows:\n%s", head)
	}

	two := d.Head(2)
	if strings.Contains(two, "Groceries") {
		t.Errorf("Head(2) showed more than two rows:\n%s", two)
	}

	// n beyond the row count must clamp, not panic
	if got := d.Head(100); !strings.Contains(got, "Books") {
		t.Errorf("Head(100) should clamp to all rows:\n%s", got)
	}
}
