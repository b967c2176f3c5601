package dataset

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// DefaultHeadRows is how many leading rows the preview shows — the same
// five-row window pandas' df.head() defaults to.
const DefaultHeadRows = 5

// Describe renders the schema description that goes into the generation
// prompt: one line per column with its name, non-null count, and dtype,
// in the shape of pandas' df.info() output. Pure function of the dataset.
func (d *Dataset) Describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "RangeIndex: %d entries\n", d.NumRows())
	fmt.Fprintf(&b, "Data columns (total %d columns):\n", d.NumCols())

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " #\tColumn\tNon-Null Count\tDtype")
	fmt.Fprintln(w, "---\t------\t--------------\t-----")
	for i, c := range d.Columns {
		fmt.Fprintf(w, " %d\t%s\t%d non-null\t%s\n", i, c.Name, c.NonNull, c.Dtype)
	}
	w.Flush()

	return b.String()
}

// Head renders the first n data rows (plus the header) as aligned text,
// the literal preview embedded in the prompt. n <= 0 falls back to
// DefaultHeadRows; n beyond the row count is clamped.
func (d *Dataset) Head(n int) string {
	if n <= 0 {
		n = DefaultHeadRows
	}
	if n > d.NumRows() {
		n = d.NumRows()
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	names := make([]string, d.NumCols())
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(w, "\t"+strings.Join(names, "\t"))

	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%d\t%s\n", i, strings.Join(d.Rows[i], "\t"))
	}
	w.Flush()

	return b.String()
}
