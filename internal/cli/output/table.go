package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that print as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// tableStyle is the borderless look shared by every certstorectl table.
// List tables upper-case their headers; key/value output has none.
type tableStyle struct {
	autoHeaders bool
}

var (
	listStyle = tableStyle{autoHeaders: true}
	pairStyle = tableStyle{}
)

func (s tableStyle) writer(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(s.autoHeaders)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetRowSeparator("")
	t.SetColumnSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// PrintTable writes data as aligned columns under upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	t := listStyle.writer(w)
	t.SetHeader(data.Headers())
	t.AppendBulk(data.Rows())
	t.Render()
	return nil
}

// PrintPairs writes "Label: value" lines with the values aligned, as used
// for a single item or server status.
func PrintPairs(w io.Writer, pairs [][2]string) error {
	t := pairStyle.writer(w)
	for _, p := range pairs {
		t.Append([]string{p[0] + ":", p[1]})
	}
	t.Render()
	return nil
}

// TableData is an ad-hoc TableRenderer built row by row.
type TableData struct {
	headers []string
	rows    [][]string
}

func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers, rows: [][]string{}}
}

func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }

func (t *TableData) Rows() [][]string { return t.rows }
