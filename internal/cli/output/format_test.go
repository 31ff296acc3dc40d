package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

type file struct {
	Path        string `json:"path"`
	IsProtected bool   `json:"isProtected"`
}

type files []file

func (f files) Headers() []string { return []string{"PATH", "PROTECTED"} }
func (f files) Rows() [][]string {
	rows := make([][]string, 0, len(f))
	for _, x := range f {
		p := "no"
		if x.IsProtected {
			p = "yes"
		}
		rows = append(rows, []string{x.Path, p})
	}
	return rows
}

func TestPrinter_Print(t *testing.T) {
	data := files{{Path: "public/seal.png", IsProtected: true}}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data, nil))
	assert.Contains(t, buf.String(), "PROTECTED")
	assert.Contains(t, buf.String(), "public/seal.png")

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(data, nil))
	assert.Contains(t, buf.String(), `"isProtected": true`)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(data, nil))
	assert.Contains(t, buf.String(), "isProtected: true")

	buf.Reset()
	table := NewTableData("COUNT")
	table.AddRow("1")
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data, table))
	assert.Contains(t, buf.String(), "COUNT")
	assert.NotContains(t, buf.String(), "public/seal.png")
}

func TestPrinter_TableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(map[string]int{"n": 1}, nil))
	assert.Contains(t, buf.String(), `"n": 1`)
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("created")
	p.Warning("2 item(s) could not be moved:")
	assert.Equal(t, "created\n2 item(s) could not be moved:\n", buf.String())
}

func TestPrinter_NoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable, true).Success("ok")
	assert.Equal(t, "ok\n", buf.String())
}

func TestPrinter_Color(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{out: &buf, format: FormatTable, color: true}
	p.Success("ok")
	p.Warning("careful")
	assert.Equal(t, "\033[32mok\033[0m\n\033[33mcareful\033[0m\n", buf.String())
}
