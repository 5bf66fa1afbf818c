package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// settingsTable collects the rows of one `config show` section. Rows added
// with fallback are values still at their built-in default and are greyed
// out when the output is a color terminal.
type settingsTable struct {
	title    string
	headers  table.Row
	rows     []table.Row
	numeric  map[int]bool
	colorize bool
}

func newSettingsTable(out io.Writer, title string, headers ...string) *settingsTable {
	t := &settingsTable{
		title:    title,
		numeric:  map[int]bool{},
		colorize: shouldColorize(out),
	}
	for _, h := range headers {
		t.headers = append(t.headers, h)
	}
	return t
}

// alignNumeric right-aligns the given zero-based columns.
func (t *settingsTable) alignNumeric(cols ...int) *settingsTable {
	for _, c := range cols {
		t.numeric[c] = true
	}
	return t
}

func (t *settingsTable) add(cells ...any) {
	t.rows = append(t.rows, t.pad(cells, false))
}

func (t *settingsTable) fallback(cells ...any) {
	t.rows = append(t.rows, t.pad(cells, true))
}

func (t *settingsTable) pad(cells []any, dim bool) table.Row {
	row := make(table.Row, len(t.headers))
	for i := range row {
		s := ""
		if i < len(cells) {
			s = fmt.Sprint(cells[i])
		}
		if dim && t.colorize {
			s = text.FgHiBlack.Sprint(s)
		}
		row[i] = s
	}
	return row
}

func (t *settingsTable) empty() bool { return len(t.rows) == 0 }

// writeTo renders the section followed by a blank line.
func (t *settingsTable) writeTo(out io.Writer) {
	if len(t.headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(t.title)
	tw.AppendHeader(t.headers)
	tw.AppendRows(t.rows)

	configs := make([]table.ColumnConfig, 0, len(t.headers))
	for i := range t.headers {
		align := text.AlignLeft
		if t.numeric[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	fmt.Fprintln(out, tw.Render())
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
