package migrations

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Reporter prints migration progress. Colors are dropped automatically when
// the output is not a terminal.
type Reporter struct {
	out     io.Writer
	info    *color.Color
	success *color.Color
	warn    *color.Color
}

func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		out:     out,
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
	}
}

func (r *Reporter) Infof(format string, args ...any) {
	fmt.Fprintln(r.out, r.info.Sprintf(format, args...))
}

func (r *Reporter) Successf(format string, args ...any) {
	fmt.Fprintln(r.out, r.success.Sprintf(format, args...))
}

func (r *Reporter) Warnf(format string, args ...any) {
	fmt.Fprintln(r.out, r.warn.Sprintf(format, args...))
}
