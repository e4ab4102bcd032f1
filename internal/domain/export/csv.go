package export

import (
	"bufio"
	"io"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	filenameLayout = "2006-01-02_15-04-05"
)

// Writer emits CSV with every field wrapped in double quotes and inner
// quotes doubled. Lines end with "\n".
type Writer struct {
	w    *bufio.Writer
	rows int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteString(Quote(field)); err != nil {
			return err
		}
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows counts lines written, header included.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

func Quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Filename builds "<entity>_<timestamp>.csv", prefixed with "all_" for
// unfiltered exports.
func Filename(entity string, all bool, now time.Time) string {
	name := entity + "_" + now.Format(filenameLayout) + ".csv"
	if all {
		return "all_" + name
	}
	return name
}
