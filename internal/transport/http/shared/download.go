package shared

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"hrdesk/internal/domain/export"
	"hrdesk/internal/platform/metrics"
)

// deferredCSV sends the download headers on the first write, so a failure
// before any row is produced can still become a JSON error.
type deferredCSV struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (d *deferredCSV) Write(p []byte) (int, error) {
	if !d.started {
		d.started = true
		h := d.w.Header()
		h.Set("Content-Type", "text/csv; charset=utf-8")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.filename}))
		d.w.WriteHeader(http.StatusOK)
	}
	return d.w.Write(p)
}

// ServeCSV streams an export produced by run. Once rows have been sent a
// failure can only abort the connection.
func ServeCSV(w http.ResponseWriter, r *http.Request, collector *metrics.Collector, entity string, all bool, run func(io.Writer) (int, error)) {
	out := &deferredCSV{w: w, filename: export.Filename(entity, all, time.Now())}
	rows, err := run(out)
	if err != nil {
		if !out.started {
			WriteError(w, r, err)
			return
		}
		slog.Error("export aborted", "entity", entity, "rows", rows, "err", err, "requestId", RequestID(r))
		panic(http.ErrAbortHandler)
	}
	collector.RecordExport(rows)
}

// ServeFile sends a stored document inline or as an attachment.
func ServeFile(w http.ResponseWriter, name, contentType string, data []byte, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("file write failed", "file", name, "err", err)
	}
}
