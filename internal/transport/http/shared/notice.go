package shared

import (
	"context"
	"net/http"

	"hrdesk/internal/transport/http/api"
)

// Notifier queues flash messages for a user. *notifications.Service
// satisfies it; a nil Notifier drops messages.
type Notifier interface {
	Success(ctx context.Context, userID, message string)
	Error(ctx context.Context, userID, message string)
}

// Done answers a completed mutation. The notice is returned inline and also
// queued as a flash so a client that navigates away still sees it.
func Done(w http.ResponseWriter, r *http.Request, n Notifier, status int, data any, message string) {
	if n != nil {
		if user := User(r); user.UserID != "" {
			n.Success(r.Context(), user.UserID, message)
		}
	}
	notice := api.Notice{Type: "success", Message: message}
	switch status {
	case http.StatusCreated:
		api.Created(w, data, notice, RequestID(r))
	default:
		api.SuccessWithNotice(w, data, notice, RequestID(r))
	}
}

// Failed reports err like WriteError and queues its message as an error
// flash. Used where a failure must survive a page change, such as a payslip
// that could not be rendered.
func Failed(w http.ResponseWriter, r *http.Request, n Notifier, err error, message string) {
	if n != nil {
		if user := User(r); user.UserID != "" {
			n.Error(r.Context(), user.UserID, message)
		}
	}
	WriteError(w, r, err)
}
