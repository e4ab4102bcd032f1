package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/requestctx"
	"hrdesk/internal/platform/validate"
	"hrdesk/internal/transport/http/middleware"
)

// DecodeJSON reads a single JSON object into dst. Unknown fields and
// malformed bodies come back as a validation error on "body".
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return bodyError("is required")
		}
		return bodyError(fmt.Sprintf("is not valid JSON: %v", err))
	}
	if dec.More() {
		return bodyError("must contain a single JSON object")
	}
	return nil
}

func bodyError(reason string) error {
	v := validate.New()
	v.Add("body", reason)
	return v.Err()
}

// Actor is who performed the request, as written to audit rows.
func Actor(r *http.Request) audit.Actor {
	user, _ := middleware.GetUser(r.Context())
	return audit.Actor{
		UserID:    user.UserID,
		RequestID: requestctx.GetRequestID(r.Context()),
		IP:        requestctx.GetClientIP(r.Context()),
	}
}

func User(r *http.Request) auth.UserContext {
	user, _ := middleware.GetUser(r.Context())
	return user
}

func RequestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// QueryBool reads a boolean query parameter; absent or unparsable is false.
func QueryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && v
}
