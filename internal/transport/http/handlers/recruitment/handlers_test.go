package recruitmenthandler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/platform/validate"
)

func multipartRequest(t *testing.T, fields map[string]string, cv []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if cv != nil {
		fw, err := mw.CreateFormFile("cv", "resume.pdf")
		require.NoError(t, err)
		_, err = fw.Write(cv)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/public/jobs/analyst/apply", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDecodeSubmission(t *testing.T) {
	h := &Handler{MaxCVBytes: 1024}
	req := multipartRequest(t, map[string]string{
		"name":        "Grace Hopper",
		"email":       "grace@example.com",
		"coverLetter": "I like compilers.",
	}, []byte("%PDF-1.4"))

	sub, err := h.decodeSubmission(req)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", sub.Name)
	assert.Equal(t, "grace@example.com", sub.Email)
	assert.Equal(t, "I like compilers.", sub.CoverLetter)
	assert.Equal(t, "resume.pdf", sub.CV.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), sub.CV.Data)
}

func TestDecodeSubmissionWithoutCV(t *testing.T) {
	h := &Handler{MaxCVBytes: 1024}
	sub, err := h.decodeSubmission(multipartRequest(t, map[string]string{"name": "Grace"}, nil))
	require.NoError(t, err)
	assert.Empty(t, sub.CV.Data)
}

func TestDecodeSubmissionKeepsOversizeMarker(t *testing.T) {
	h := &Handler{MaxCVBytes: 16}
	sub, err := h.decodeSubmission(multipartRequest(t, nil, bytes.Repeat([]byte("x"), 64)))
	require.NoError(t, err)
	assert.Len(t, sub.CV.Data, 17)
}

func TestDecodeSubmissionRequiresMultipart(t *testing.T) {
	h := &Handler{MaxCVBytes: 1024}
	req := httptest.NewRequest(http.MethodPost, "/public/jobs/analyst/apply", strings.NewReader(`{"name":"Grace"}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := h.decodeSubmission(req)
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "body", verr.Issues[0].Field)
}
