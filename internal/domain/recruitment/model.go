package recruitment

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"hrdesk/internal/domain/export"
	"hrdesk/internal/platform/validate"
)

var (
	ErrAdvertNotFound       = errors.New("job advert not found")
	ErrApplicationNotFound  = errors.New("application not found")
	ErrAdvertClosed         = errors.New("job advert is not accepting applications")
	ErrDuplicateApplication = errors.New("an application with this email already exists for this advert")
	ErrSlugTaken            = errors.New("slug is already in use")
	ErrCVNotFound           = errors.New("application has no CV")
)

const (
	MaxCoverLetter = 600
	maxTitle       = 255
	maxNote        = 2000
)

type AdvertStatus string

const (
	AdvertDraft     AdvertStatus = "Draft"
	AdvertPublished AdvertStatus = "Published"
	AdvertExpired   AdvertStatus = "Expired"
)

var AdvertStatuses = []string{string(AdvertDraft), string(AdvertPublished), string(AdvertExpired)}

type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "Pending"
	ApplicationShortlisted ApplicationStatus = "Shortlisted"
	ApplicationRejected    ApplicationStatus = "Rejected"
	ApplicationInvited     ApplicationStatus = "Invited"
)

var ApplicationStatuses = []string{
	string(ApplicationPending),
	string(ApplicationShortlisted),
	string(ApplicationRejected),
	string(ApplicationInvited),
}

type Advert struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Slug         string       `json:"slug"`
	Description  string       `json:"description"`
	Deadline     time.Time    `json:"deadline"`
	Status       AdvertStatus `json:"status"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	Applications int          `json:"applications"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Open reports whether the advert accepts applications on day.
func (a Advert) Open(day time.Time) bool {
	if a.Status != AdvertPublished {
		return false
	}
	return !dateOnly(a.Deadline).Before(dateOnly(day))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a Advert) fields() map[string]any {
	return map[string]any{
		"title":    a.Title,
		"slug":     a.Slug,
		"deadline": export.Date(a.Deadline),
		"status":   string(a.Status),
	}
}

type AdvertInput struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Status      string `json:"status"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func (in AdvertInput) Validate() (Advert, error) {
	v := validate.New()
	title := strings.TrimSpace(in.Title)
	if v.Required("title", title) {
		v.MaxLen("title", title, maxTitle)
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(title)
		if slug == "" && title != "" {
			v.Add("slug", "could not be derived from the title; provide one")
		}
	} else if !slugPattern.MatchString(slug) {
		v.Add("slug", "must contain only lowercase letters, digits and single hyphens")
	}
	v.MaxLen("slug", slug, maxTitle)
	v.Required("description", in.Description)
	deadline, _ := v.Date("deadline", in.Deadline)
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = string(AdvertDraft)
	}
	v.Enum("status", status, AdvertStatuses)
	if err := v.Err(); err != nil {
		return Advert{}, err
	}
	return Advert{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Deadline:    deadline,
		Status:      AdvertStatus(status),
	}, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type Application struct {
	ID            string            `json:"id"`
	AdvertID      string            `json:"jobAdvertId"`
	AdvertTitle   string            `json:"jobAdvertTitle"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	CVFilename    string            `json:"cvFilename"`
	CVContentType string            `json:"cvContentType"`
	CoverLetter   string            `json:"coverLetter"`
	Status        ApplicationStatus `json:"status"`
	PrivateNote   string            `json:"privateNote,omitempty"`
	SubmittedAt   time.Time         `json:"submittedAt"`
}

type CV struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Submission struct {
	Name        string
	Email       string
	Phone       string
	CoverLetter string
	CV          CV
}

var cvTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func (s Submission) Validate(maxCVBytes int64) (Application, error) {
	v := validate.New()
	name := strings.TrimSpace(s.Name)
	if v.Required("name", name) {
		v.MaxLen("name", name, maxTitle)
	}
	mail := strings.TrimSpace(s.Email)
	if v.Required("email", mail) {
		v.Email("email", mail)
	}
	v.MaxLen("phone", strings.TrimSpace(s.Phone), 50)
	v.MaxLen("coverLetter", s.CoverLetter, MaxCoverLetter)

	contentType := ""
	switch {
	case len(s.CV.Data) == 0:
		v.Add("cv", "is required")
	case maxCVBytes > 0 && int64(len(s.CV.Data)) > maxCVBytes:
		v.Add("cv", "is too large")
	default:
		ct, ok := cvTypes[strings.ToLower(filepath.Ext(s.CV.Filename))]
		if !ok {
			v.Add("cv", "must be a PDF or Word document")
		}
		contentType = ct
	}
	if err := v.Err(); err != nil {
		return Application{}, err
	}
	return Application{
		Name:          name,
		Email:         mail,
		Phone:         strings.TrimSpace(s.Phone),
		CoverLetter:   strings.TrimSpace(s.CoverLetter),
		CVFilename:    filepath.Base(s.CV.Filename),
		CVContentType: contentType,
		Status:        ApplicationPending,
	}, nil
}

func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	v := validate.New()
	v.Enum("status", raw, ApplicationStatuses)
	if err := v.Err(); err != nil {
		return "", err
	}
	return ApplicationStatus(raw), nil
}

func ValidateNote(note string) error {
	v := validate.New()
	v.MaxLen("privateNote", note, maxNote)
	return v.Err()
}

func AdvertCSVHeader() []string {
	return []string{"ID", "Title", "Slug", "Deadline", "Status", "Applications", "Created At"}
}

func (a Advert) CSVRow() []string {
	created := a.CreatedAt
	return []string{
		a.ID,
		a.Title,
		a.Slug,
		export.Date(a.Deadline),
		string(a.Status),
		export.Count(a.Applications),
		export.Timestamp(&created),
	}
}

func ApplicationCSVHeader() []string {
	return []string{"ID", "Job Advert", "Name", "Email", "Phone", "Status", "Submitted At", "CV File", "Cover Letter"}
}

func (a Application) CSVRow() []string {
	submitted := a.SubmittedAt
	return []string{
		a.ID,
		a.AdvertTitle,
		a.Name,
		a.Email,
		a.Phone,
		string(a.Status),
		export.Timestamp(&submitted),
		a.CVFilename,
		a.CoverLetter,
	}
}
