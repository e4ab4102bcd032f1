package recruitment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/db"
	"hrdesk/internal/platform/validate"
)

var AdvertDescriptor = listing.Descriptor{
	Name:          "job-adverts",
	Entity:        "job_advert",
	From:          "job_adverts j",
	IDColumn:      "j.id",
	SearchColumns: []string{"j.title", "j.slug"},
	StatusColumn:  "j.status",
	StatusValues:  AdvertStatuses,
	SortColumns: map[string]string{
		"title":      "j.title",
		"slug":       "j.slug",
		"deadline":   "j.deadline",
		"status":     "j.status",
		"created_at": "j.created_at",
	},
	DefaultSort:  "created_at",
	DefaultDir:   listing.SortDesc,
	ExportColumn: "j.created_at",
}

var ApplicationDescriptor = listing.Descriptor{
	Name:          "applications",
	Entity:        "application",
	From:          "applications a JOIN job_adverts j ON j.id = a.job_advert_id",
	IDColumn:      "a.id",
	ScopeColumn:   "a.job_advert_id",
	SearchColumns: []string{"a.name", "a.email"},
	StatusColumn:  "a.status",
	StatusValues:  ApplicationStatuses,
	SortColumns: map[string]string{
		"name":         "a.name",
		"email":        "a.email",
		"status":       "a.status",
		"submitted_at": "a.submitted_at",
	},
	DefaultSort:  "submitted_at",
	DefaultDir:   listing.SortDesc,
	ExportColumn: "a.submitted_at",
}

const advertColumns = `j.id::text, j.title, j.slug, j.description, j.deadline, j.status, COALESCE(j.created_by::text, ''),
  (SELECT COUNT(1) FROM applications x WHERE x.job_advert_id = j.id), j.created_at, j.updated_at`

const applicationColumns = `a.id::text, a.job_advert_id::text, j.title, a.name, a.email, a.phone, a.cv_filename,
  a.cv_content_type, a.cover_letter, a.status, COALESCE(a.private_note, ''), a.submitted_at`

func scanAdvert(row pgx.Row) (Advert, error) {
	var a Advert
	err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Description, &a.Deadline, &a.Status, &a.CreatedBy,
		&a.Applications, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.AdvertID, &a.AdvertTitle, &a.Name, &a.Email, &a.Phone, &a.CVFilename,
		&a.CVContentType, &a.CoverLetter, &a.Status, &a.PrivateNote, &a.SubmittedAt)
	return a, err
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetAdvert(ctx context.Context, id string) (Advert, error) {
	a, err := scanAdvert(s.DB.QueryRow(ctx, "SELECT "+advertColumns+" FROM job_adverts j WHERE j.id::text = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Advert{}, ErrAdvertNotFound
	}
	return a, err
}

func (s *Store) AdvertBySlug(ctx context.Context, slug string) (Advert, error) {
	a, err := scanAdvert(s.DB.QueryRow(ctx, "SELECT "+advertColumns+" FROM job_adverts j WHERE j.slug = $1", slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Advert{}, ErrAdvertNotFound
	}
	return a, err
}

func (s *Store) PublicAdverts(ctx context.Context, today time.Time) ([]Advert, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+advertColumns+`
    FROM job_adverts j
    WHERE j.status = 'Published' AND j.deadline >= $1::date
    ORDER BY j.deadline, j.id`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Advert{}
	for rows.Next() {
		a, err := scanAdvert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) PageAdverts(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return listing.FetchPage(ctx, s.DB, AdvertDescriptor, advertColumns, q, scanAdvert, func(a Advert) string { return a.ID })
}

func (s *Store) MatchingAdvertIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return listing.FetchIDs(ctx, s.DB, AdvertDescriptor, f, limit)
}

func (s *Store) EachAdvert(ctx context.Context, set export.Set, fn func(Advert) error) error {
	sql, args := set.SQL(AdvertDescriptor, advertColumns, "")
	return listing.ForEach(ctx, s.DB, sql, args, scanAdvert, fn)
}

func (s *Store) GetApplication(ctx context.Context, id string) (Application, error) {
	sql, args := ApplicationDescriptor.SelectedSQL(applicationColumns, "", []string{id})
	a, err := scanApplication(s.DB.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrApplicationNotFound
	}
	return a, err
}

func (s *Store) ApplicationCV(ctx context.Context, id string) (CV, error) {
	var cv CV
	err := s.DB.QueryRow(ctx, `
    SELECT cv_filename, cv_content_type, cv FROM applications WHERE id::text = $1
  `, id).Scan(&cv.Filename, &cv.ContentType, &cv.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return CV{}, ErrApplicationNotFound
	}
	if err != nil {
		return CV{}, err
	}
	if len(cv.Data) == 0 {
		return CV{}, ErrCVNotFound
	}
	return cv, nil
}

func (s *Store) PageApplications(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return listing.FetchPage(ctx, s.DB, ApplicationDescriptor, applicationColumns, q, scanApplication, func(a Application) string { return a.ID })
}

func (s *Store) MatchingApplicationIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return listing.FetchIDs(ctx, s.DB, ApplicationDescriptor, f, limit)
}

func (s *Store) EachApplication(ctx context.Context, advertID string, set export.Set, fn func(Application) error) error {
	sql, args := set.SQL(ApplicationDescriptor, applicationColumns, advertID)
	return listing.ForEach(ctx, s.DB, sql, args, scanApplication, fn)
}

func (s *Store) ApplicationStatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.DB.Query(ctx, "SELECT status, COUNT(1) FROM applications GROUP BY status ORDER BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StatusCount{}
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) OpenAdvertCount(ctx context.Context, today time.Time) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM job_adverts WHERE status = 'Published' AND deadline >= $1::date
  `, today).Scan(&n)
	return n, err
}

func (s *Store) WithTx(ctx context.Context, fn func(TxRepository) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) InsertAdvert(ctx context.Context, a Advert) (Advert, error) {
	err := t.tx.QueryRow(ctx, `
    INSERT INTO job_adverts (title, slug, description, deadline, status, created_by)
    VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid)
    RETURNING id::text, created_at, updated_at
  `, a.Title, a.Slug, a.Description, a.Deadline, string(a.Status), a.CreatedBy).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return a, mapSlugError(err)
}

func (t *txStore) UpdateAdvert(ctx context.Context, a Advert) (Advert, error) {
	err := t.tx.QueryRow(ctx, `
    UPDATE job_adverts
    SET title = $2, slug = $3, description = $4, deadline = $5, status = $6, updated_at = now()
    WHERE id::text = $1
    RETURNING updated_at
  `, a.ID, a.Title, a.Slug, a.Description, a.Deadline, string(a.Status)).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Advert{}, ErrAdvertNotFound
	}
	return a, mapSlugError(err)
}

func (t *txStore) LockAdverts(ctx context.Context, ids []string) ([]Advert, error) {
	sql, args := AdvertDescriptor.SelectedSQL(advertColumns, "", ids)
	return listing.Collect(ctx, t.tx, sql+" FOR UPDATE OF j", args, scanAdvert)
}

func (t *txStore) LockAdvertBySlug(ctx context.Context, slug string) (Advert, error) {
	a, err := scanAdvert(t.tx.QueryRow(ctx, "SELECT "+advertColumns+" FROM job_adverts j WHERE j.slug = $1 FOR UPDATE OF j", slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Advert{}, ErrAdvertNotFound
	}
	return a, err
}

func (t *txStore) DeleteAdverts(ctx context.Context, ids []string) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM job_adverts WHERE id::text = ANY($1)", ids)
	return err
}

func (t *txStore) HasApplication(ctx context.Context, advertID, email string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM applications WHERE job_advert_id::text = $1 AND lower(email) = lower($2))
  `, advertID, email).Scan(&exists)
	return exists, err
}

func (t *txStore) InsertApplication(ctx context.Context, a Application, cv []byte) (Application, error) {
	err := t.tx.QueryRow(ctx, `
    INSERT INTO applications (job_advert_id, name, email, phone, cv, cv_filename, cv_content_type, cover_letter, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING id::text, submitted_at
  `, a.AdvertID, a.Name, a.Email, a.Phone, cv, a.CVFilename, a.CVContentType, a.CoverLetter, string(a.Status)).
		Scan(&a.ID, &a.SubmittedAt)
	return a, err
}

func (t *txStore) LockApplications(ctx context.Context, advertID string, ids []string) ([]Application, error) {
	sql, args := ApplicationDescriptor.SelectedSQL(applicationColumns, advertID, ids)
	return listing.Collect(ctx, t.tx, sql+" FOR UPDATE OF a", args, scanApplication)
}

func (t *txStore) SetApplicationStatus(ctx context.Context, ids []string, status ApplicationStatus) error {
	_, err := t.tx.Exec(ctx, "UPDATE applications SET status = $2 WHERE id::text = ANY($1)", ids, string(status))
	return err
}

func (t *txStore) SetApplicationNote(ctx context.Context, id, note string) error {
	_, err := t.tx.Exec(ctx, "UPDATE applications SET private_note = NULLIF($2, '') WHERE id::text = $1", id, note)
	return err
}

func (t *txStore) DeleteApplications(ctx context.Context, ids []string) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM applications WHERE id::text = ANY($1)", ids)
	return err
}

func (t *txStore) Audit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}

// mapSlugError turns a unique violation on the slug into a field issue.
func mapSlugError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &validate.Error{Issues: []validate.Issue{{Field: "slug", Reason: ErrSlugTaken.Error()}}}
	}
	return err
}
