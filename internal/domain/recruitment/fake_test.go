package recruitment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
)

type memRepo struct {
	adverts   map[string]Advert
	apps      map[string]Application
	cvs       map[string][]byte
	audits    []audit.Entry
	seq       int
	failAudit bool
}

func newMemRepo() *memRepo {
	return &memRepo{adverts: map[string]Advert{}, apps: map[string]Application{}, cvs: map[string][]byte{}}
}

func (m *memRepo) next(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memRepo) count(advertID string) int {
	n := 0
	for _, a := range m.apps {
		if a.AdvertID == advertID {
			n++
		}
	}
	return n
}

func (m *memRepo) GetAdvert(_ context.Context, id string) (Advert, error) {
	a, ok := m.adverts[id]
	if !ok {
		return Advert{}, ErrAdvertNotFound
	}
	a.Applications = m.count(id)
	return a, nil
}

func (m *memRepo) AdvertBySlug(_ context.Context, slug string) (Advert, error) {
	for _, a := range m.adverts {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Advert{}, ErrAdvertNotFound
}

func (m *memRepo) PublicAdverts(_ context.Context, today time.Time) ([]Advert, error) {
	out := []Advert{}
	for _, a := range m.adverts {
		if a.Open(today) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (m *memRepo) PageAdverts(context.Context, listing.Query) (listing.PageResult, error) {
	return listing.PageResult{}, nil
}

func (m *memRepo) MatchingAdvertIDs(context.Context, listing.Filter, int) ([]string, error) {
	return nil, nil
}

func (m *memRepo) EachAdvert(_ context.Context, set export.Set, fn func(Advert) error) error {
	for _, id := range set.IDs {
		if a, ok := m.adverts[id]; ok {
			if err := fn(a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memRepo) GetApplication(_ context.Context, id string) (Application, error) {
	a, ok := m.apps[id]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	return a, nil
}

func (m *memRepo) ApplicationCV(_ context.Context, id string) (CV, error) {
	a, ok := m.apps[id]
	if !ok {
		return CV{}, ErrApplicationNotFound
	}
	return CV{Filename: a.CVFilename, ContentType: a.CVContentType, Data: m.cvs[id]}, nil
}

func (m *memRepo) PageApplications(context.Context, listing.Query) (listing.PageResult, error) {
	return listing.PageResult{}, nil
}

func (m *memRepo) MatchingApplicationIDs(context.Context, listing.Filter, int) ([]string, error) {
	return nil, nil
}

func (m *memRepo) EachApplication(_ context.Context, advertID string, set export.Set, fn func(Application) error) error {
	var rows []Application
	if set.All {
		for _, a := range m.apps {
			if advertID == "" || a.AdvertID == advertID {
				rows = append(rows, a)
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	} else {
		for _, id := range set.IDs {
			if a, ok := m.apps[id]; ok {
				rows = append(rows, a)
			}
		}
	}
	for _, a := range rows {
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) ApplicationStatusCounts(context.Context) ([]StatusCount, error) {
	counts := map[string]int{}
	for _, a := range m.apps {
		counts[string(a.Status)]++
	}
	out := []StatusCount{}
	for _, s := range ApplicationStatuses {
		if counts[s] > 0 {
			out = append(out, StatusCount{Status: s, Count: counts[s]})
		}
	}
	return out, nil
}

func (m *memRepo) OpenAdvertCount(ctx context.Context, today time.Time) (int, error) {
	open, _ := m.PublicAdverts(ctx, today)
	return len(open), nil
}

func (m *memRepo) WithTx(_ context.Context, fn func(TxRepository) error) error {
	adverts := make(map[string]Advert, len(m.adverts))
	for k, v := range m.adverts {
		adverts[k] = v
	}
	apps := make(map[string]Application, len(m.apps))
	for k, v := range m.apps {
		apps[k] = v
	}
	audits := len(m.audits)
	if err := fn(m); err != nil {
		m.adverts = adverts
		m.apps = apps
		m.audits = m.audits[:audits]
		return err
	}
	return nil
}

func (m *memRepo) InsertAdvert(_ context.Context, a Advert) (Advert, error) {
	for _, other := range m.adverts {
		if other.Slug == a.Slug {
			return Advert{}, mapSlugError(&pgconn.PgError{Code: "23505", ConstraintName: "job_adverts_slug_key"})
		}
	}
	a.ID = m.next("adv")
	m.adverts[a.ID] = a
	return a, nil
}

func (m *memRepo) UpdateAdvert(_ context.Context, a Advert) (Advert, error) {
	m.adverts[a.ID] = a
	return a, nil
}

func (m *memRepo) LockAdverts(_ context.Context, ids []string) ([]Advert, error) {
	var out []Advert
	for _, id := range ids {
		if a, ok := m.adverts[id]; ok {
			a.Applications = m.count(id)
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) LockAdvertBySlug(ctx context.Context, slug string) (Advert, error) {
	return m.AdvertBySlug(ctx, slug)
}

func (m *memRepo) DeleteAdverts(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.adverts, id)
		for appID, a := range m.apps {
			if a.AdvertID == id {
				delete(m.apps, appID)
			}
		}
	}
	return nil
}

func (m *memRepo) HasApplication(_ context.Context, advertID, email string) (bool, error) {
	for _, a := range m.apps {
		if a.AdvertID == advertID && strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) InsertApplication(_ context.Context, a Application, cv []byte) (Application, error) {
	a.ID = m.next("app")
	a.SubmittedAt = time.Date(2024, 5, 1, 9, 0, m.seq, 0, time.UTC)
	m.apps[a.ID] = a
	m.cvs[a.ID] = cv
	return a, nil
}

func (m *memRepo) LockApplications(_ context.Context, advertID string, ids []string) ([]Application, error) {
	var out []Application
	for _, id := range ids {
		if a, ok := m.apps[id]; ok && (advertID == "" || a.AdvertID == advertID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) SetApplicationStatus(_ context.Context, ids []string, status ApplicationStatus) error {
	for _, id := range ids {
		a := m.apps[id]
		a.Status = status
		m.apps[id] = a
	}
	return nil
}

func (m *memRepo) SetApplicationNote(_ context.Context, id, note string) error {
	a := m.apps[id]
	a.PrivateNote = note
	m.apps[id] = a
	return nil
}

func (m *memRepo) DeleteApplications(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.apps, id)
	}
	return nil
}

func (m *memRepo) Audit(_ context.Context, e audit.Entry) error {
	if m.failAudit {
		return errors.New("audit sink unavailable")
	}
	m.audits = append(m.audits, e)
	return nil
}
