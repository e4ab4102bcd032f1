package recruitment

import (
	"context"
	"io"
	"strings"
	"time"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
)

type Repository interface {
	GetAdvert(ctx context.Context, id string) (Advert, error)
	AdvertBySlug(ctx context.Context, slug string) (Advert, error)
	PublicAdverts(ctx context.Context, today time.Time) ([]Advert, error)
	PageAdverts(ctx context.Context, q listing.Query) (listing.PageResult, error)
	MatchingAdvertIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error)
	EachAdvert(ctx context.Context, set export.Set, fn func(Advert) error) error

	GetApplication(ctx context.Context, id string) (Application, error)
	ApplicationCV(ctx context.Context, id string) (CV, error)
	PageApplications(ctx context.Context, q listing.Query) (listing.PageResult, error)
	MatchingApplicationIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error)
	EachApplication(ctx context.Context, advertID string, set export.Set, fn func(Application) error) error

	ApplicationStatusCounts(ctx context.Context) ([]StatusCount, error)
	OpenAdvertCount(ctx context.Context, today time.Time) (int, error)

	WithTx(ctx context.Context, fn func(TxRepository) error) error
}

type TxRepository interface {
	InsertAdvert(ctx context.Context, a Advert) (Advert, error)
	UpdateAdvert(ctx context.Context, a Advert) (Advert, error)
	LockAdverts(ctx context.Context, ids []string) ([]Advert, error)
	LockAdvertBySlug(ctx context.Context, slug string) (Advert, error)
	DeleteAdverts(ctx context.Context, ids []string) error

	HasApplication(ctx context.Context, advertID, email string) (bool, error)
	InsertApplication(ctx context.Context, a Application, cv []byte) (Application, error)
	LockApplications(ctx context.Context, advertID string, ids []string) ([]Application, error)
	SetApplicationStatus(ctx context.Context, ids []string, status ApplicationStatus) error
	SetApplicationNote(ctx context.Context, id, note string) error
	DeleteApplications(ctx context.Context, ids []string) error

	Audit(ctx context.Context, e audit.Entry) error
}

// BulkResult reports which of the requested ids were changed.
type BulkResult struct {
	Requested int      `json:"requested"`
	Changed   []string `json:"changed"`
	Skipped   []string `json:"skipped"`
	Missing   []string `json:"missing"`
}

func newBulkResult(n int) BulkResult {
	return BulkResult{Requested: n, Changed: []string{}, Skipped: []string{}, Missing: []string{}}
}

type Service struct {
	repo       Repository
	maxCVBytes int64
	now        func() time.Time
}

func NewService(repo Repository, maxCVBytes int64) *Service {
	return &Service{repo: repo, maxCVBytes: maxCVBytes, now: time.Now}
}

func (s *Service) today() time.Time {
	return dateOnly(s.now())
}

// IsOpen reports whether the advert accepts applications today.
func (s *Service) IsOpen(a Advert) bool {
	return a.Open(s.today())
}

func (s *Service) AdvertSource() listing.Source {
	return advertSource{repo: s.repo}
}

func (s *Service) ApplicationSource() listing.Source {
	return applicationSource{repo: s.repo}
}

type advertSource struct{ repo Repository }

func (a advertSource) Page(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return a.repo.PageAdverts(ctx, q)
}

func (a advertSource) MatchingIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return a.repo.MatchingAdvertIDs(ctx, f, limit)
}

type applicationSource struct{ repo Repository }

func (a applicationSource) Page(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return a.repo.PageApplications(ctx, q)
}

func (a applicationSource) MatchingIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return a.repo.MatchingApplicationIDs(ctx, f, limit)
}

func (s *Service) GetAdvert(ctx context.Context, id string) (Advert, error) {
	return s.repo.GetAdvert(ctx, id)
}

// PublicAdverts lists the published adverts whose deadline has not passed.
func (s *Service) PublicAdverts(ctx context.Context) ([]Advert, error) {
	return s.repo.PublicAdverts(ctx, s.today())
}

// PublicAdvert returns any advert except drafts.
func (s *Service) PublicAdvert(ctx context.Context, slug string) (Advert, error) {
	a, err := s.repo.AdvertBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return Advert{}, err
	}
	if a.Status == AdvertDraft {
		return Advert{}, ErrAdvertNotFound
	}
	return a, nil
}

func (s *Service) CreateAdvert(ctx context.Context, actor audit.Actor, in AdvertInput) (Advert, error) {
	a, err := in.Validate()
	if err != nil {
		return Advert{}, err
	}
	a.CreatedBy = actor.UserID
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		created, err := tx.InsertAdvert(ctx, a)
		if err != nil {
			return err
		}
		a = created
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "create_job_advert",
			TargetType: "job_advert",
			TargetID:   a.ID,
			Details:    a.fields(),
		})
	})
	if err != nil {
		return Advert{}, err
	}
	return a, nil
}

func (s *Service) UpdateAdvert(ctx context.Context, actor audit.Actor, id string, in AdvertInput) (Advert, error) {
	next, err := in.Validate()
	if err != nil {
		return Advert{}, err
	}
	var out Advert
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockAdverts(ctx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrAdvertNotFound
		}
		current := locked[0]
		merged := current
		merged.Title = next.Title
		merged.Slug = next.Slug
		merged.Description = next.Description
		merged.Deadline = next.Deadline
		merged.Status = next.Status
		updated, err := tx.UpdateAdvert(ctx, merged)
		if err != nil {
			return err
		}
		out = updated
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "update_job_advert",
			TargetType: "job_advert",
			TargetID:   id,
			Details:    map[string]any{"before": current.fields(), "after": updated.fields()},
		})
	})
	if err != nil {
		return Advert{}, err
	}
	return out, nil
}

func (s *Service) DeleteAdvert(ctx context.Context, actor audit.Actor, id string) error {
	res, err := s.DeleteAdverts(ctx, actor, []string{id})
	if err != nil {
		return err
	}
	if len(res.Changed) == 0 {
		return ErrAdvertNotFound
	}
	return nil
}

// DeleteAdverts hard deletes adverts along with their applications.
func (s *Service) DeleteAdverts(ctx context.Context, actor audit.Actor, ids []string) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, listing.ErrEmptySelection
	}
	res := newBulkResult(len(ids))
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockAdverts(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[string]Advert, len(locked))
		for _, a := range locked {
			found[a.ID] = a
		}
		var doomed []Advert
		for _, id := range ids {
			a, ok := found[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			doomed = append(doomed, a)
			res.Changed = append(res.Changed, id)
		}
		if len(doomed) == 0 {
			return nil
		}
		if err := tx.DeleteAdverts(ctx, res.Changed); err != nil {
			return err
		}
		for _, a := range doomed {
			details := a.fields()
			details["applications"] = a.Applications
			err := tx.Audit(ctx, audit.Entry{
				Actor:      actor,
				Action:     "delete_job_advert",
				TargetType: "job_advert",
				TargetID:   a.ID,
				Details:    details,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

func (s *Service) ExportAdverts(ctx context.Context, actor audit.Actor, set export.Set, w io.Writer) (int, error) {
	if !set.All && len(set.IDs) == 0 {
		return 0, listing.ErrEmptySelection
	}
	ids, err := export.Stream(w, AdvertCSVHeader(), func(emit export.Emit) error {
		return s.repo.EachAdvert(ctx, set, func(a Advert) error {
			return emit(a.ID, a.CSVRow())
		})
	})
	if err != nil {
		return len(ids), err
	}
	return len(ids), s.recordExport(ctx, actor, AdvertDescriptor, "", set, ids)
}

// Submit stores a public application. The advert row stays locked until
// commit so two submissions with the same email cannot both pass the
// duplicate check.
func (s *Service) Submit(ctx context.Context, actor audit.Actor, slug string, sub Submission) (Application, error) {
	app, err := sub.Validate(s.maxCVBytes)
	if err != nil {
		return Application{}, err
	}
	today := s.today()
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		advert, err := tx.LockAdvertBySlug(ctx, strings.TrimSpace(slug))
		if err != nil {
			return err
		}
		if advert.Status == AdvertDraft {
			return ErrAdvertNotFound
		}
		if !advert.Open(today) {
			return ErrAdvertClosed
		}
		dup, err := tx.HasApplication(ctx, advert.ID, app.Email)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateApplication
		}
		app.AdvertID = advert.ID
		app.AdvertTitle = advert.Title
		created, err := tx.InsertApplication(ctx, app, sub.CV.Data)
		if err != nil {
			return err
		}
		app = created
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "submit_application",
			TargetType: "application",
			TargetID:   app.ID,
			Details:    map[string]any{"jobAdvertId": advert.ID, "email": app.Email, "cvFilename": app.CVFilename},
		})
	})
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *Service) GetApplication(ctx context.Context, id string) (Application, error) {
	return s.repo.GetApplication(ctx, id)
}

func (s *Service) CV(ctx context.Context, id string) (CV, error) {
	return s.repo.ApplicationCV(ctx, id)
}

func (s *Service) SetStatus(ctx context.Context, actor audit.Actor, id string, raw string) (bool, error) {
	status, err := ParseApplicationStatus(raw)
	if err != nil {
		return false, err
	}
	res, err := s.setStatus(ctx, actor, "", []string{id}, status)
	if err != nil {
		return false, err
	}
	if len(res.Missing) > 0 {
		return false, ErrApplicationNotFound
	}
	return len(res.Changed) == 1, nil
}

// BulkStatus moves every selected application to status and writes one
// audit row per application that changed.
func (s *Service) BulkStatus(ctx context.Context, actor audit.Actor, advertID string, ids []string, raw string) (BulkResult, error) {
	status, err := ParseApplicationStatus(raw)
	if err != nil {
		return BulkResult{}, err
	}
	if len(ids) == 0 {
		return BulkResult{}, listing.ErrEmptySelection
	}
	return s.setStatus(ctx, actor, advertID, ids, status)
}

func (s *Service) setStatus(ctx context.Context, actor audit.Actor, advertID string, ids []string, status ApplicationStatus) (BulkResult, error) {
	res := newBulkResult(len(ids))
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockApplications(ctx, advertID, ids)
		if err != nil {
			return err
		}
		found := make(map[string]Application, len(locked))
		for _, a := range locked {
			found[a.ID] = a
		}
		var changed []Application
		for _, id := range ids {
			a, ok := found[id]
			switch {
			case !ok:
				res.Missing = append(res.Missing, id)
			case a.Status == status:
				res.Skipped = append(res.Skipped, id)
			default:
				changed = append(changed, a)
				res.Changed = append(res.Changed, id)
			}
		}
		if len(changed) == 0 {
			return nil
		}
		if err := tx.SetApplicationStatus(ctx, res.Changed, status); err != nil {
			return err
		}
		for _, a := range changed {
			err := tx.Audit(ctx, audit.Entry{
				Actor:      actor,
				Action:     "update_application_status",
				TargetType: "application",
				TargetID:   a.ID,
				Details:    map[string]any{"from": string(a.Status), "to": string(status), "email": a.Email},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

func (s *Service) SetNote(ctx context.Context, actor audit.Actor, id, note string) error {
	note = strings.TrimSpace(note)
	if err := ValidateNote(note); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockApplications(ctx, "", []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrApplicationNotFound
		}
		if err := tx.SetApplicationNote(ctx, id, note); err != nil {
			return err
		}
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "update_application_note",
			TargetType: "application",
			TargetID:   id,
			Details:    map[string]any{"before": locked[0].PrivateNote, "after": note},
		})
	})
}

func (s *Service) DeleteApplication(ctx context.Context, actor audit.Actor, id string) error {
	res, err := s.DeleteApplications(ctx, actor, "", []string{id})
	if err != nil {
		return err
	}
	if len(res.Changed) == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (s *Service) DeleteApplications(ctx context.Context, actor audit.Actor, advertID string, ids []string) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, listing.ErrEmptySelection
	}
	res := newBulkResult(len(ids))
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockApplications(ctx, advertID, ids)
		if err != nil {
			return err
		}
		found := make(map[string]Application, len(locked))
		for _, a := range locked {
			found[a.ID] = a
		}
		var doomed []Application
		for _, id := range ids {
			a, ok := found[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			doomed = append(doomed, a)
			res.Changed = append(res.Changed, id)
		}
		if len(doomed) == 0 {
			return nil
		}
		if err := tx.DeleteApplications(ctx, res.Changed); err != nil {
			return err
		}
		for _, a := range doomed {
			err := tx.Audit(ctx, audit.Entry{
				Actor:      actor,
				Action:     "delete_application",
				TargetType: "application",
				TargetID:   a.ID,
				Details:    map[string]any{"jobAdvertId": a.AdvertID, "email": a.Email, "status": string(a.Status)},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

func (s *Service) ExportApplications(ctx context.Context, actor audit.Actor, advertID string, set export.Set, w io.Writer) (int, error) {
	if !set.All && len(set.IDs) == 0 {
		return 0, listing.ErrEmptySelection
	}
	ids, err := export.Stream(w, ApplicationCSVHeader(), func(emit export.Emit) error {
		return s.repo.EachApplication(ctx, advertID, set, func(a Application) error {
			return emit(a.ID, a.CSVRow())
		})
	})
	if err != nil {
		return len(ids), err
	}
	return len(ids), s.recordExport(ctx, actor, ApplicationDescriptor, advertID, set, ids)
}

// Summary feeds the dashboard.
type Summary struct {
	OpenAdverts  int           `json:"openAdverts"`
	Applications []StatusCount `json:"applications"`
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	open, err := s.repo.OpenAdvertCount(ctx, s.today())
	if err != nil {
		return Summary{}, err
	}
	counts, err := s.repo.ApplicationStatusCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{OpenAdverts: open, Applications: counts}, nil
}

func (s *Service) recordExport(ctx context.Context, actor audit.Actor, d listing.Descriptor, scope string, set export.Set, ids []string) error {
	return s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "export_" + strings.ReplaceAll(d.Name, "-", "_"),
			TargetType: d.Entity,
			Details:    map[string]any{"ids": ids, "count": len(ids), "all": set.All, "scope": scope},
		})
	})
}
