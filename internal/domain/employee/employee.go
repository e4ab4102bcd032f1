package employee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/listing"
)

var ErrNotFound = errors.New("employee not found")

type Employee struct {
	ID         string `json:"id"`
	UserID     string `json:"userId,omitempty"`
	Number     string `json:"employeeNumber"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const selectEmployee = `
  SELECT id::text, COALESCE(user_id::text, ''), employee_number, first_name, last_name, email,
         COALESCE(department, ''), COALESCE(job_title, '')
  FROM employees`

func (s *Store) Get(ctx context.Context, id string) (Employee, error) {
	var e Employee
	err := s.DB.QueryRow(ctx, selectEmployee+" WHERE id::text = $1", id).
		Scan(&e.ID, &e.UserID, &e.Number, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.JobTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return e, err
}

func (s *Store) ByUserID(ctx context.Context, userID string) (Employee, error) {
	var e Employee
	err := s.DB.QueryRow(ctx, selectEmployee+" WHERE user_id::text = $1", userID).
		Scan(&e.ID, &e.UserID, &e.Number, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.JobTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return e, err
}

func (s *Store) Count(ctx context.Context, search string) (int, error) {
	where, args := searchClause(search)
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) List(ctx context.Context, search string, limit, offset int) ([]Employee, error) {
	where, args := searchClause(search)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, selectEmployee+where+
		fmt.Sprintf(" ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Employee, 0, limit)
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.UserID, &e.Number, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.JobTitle); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func searchClause(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	pattern := "%" + listing.EscapeLike(search) + "%"
	return ` WHERE (first_name || ' ' || last_name) ILIKE $1 ESCAPE '\' OR employee_number ILIKE $1 ESCAPE '\'`, []any{pattern}
}
