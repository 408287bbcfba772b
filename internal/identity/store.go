// Package identity holds the account store the engine reads alert recipients
// from, plus the small management surface exposed over HTTP (signup, login,
// approval). The engine itself never authenticates ingestion.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// Roles and statuses stored on an account.
const (
	RoleAdmin     = "Admin"
	RoleAuthority = "Authority"

	StatusPending  = "pending"
	StatusApproved = "approved"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrNotFound           = errors.New("user not found")
)

// User is an account without its credential.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Store is a sqlite-backed account repository. The mutex serializes writes;
// sqlite allows only one writer at a time.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT,
            email TEXT UNIQUE,
            password TEXT,
            role TEXT DEFAULT 'Authority',
            status TEXT DEFAULT 'pending'
        )
    `)
	if err != nil {
		return fmt.Errorf("init identity schema: %w", err)
	}
	return nil
}

// SignUp registers an account. The very first account becomes an approved
// Admin; every later account is an Authority pending approval.
func (s *Store) SignUp(ctx context.Context, name, email, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return User{}, fmt.Errorf("count users: %w", err)
	}
	role, status := RoleAuthority, StatusPending
	if count == 0 {
		role, status = RoleAdmin, StatusApproved
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, role, status) VALUES (?, ?, ?, ?, ?)`,
		name, email, string(hash), role, status)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("insert user id: %w", err)
	}

	return User{ID: id, Name: name, Email: email, Role: role, Status: status}, nil
}

// Authenticate verifies a credential pair. Pending accounts authenticate but
// are rejected with ErrPendingApproval so callers can distinguish the cases.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password, role, status FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	if u.Status != StatusApproved {
		return User{}, ErrPendingApproval
	}
	return u, nil
}

// List returns every account, without credentials.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, role, status FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Approve marks an account approved, making it an alert recipient.
func (s *Store) Approve(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE id = ?`, StatusApproved, id)
	if err != nil {
		return fmt.Errorf("approve user: %w", err)
	}
	return requireRowAffected(res)
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRowAffected(res)
}

// ListApprovedRecipients returns the email addresses of approved accounts.
// The result is a snapshot; callers must not assume any ordering.
func (s *Store) ListApprovedRecipients(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email FROM users WHERE status = ?`, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// CheckReadiness reports whether the store is reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
