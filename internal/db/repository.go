package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrSiteNotFound      = errors.New("site not found")
	ErrDomainTaken       = errors.New("domain already exists")
	ErrSiteLimitReached  = errors.New("maximum number of sites reached")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrIllegalTransition = errors.New("illegal status transition")
)

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string, maxConns, maxIdleConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Site operations

// CreateSite checks the caller's site count and inserts the new record in a
// single transaction. Two concurrent creations can still both pass the count
// check; the limit is best-effort, not a reservation.
func (r *Repository) CreateSite(ctx context.Context, site *Site, maxSitesPerUser int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM sites WHERE user_id = $1`, site.UserID); err != nil {
		return err
	}
	if count >= maxSitesPerUser {
		return ErrSiteLimitReached
	}

	query := `
		INSERT INTO sites (
			user_id, domain, title, admin_email, admin_user,
			db_name, db_user, db_password, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		site.UserID, site.Domain, site.Title, site.AdminEmail, site.AdminUser,
		site.DBName, site.DBUser, site.DBPassword, StatusPending,
	).Scan(&site.ID, &site.Status, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDomainTaken
		}
		return err
	}

	return tx.Commit()
}

func (r *Repository) GetSite(ctx context.Context, id int64) (*Site, error) {
	var s Site
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sites WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrSiteNotFound
	}
	return &s, err
}

func (r *Repository) GetUserSite(ctx context.Context, id, userID int64) (*Site, error) {
	var s Site
	err := r.db.GetContext(ctx, &s,
		`SELECT * FROM sites WHERE id = $1 AND user_id = $2`, id, userID)
	if err == sql.ErrNoRows {
		return nil, ErrSiteNotFound
	}
	return &s, err
}

func (r *Repository) ListSitesByUser(ctx context.Context, userID int64) ([]*Site, error) {
	sites := []*Site{}
	err := r.db.SelectContext(ctx, &sites,
		`SELECT * FROM sites WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return sites, err
}

func (r *Repository) CountSitesByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM sites WHERE user_id = $1`, userID)
	return count, err
}

// TransitionSite applies a single lifecycle step. The UPDATE is guarded by the
// current status, so a stale caller fails instead of clobbering a newer state.
func (r *Repository) TransitionSite(ctx context.Context, id int64, from, to SiteStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sites SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: site %d is not %s", ErrIllegalTransition, id, from)
	}
	return nil
}

// MarkSiteFailed moves an installing site to failed and stores the error text
// verbatim. Polling get-by-id is the only way this surfaces to the user.
func (r *Repository) MarkSiteFailed(ctx context.Context, id int64, errorLog string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sites SET status = $1, error_log = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		StatusFailed, errorLog, id, StatusInstalling)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: site %d is not %s", ErrIllegalTransition, id, StatusInstalling)
	}
	return nil
}

func (r *Repository) AppendInstallLog(ctx context.Context, id int64, entry string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sites SET install_log = COALESCE(install_log, '') || $1, updated_at = now()
		 WHERE id = $2`,
		entry, id)
	return err
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.Name, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return &u, err
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	return &u, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
