package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
	"github.com/jmoiron/sqlx"
)

const userColumns = `uid, display_name, photo_url, email, role, can_view_list, can_admin_list, created_at, updated_at`

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create validates and inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if user.Created.IsZero() {
		user.Created = now
	}
	user.Updated = user.Created

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:uid, :display_name, :photo_url, :email, :role, :can_view_list, :can_admin_list, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return insertError("user", user.UID, err)
	}
	return nil
}

// Get retrieves a user by UID.
func (r *UserRepository) Get(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = ?`

	if err := getOne(ctx, r.db, &user, fmt.Errorf("%w: %s", shared.ErrUserNotFound, uid), query, uid); err != nil {
		return nil, err
	}
	return &user, nil
}

// Find retrieves a user by UID, returning nil without error when no record exists.
func (r *UserRepository) Find(ctx context.Context, uid string) (*models.User, error) {
	user, err := r.Get(ctx, uid)
	if isNotFound(err) {
		return nil, nil
	}
	return user, err
}

// Update modifies an existing user's profile, role, and access lists.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	user.Updated = time.Now().UTC()

	query := `
		UPDATE users
		SET display_name = ?, photo_url = ?, email = ?, role = ?, can_view_list = ?, can_admin_list = ?, updated_at = ?
		WHERE uid = ?
	`
	err := execAffecting(ctx, r.db, fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.UID), query,
		user.DisplayName, user.PhotoURL, user.Email, user.Role, user.CanViewList, user.CanAdminList, user.Updated, user.UID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user by UID. The linked channel is removed with it.
func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM channels WHERE uid = ?`), uid); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	err := execAffecting(ctx, r.db, fmt.Errorf("%w: %s", shared.ErrUserNotFound, uid), `DELETE FROM users WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// List retrieves all users matching the given criteria ("role", "email"), oldest first.
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1 = 1`
	args := []any{}

	if role, ok := criteria["role"]; ok {
		query += " AND role = ?"
		args = append(args, fmt.Sprint(role))
	}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY created_at ASC, uid ASC"

	users := []*models.User{}
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}
