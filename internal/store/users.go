package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tinytales/internal/services"
)

// CreateUser inserts u, assigning an id and signup date when they are unset.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Name == "" || u.Email == "" {
		return User{}, services.Wrap(services.ErrValidation, "store", "create user", "name and email are required", nil)
	}
	if u.ID == "" {
		u.ID = newID("user")
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	if _, ok := ParseUserStatus(string(u.Status)); !ok {
		return User{}, services.Wrap(services.ErrValidation, "store", "create user", fmt.Sprintf("invalid status %q", u.Status), nil)
	}
	if u.SignupDate.IsZero() {
		u.SignupDate = s.now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, string(u.Status), formatTime(u.SignupDate),
		boolToInt(u.CanGenerateStory), boolToInt(u.CanGenerateIllustration),
		boolToInt(u.CanExportPDF), boolToInt(u.CanExportGIF), boolToInt(u.CanExportVideo),
		nullableInt(u.StoryGenerationLimit), nullableInt(u.IllustrationGenerationLimit),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, services.Wrap(services.ErrValidation, "store", "create user", fmt.Sprintf("email %q already registered", u.Email), err)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ListUsers returns users, newest signup first.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY signup_date DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser loads one user by id.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	ctx = ensureContext(ctx)
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, userNotFound("get user", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// DeleteUser removes a user record.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return userNotFound("delete user", id)
	}
	return nil
}

// SetStatus changes a user's approval state.
func (s *Store) SetStatus(ctx context.Context, id string, status UserStatus) (User, error) {
	if _, ok := ParseUserStatus(string(status)); !ok {
		return User{}, services.Wrap(services.ErrValidation, "store", "set status", fmt.Sprintf("invalid status %q", status), nil)
	}
	res, err := s.execWithRetry(ctx, "UPDATE users SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return User{}, fmt.Errorf("update user status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, userNotFound("set status", id)
	}
	return s.GetUser(ctx, id)
}

// Approve marks a user approved.
func (s *Store) Approve(ctx context.Context, id string) (User, error) {
	return s.SetStatus(ctx, id, StatusApproved)
}

// ToggleApproval flips a user between pending and approved.
func (s *Store) ToggleApproval(ctx context.Context, id string) (User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	next := StatusApproved
	if u.Status == StatusApproved {
		next = StatusPending
	}
	return s.SetStatus(ctx, id, next)
}

// UpdateAccess replaces a user's capabilities and numeric limits. Negative
// limits are rejected.
func (s *Store) UpdateAccess(ctx context.Context, id string, access Access) (User, error) {
	for name, limit := range map[string]*int{
		"story generation limit":        access.StoryGenerationLimit,
		"illustration generation limit": access.IllustrationGenerationLimit,
	} {
		if limit != nil && *limit < 0 {
			return User{}, services.Wrap(services.ErrValidation, "store", "update access", name+" must be >= 0", nil)
		}
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE users SET can_generate_story = ?, can_generate_illustration = ?, can_export_pdf = ?,
			can_export_gif = ?, can_export_video = ?, story_generation_limit = ?, illustration_generation_limit = ?
		WHERE id = ?`,
		boolToInt(access.CanGenerateStory), boolToInt(access.CanGenerateIllustration),
		boolToInt(access.CanExportPDF), boolToInt(access.CanExportGIF), boolToInt(access.CanExportVideo),
		nullableInt(access.StoryGenerationLimit), nullableInt(access.IllustrationGenerationLimit),
		id,
	)
	if err != nil {
		return User{}, fmt.Errorf("update user access: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, userNotFound("update access", id)
	}
	return s.GetUser(ctx, id)
}

func userNotFound(op, id string) error {
	return services.Wrap(services.ErrNotFound, "store", op, fmt.Sprintf("user %q not found", id), nil)
}
