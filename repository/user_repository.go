package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"FragFM/core/errs"
	"FragFM/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetActiveUserByUsername(ctx context.Context, username string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

const userColumns = `id, username, name, password_hash, active, last_login, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var name sql.NullString
	var lastLogin sql.NullTime
	if err := row.Scan(&user.ID, &user.Username, &name, &user.PasswordHash, &user.Active, &lastLogin, &user.CreatedAt); err != nil {
		return nil, err
	}
	if name.Valid {
		user.Name = &name.String
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	const op = "repository.CreateUser"
	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO users (username, name, password_hash, active) VALUES (?, ?, ?, 1)")
	if err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to prepare create user statement: %w", err))
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, user.Username, nullString(user.Name), user.PasswordHash)
	if err != nil {
		return 0, catalogErr(op, "username already exists", fmt.Errorf("failed to execute create user statement: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to get last insert ID for user: %w", err))
	}
	return id, nil
}

// GetUserByID retrieves an active user by their ID.
func (r *mysqlUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	const op = "repository.GetUserByID"
	user, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? AND active = 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf(op, "user not found or inactive")
	}
	if err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to scan user row for ID %d: %w", id, err))
	}
	return user, nil
}

// GetActiveUserByUsername retrieves an active user by username.
func (r *mysqlUserRepository) GetActiveUserByUsername(ctx context.Context, username string) (*model.User, error) {
	const op = "repository.GetActiveUserByUsername"
	user, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ? AND active = 1", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf(op, "user not found or inactive")
	}
	if err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to scan user row for username %s: %w", username, err))
	}
	return user, nil
}

// TouchLastLogin records a successful login.
func (r *mysqlUserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = UTC_TIMESTAMP() WHERE id = ?", id); err != nil {
		return errs.E(errs.Catalog, "repository.TouchLastLogin", "", fmt.Errorf("failed to update last login for user %d: %w", id, err))
	}
	return nil
}
