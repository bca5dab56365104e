package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bilancio/internal/core"
)

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, hashedPassword string) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, hashed_password, is_active) VALUES (?, ?, 1)`,
		email, hashedPassword)
	if err != nil {
		if isConstraintViolation(err) {
			return core.User{}, fmt.Errorf("create user: %w", core.ErrConflict)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user id: %w", err)
	}
	return core.User{ID: id, Email: email, HashedPassword: hashedPassword, IsActive: true}, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var u core.User
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, is_active FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.HashedPassword, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	u.IsActive = active != 0
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, is_active FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Email, &u.HashedPassword, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	u.IsActive = active != 0
	return u, nil
}

func (r *SQLiteRepository) UpdateUserPassword(ctx context.Context, id int64, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET hashed_password = ? WHERE id = ?`, hashedPassword, id)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
