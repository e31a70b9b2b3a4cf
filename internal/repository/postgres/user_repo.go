package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xela07ax/shieldforce/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(connString string) *UserRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		log.Fatal(err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &UserRepo{db: db}
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetUserByUsername достает оператора Console для логина.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	var scopes []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, role, scopes, created_at, updated_at
		 FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &scopes, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Не найден — это не ошибка инфраструктуры
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := json.Unmarshal(scopes, &u.Scopes); err != nil {
		u.Scopes = map[string]bool{}
	}
	return &u, nil
}
