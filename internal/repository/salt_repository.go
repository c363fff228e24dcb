package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-voice-api/internal/models"
)

// SaltRepository persists the rotating daily secrets used for anonymous
// token derivation and caches them in-process. A day's salt is created
// lazily on first use; concurrent first-use races are resolved by the
// ON CONFLICT clause so every process converges on the same secret.
type SaltRepository struct {
	db *sqlx.DB

	mu    sync.RWMutex
	cache map[string]string
}

// NewSaltRepository constructs a new repository.
func NewSaltRepository(db *sqlx.DB) *SaltRepository {
	return &SaltRepository{db: db, cache: make(map[string]string)}
}

// SaltForDay returns the secret for the given day key, generating and
// persisting one if none exists yet.
func (r *SaltRepository) SaltForDay(ctx context.Context, day string) (string, error) {
	r.mu.RLock()
	if secret, ok := r.cache[day]; ok {
		r.mu.RUnlock()
		return secret, nil
	}
	r.mu.RUnlock()

	var salt models.DailySalt
	err := r.db.GetContext(ctx, &salt, "SELECT day, secret, created_at FROM daily_salts WHERE day = $1", day)
	if errors.Is(err, sql.ErrNoRows) {
		salt, err = r.createSalt(ctx, day)
	}
	if err != nil {
		return "", fmt.Errorf("load daily salt: %w", err)
	}

	r.mu.Lock()
	r.cache[day] = salt.Secret
	r.mu.Unlock()
	return salt.Secret, nil
}

func (r *SaltRepository) createSalt(ctx context.Context, day string) (models.DailySalt, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return models.DailySalt{}, fmt.Errorf("generate daily salt: %w", err)
	}
	salt := models.DailySalt{
		Day:       day,
		Secret:    hex.EncodeToString(buf),
		CreatedAt: time.Now().UTC(),
	}

	// If another process inserted first, keep its secret.
	query := `INSERT INTO daily_salts (day, secret, created_at) VALUES ($1, $2, $3)
ON CONFLICT (day) DO UPDATE SET day = daily_salts.day
RETURNING day, secret, created_at`
	var stored models.DailySalt
	if err := r.db.GetContext(ctx, &stored, query, salt.Day, salt.Secret, salt.CreatedAt); err != nil {
		return models.DailySalt{}, fmt.Errorf("persist daily salt: %w", err)
	}
	return stored, nil
}
