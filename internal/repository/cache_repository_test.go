package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

func TestCacheRepositoryNilClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	var dest map[string]int
	err := repo.Get(context.Background(), "key", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	assert.NoError(t, repo.Set(context.Background(), "key", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "key"))
	assert.NoError(t, repo.Close())
}
