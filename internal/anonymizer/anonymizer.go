// Package anonymizer is the identity firewall: it converts a verified user id
// into an anonymous submission handle that cannot be reversed. Issues store
// only the derived token, so no code path holding the issue set can
// reconstruct the submitter.
package anonymizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

// TokenLength is the stored token size in hex characters. Truncating the
// SHA-256 digest to 48 bits trades collision resistance for storage economy:
// the pairwise collision probability is about 2^-48, so the expected first
// collision appears only beyond ~16 million distinct (identity, day) pairs.
// That is an accepted bound, not an impossibility.
const TokenLength = 12

// SaltSource yields the rotating per-day secret. Salts are injected rather
// than read from ambient state so derivation stays a pure function of its
// inputs.
type SaltSource interface {
	SaltForDay(ctx context.Context, day string) (string, error)
}

// Anonymizer derives anonymous tokens from verified identities.
type Anonymizer struct {
	salts SaltSource
}

// New constructs an Anonymizer over the given salt source.
func New(salts SaltSource) *Anonymizer {
	return &Anonymizer{salts: salts}
}

// DayKey formats the calendar day used for salt rotation.
func DayKey(asOf time.Time) string {
	return asOf.UTC().Format("20060102")
}

// DeriveToken computes the anonymous token for an identity on a given day.
// Deterministic for a fixed (identity, day) pair; tokens for the same
// identity on different days are unrelated-looking because the salt rotates.
func (a *Anonymizer) DeriveToken(ctx context.Context, identityID string, asOf time.Time) (string, error) {
	if strings.TrimSpace(identityID) == "" {
		return "", appErrors.ErrInvalidIdentity
	}

	salt, err := a.salts.SaltForDay(ctx, DayKey(asOf))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily salt")
	}

	sum := sha256.Sum256([]byte(identityID + ":" + salt))
	return hex.EncodeToString(sum[:])[:TokenLength], nil
}
