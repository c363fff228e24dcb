package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type evidenceStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

type evidenceSigner interface {
	Generate(refID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (refID, relPath string, expiresAt time.Time, err error)
}

// EvidenceServiceConfig bounds uploads.
type EvidenceServiceConfig struct {
	MaxFileSizeBytes int64
}

// EvidenceService stores uploaded evidence files and hands out opaque signed
// references. The service never inspects content; the reference is the only
// thing attached to issues and updates.
type EvidenceService struct {
	store  evidenceStore
	signer evidenceSigner
	logger *zap.Logger
	cfg    EvidenceServiceConfig
}

// EvidenceDownload aggregates resolved download data.
type EvidenceDownload struct {
	File     *os.File
	Filename string
}

// NewEvidenceService constructs the service.
func NewEvidenceService(store evidenceStore, signer evidenceSigner, logger *zap.Logger, cfg EvidenceServiceConfig) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	return &EvidenceService{store: store, signer: signer, logger: logger, cfg: cfg}
}

// Upload stores the stream and returns an opaque signed reference.
func (s *EvidenceService) Upload(filename string, size int64, r io.Reader) (*dto.EvidenceUploadResponse, error) {
	if size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSizeBytes))
	}

	refID := uuid.NewString()
	relPath := filepath.Join(refID[:2], refID+filepath.Ext(filename))
	if _, err := s.store.SaveStream(relPath, io.LimitReader(r, s.cfg.MaxFileSizeBytes)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
	}

	token, expiresAt, err := s.signer.Generate(refID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence reference")
	}

	return &dto.EvidenceUploadResponse{
		Reference: token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Resolve validates a reference and opens the underlying file.
func (s *EvidenceService) Resolve(token string) (*EvidenceDownload, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence reference invalid or expired")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence file not found")
	}
	return &EvidenceDownload{File: file, Filename: filepath.Base(relPath)}, nil
}
