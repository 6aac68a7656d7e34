package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/repository"
	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
	"github.com/guvercin/messaging-backend/pkg/storage"
)

// FileDownload is a stored file opened for streaming.
type FileDownload struct {
	Reader   io.ReadCloser
	FileName string
	MimeType string
}

// FileService stores and serves inline file transfers. Objects are keyed
// by (receiver, file_name); re-uploading the same name overwrites the
// prior bytes.
type FileService interface {
	// NewTransfer returns a per-connection frame sequencer for the
	// metadata+binary sub-protocol.
	NewTransfer() *Transfer
	Download(ctx context.Context, username, fileName string) (*FileDownload, error)
	Remove(ctx context.Context, receiver, fileName string)
}

type fileService struct {
	repo  repository.MessageRepository
	store storage.Storage
}

// NewFileService creates a new FileService
func NewFileService(repo repository.MessageRepository, store storage.Storage) FileService {
	return &fileService{repo: repo, store: store}
}

func objectKey(receiver, fileName string) string {
	return receiver + "/" + fileName
}

func validFileName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return true
}

// Download finds the newest stored reference for (username, file_name)
// and streams the bytes. A reference with missing bytes reports
// common.ErrGone, never common.ErrNotFound.
func (s *fileService) Download(ctx context.Context, username, fileName string) (*FileDownload, error) {
	msg, err := s.repo.LatestFileMessage(username, fileName)
	if err != nil {
		return nil, err
	}

	reader, err := s.store.Get(ctx, objectKey(username, fileName))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, common.ErrGone
		}
		return nil, err
	}

	return &FileDownload{
		Reader:   reader,
		FileName: msg.FileName,
		MimeType: msg.MimeType,
	}, nil
}

// Remove deletes the stored bytes for (receiver, file_name). Used by
// hard delete; failures are logged, the row removal has already
// happened.
func (s *fileService) Remove(ctx context.Context, receiver, fileName string) {
	if err := s.store.Delete(ctx, objectKey(receiver, fileName)); err != nil {
		pkglogger.GetLogger().Warn().
			Err(err).
			Str("receiver", receiver).
			Str("file_name", fileName).
			Msg("stored file removal failed")
	}
}

// Transfer sequences the two-frame file protocol on one connection:
// a type=file metadata frame must be followed by exactly one binary
// payload frame before anything else happens. Any frame that breaks the
// sequence is rejected with common.ErrProtocol and the pending transfer
// is dropped.
type Transfer struct {
	svc     *fileService
	pending *domain.InboundMessage
}

// NewTransfer returns a fresh frame sequencer.
func (s *fileService) NewTransfer() *Transfer {
	return &Transfer{svc: s}
}

// Pending reports whether a metadata frame is awaiting its payload.
func (t *Transfer) Pending() bool {
	return t.pending != nil
}

// Begin accepts a file metadata frame. A second metadata frame while a
// payload is pending breaks the sequence.
func (t *Transfer) Begin(meta *domain.InboundMessage) error {
	if t.pending != nil {
		t.pending = nil
		return fmt.Errorf("%w: metadata frame while payload pending", common.ErrProtocol)
	}
	if !validFileName(meta.FileName) {
		return fmt.Errorf("%w: invalid file name %q", common.ErrInvalidInput, meta.FileName)
	}
	t.pending = meta
	return nil
}

// Complete accepts the binary payload frame, stores the bytes under
// (receiver, file_name) and returns the metadata with file_url and mime
// type filled in. A payload with no pending metadata breaks the
// sequence.
func (t *Transfer) Complete(ctx context.Context, payload []byte) (*domain.InboundMessage, error) {
	if t.pending == nil {
		return nil, fmt.Errorf("%w: payload frame with no pending metadata", common.ErrProtocol)
	}
	meta := t.pending
	t.pending = nil

	if meta.MimeType == "" {
		meta.MimeType = mimetype.Detect(payload).String()
	}

	key := objectKey(meta.Receiver, meta.FileName)
	result, err := t.svc.store.Put(ctx, key, bytes.NewReader(payload), meta.MimeType, int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("store file payload: %w", err)
	}

	meta.FileURL = result.URL
	return meta, nil
}

// Abort drops any pending transfer, e.g. on disconnect.
func (t *Transfer) Abort() {
	t.pending = nil
}
