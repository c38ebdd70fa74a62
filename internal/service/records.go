package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/crypto/reccrypto"
	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/gateway"
	"github.com/medchain/medchain/internal/keystore"
	"github.com/medchain/medchain/internal/model"
)

// RecordService loads record catalogs, resolves record content, and drives
// the contract write paths.
type RecordService struct {
	chain   gateway.Chain
	store   gateway.ContentStore
	keys    *keystore.Store
	session *SessionService
	log     *zap.Logger

	gen atomic.Uint64 // catalog load generation, newest wins

	mu      sync.Mutex
	records []model.RecordSummary
	owner   string
	current *ContentHandle
}

// NewRecordService wires the catalog/content pipeline.
func NewRecordService(chain gateway.Chain, store gateway.ContentStore, keys *keystore.Store, session *SessionService, log *zap.Logger) *RecordService {
	return &RecordService{chain: chain, store: store, keys: keys, session: session, log: log}
}

// Load fetches the full record catalog for target (empty target = self).
// Catalog loads are all-or-nothing: any per-index failure aborts the load
// and the previous list stays in place. Overlapping loads race; only the
// newest one commits its result, and a superseded call returns the
// committed list instead of its own fetch.
func (s *RecordService) Load(ctx context.Context, target string) ([]model.RecordSummary, error) {
	self := s.chain.Account()
	if target == "" {
		target = self
	}

	// Advisory capability check; the contract is the actual enforcer.
	state := s.session.State()
	if !state.Resolved {
		return nil, fmt.Errorf("%w: role state not resolved", errs.ErrUnauthorized)
	}
	if target == self {
		if !state.IsPatient && !state.IsDoctor {
			return nil, fmt.Errorf("%w: only registered patients can view their records", errs.ErrUnauthorized)
		}
	} else if !state.IsDoctor {
		return nil, fmt.Errorf("%w: only doctors can view another patient's records", errs.ErrUnauthorized)
	}

	gen := s.gen.Add(1)

	details, err := s.chain.PatientDetails(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	// Empty catalog is a valid result, not an error.
	list := make([]model.RecordSummary, 0, details.RecordCount)
	for i := 0; i < details.RecordCount; i++ {
		rec, err := s.chain.RecordDetails(ctx, target, i)
		if err != nil {
			return nil, fmt.Errorf("load catalog: record %d: %w", i, err)
		}
		list = append(list, rec)
	}

	s.mu.Lock()
	if gen == s.gen.Load() {
		s.records = list
		s.owner = target
	} else {
		// A newer load committed meanwhile; hand the caller the committed
		// list rather than the superseded fetch.
		s.log.Debug("discarding stale catalog load", zap.Uint64("gen", gen))
		list = append([]model.RecordSummary(nil), s.records...)
	}
	s.mu.Unlock()

	s.log.Info("catalog loaded",
		zap.String("target", target),
		zap.Int("records", len(list)),
	)
	return list, nil
}

// Records returns a copy of the committed catalog and its owner.
func (s *RecordService) Records() (string, []model.RecordSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner, append([]model.RecordSummary(nil), s.records...)
}

// ContentHandle is a release-tracked view over retrieved content. The
// payload is staged to a private temp file so external viewers can open it;
// Release removes the file.
type ContentHandle struct {
	Content model.Content

	path     string
	released bool
	mu       sync.Mutex
}

// Path returns the staged file path, valid until Release.
func (h *ContentHandle) Path() string { return h.path }

// Release removes the staged file. Safe to call more than once.
func (h *ContentHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if h.path == "" {
		return nil
	}
	return os.Remove(h.path)
}

// Open retrieves the content of rec (owned by owner), opens the seal when
// the owner's record key is available locally, classifies the payload, and
// returns a handle. Opening a new handle releases the previous one.
func (s *RecordService) Open(ctx context.Context, owner string, rec model.RecordSummary) (*ContentHandle, error) {
	if owner == "" {
		owner = s.chain.Account()
	}

	blob, declared, err := s.store.Download(ctx, rec.ContentID)
	if err != nil {
		return nil, fmt.Errorf("fetch content %s: %w", rec.ContentID, err)
	}

	if reccrypto.Sealed(blob) {
		key, kerr := s.keys.Load(owner)
		if kerr != nil {
			return nil, fmt.Errorf("fetch content %s: sealed record and %w", rec.ContentID, kerr)
		}
		plain, oerr := reccrypto.Open(key, owner, rec.RecordType, blob)
		if oerr != nil {
			return nil, fmt.Errorf("fetch content %s: unseal: %w", rec.ContentID, oerr)
		}
		blob = plain
		// The store only saw ciphertext; re-detect the real media type.
		declared = http.DetectContentType(blob)
	}

	content := model.Content{
		Bytes:        blob,
		DeclaredType: declared,
		Kind:         model.ClassifyType(declared),
	}

	f, err := os.CreateTemp("", "medchain-*")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}
	handle := &ContentHandle{Content: content, path: f.Name()}

	s.mu.Lock()
	prev := s.current
	s.current = handle
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Release()
	}

	return handle, nil
}

// CloseCurrent releases the active content handle, if any. Called when the
// viewing surface goes away.
func (s *RecordService) CloseCurrent() {
	s.mu.Lock()
	h := s.current
	s.current = nil
	s.mu.Unlock()
	if h != nil {
		_ = h.Release()
	}
}

// recordMetadata is the opaque metadata string written alongside a record.
type recordMetadata struct {
	Description string `json:"description"`
	RecordDate  string `json:"recordDate"`
	FileType    string `json:"fileType"`
}

// AddRecord seals (when the target patient's key is held locally), uploads,
// and registers a record against the contract.
func (s *RecordService) AddRecord(ctx context.Context, patientAddr, recordType, fileName string, data []byte, authorName, note string) (string, error) {
	state := s.session.State()
	if !state.Resolved || !state.IsDoctor {
		return "", fmt.Errorf("%w: only registered doctors can add records", errs.ErrUnauthorized)
	}
	if len(data) == 0 {
		return "", errors.New("empty record file")
	}

	fileType := http.DetectContentType(data)

	blob := data
	if key, err := s.keys.Load(patientAddr); err == nil {
		sealed, serr := reccrypto.Seal(key, patientAddr, recordType, data)
		if serr != nil {
			return "", fmt.Errorf("seal record: %w", serr)
		}
		blob = sealed
	} else if !errors.Is(err, keystore.ErrNoKey) {
		return "", fmt.Errorf("load record key: %w", err)
	}

	contentID, err := s.store.Upload(ctx, fileName, blob)
	if err != nil {
		return "", fmt.Errorf("upload record: %w", err)
	}

	meta := recordMetadata{
		Description: note,
		RecordDate:  time.Now().Format(time.RFC3339),
		FileType:    fileType,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	if err := s.chain.AddRecord(ctx, patientAddr, recordType, contentID, authorName, string(metaJSON)); err != nil {
		return "", fmt.Errorf("register record: %w", err)
	}

	s.log.Info("record added",
		zap.String("patient", patientAddr),
		zap.String("type", recordType),
		zap.String("contentId", contentID),
		zap.Bool("sealed", len(blob) != len(data)),
	)
	return contentID, nil
}

// RegisterPatient derives and stores the caller's record key, then registers
// the account on the contract. The key is written before the transaction so
// records sealed right after registration always open.
func (s *RecordService) RegisterPatient(ctx context.Context, name, patientID, secret string) error {
	account := s.chain.Account()
	if name == "" || patientID == "" {
		return errors.New("name and patient id required")
	}

	key := reccrypto.DeriveRecordKey(patientID, secret)
	if err := s.keys.Save(account, key); err != nil {
		return fmt.Errorf("store record key: %w", err)
	}

	if err := s.chain.RegisterPatient(ctx, name, patientID); err != nil {
		return fmt.Errorf("register patient: %w", err)
	}
	s.log.Info("patient registered", zap.String("account", account))
	return nil
}

// RegisterDoctor registers addr as a doctor. Admin capability is checked
// advisorily; the contract enforces it.
func (s *RecordService) RegisterDoctor(ctx context.Context, addr string) error {
	state := s.session.State()
	if !state.Resolved || !state.IsAdmin {
		return fmt.Errorf("%w: only admins can register doctors", errs.ErrUnauthorized)
	}
	if err := s.chain.RegisterDoctor(ctx, addr); err != nil {
		return fmt.Errorf("register doctor: %w", err)
	}
	s.log.Info("doctor registered", zap.String("addr", addr))
	return nil
}
