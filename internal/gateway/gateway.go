// Package gateway declares the interfaces over the client's external
// collaborators: the deployed contract, the content store, and the
// inference service. Implementations live in subpackages.
package gateway

import (
	"context"

	"github.com/medchain/medchain/internal/model"
)

// Chain exposes the role registry and record index of the deployed contract.
type Chain interface {
	// Account returns the address of the enrolled client identity.
	Account() string

	IsDoctor(ctx context.Context, addr string) (bool, error)
	IsAdmin(ctx context.Context, addr string) (bool, error)

	// PatientDetails looks up the registration entry for addr. For an
	// unregistered address the error wraps errs.ErrNotRegistered; this is
	// the defined not-a-patient signal, not a failure.
	PatientDetails(ctx context.Context, addr string) (model.PatientDetails, error)

	// RecordDetails fetches one catalog entry of addr by 0-based index.
	RecordDetails(ctx context.Context, addr string, index int) (model.RecordSummary, error)

	RegisterDoctor(ctx context.Context, addr string) error
	RegisterPatient(ctx context.Context, name, patientID string) error
	AddRecord(ctx context.Context, patientAddr, recordType, contentID, authorName, metadataJSON string) error
}

// ContentStore is content-addressed blob storage.
type ContentStore interface {
	// Upload stores blob and returns its content identifier.
	Upload(ctx context.Context, name string, blob []byte) (string, error)
	// Download retrieves the blob for contentID along with its declared
	// media type.
	Download(ctx context.Context, contentID string) ([]byte, string, error)
}

// Assistant is the external prediction/question-answering service.
type Assistant interface {
	// Answer forwards record content plus a free-text question (patient flow).
	Answer(ctx context.Context, source, question, account string) (string, error)
	// Predict forwards a free-text prompt and returns the structured
	// prediction payload (doctor flow).
	Predict(ctx context.Context, text string) (model.Prediction, error)
}
