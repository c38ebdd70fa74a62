package service

import (
	"context"
	"fmt"

	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/gateway"
	"github.com/medchain/medchain/internal/model"
)

type addCall struct {
	patient, recordType, contentID, authorName, metadata string
}

type fakeChain struct {
	account string

	doctor    map[string]bool
	doctorErr error
	admin     map[string]bool
	adminErr  error

	patients map[string]model.PatientDetails
	detErr   error // forced PatientDetails failure (not a registration miss)

	records     map[string][]model.RecordSummary
	recordErrAt int             // index at which RecordDetails fails; -1 = never
	recordHook  func(index int) // runs before each RecordDetails read

	added              []addCall
	addErr             error
	registeredDoctors  []string
	registeredPatients [][2]string
	registerErr        error
}

var _ gateway.Chain = (*fakeChain)(nil)

func newFakeChain(account string) *fakeChain {
	return &fakeChain{
		account:     account,
		doctor:      map[string]bool{},
		admin:       map[string]bool{},
		patients:    map[string]model.PatientDetails{},
		records:     map[string][]model.RecordSummary{},
		recordErrAt: -1,
	}
}

func (f *fakeChain) Account() string { return f.account }

func (f *fakeChain) IsDoctor(_ context.Context, addr string) (bool, error) {
	return f.doctor[addr], f.doctorErr
}

func (f *fakeChain) IsAdmin(_ context.Context, addr string) (bool, error) {
	return f.admin[addr], f.adminErr
}

func (f *fakeChain) PatientDetails(_ context.Context, addr string) (model.PatientDetails, error) {
	if f.detErr != nil {
		return model.PatientDetails{}, f.detErr
	}
	pd, ok := f.patients[addr]
	if !ok {
		return model.PatientDetails{}, fmt.Errorf("%w: %s", errs.ErrNotRegistered, addr)
	}
	pd.RecordCount = len(f.records[addr])
	return pd, nil
}

func (f *fakeChain) RecordDetails(_ context.Context, addr string, index int) (model.RecordSummary, error) {
	if f.recordHook != nil {
		f.recordHook(index)
	}
	if index == f.recordErrAt {
		return model.RecordSummary{}, fmt.Errorf("record %d: transient failure", index)
	}
	recs := f.records[addr]
	if index < 0 || index >= len(recs) {
		return model.RecordSummary{}, fmt.Errorf("record %d out of range", index)
	}
	return recs[index], nil
}

func (f *fakeChain) RegisterDoctor(_ context.Context, addr string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registeredDoctors = append(f.registeredDoctors, addr)
	f.doctor[addr] = true
	return nil
}

func (f *fakeChain) RegisterPatient(_ context.Context, name, patientID string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registeredPatients = append(f.registeredPatients, [2]string{name, patientID})
	f.patients[f.account] = model.PatientDetails{Name: name, PatientID: patientID}
	return nil
}

func (f *fakeChain) AddRecord(_ context.Context, patient, recordType, contentID, authorName, metadata string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, addCall{patient, recordType, contentID, authorName, metadata})
	return nil
}

type storedBlob struct {
	blob     []byte
	declared string
}

type fakeStore struct {
	blobs   map[string]storedBlob
	nextID  string
	upErr   error
	downErr error
}

var _ gateway.ContentStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string]storedBlob{}, nextID: "cid-1"}
}

func (f *fakeStore) Upload(_ context.Context, _ string, blob []byte) (string, error) {
	if f.upErr != nil {
		return "", f.upErr
	}
	id := f.nextID
	f.blobs[id] = storedBlob{blob: append([]byte(nil), blob...), declared: "application/octet-stream"}
	return id, nil
}

func (f *fakeStore) Download(_ context.Context, contentID string) ([]byte, string, error) {
	if f.downErr != nil {
		return nil, "", f.downErr
	}
	sb, ok := f.blobs[contentID]
	if !ok {
		return nil, "", fmt.Errorf("content %s not found", contentID)
	}
	return sb.blob, sb.declared, nil
}

type fakeAssistant struct {
	answer     string
	answerErr  error
	prediction model.Prediction
	predictErr error
	onAnswer   func() // runs inside Answer, before returning

	askedSource   string
	askedQuestion string
	askedAccount  string
	predictedText string
	calls         int
}

var _ gateway.Assistant = (*fakeAssistant)(nil)

func (f *fakeAssistant) Answer(_ context.Context, source, question, account string) (string, error) {
	f.calls++
	f.askedSource, f.askedQuestion, f.askedAccount = source, question, account
	if f.onAnswer != nil {
		f.onAnswer()
	}
	return f.answer, f.answerErr
}

func (f *fakeAssistant) Predict(_ context.Context, text string) (model.Prediction, error) {
	f.calls++
	f.predictedText = text
	return f.prediction, f.predictErr
}
