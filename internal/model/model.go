// Package model defines domain entities shared by services and gateways.
package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// RoleState is the resolved authorization state of the active account.
// Flags are independent: a single account can hold several roles at once.
type RoleState struct {
	Account   string // enrolled identity address; empty when disconnected
	IsAdmin   bool
	IsDoctor  bool
	IsPatient bool
	Resolved  bool // false until the first full resolution completes
}

// Connected reports whether an account is active, resolved or not.
func (s RoleState) Connected() bool { return s.Account != "" }

// PatientDetails is the on-chain registration entry for a patient account.
type PatientDetails struct {
	Name        string
	PatientID   string
	RecordCount int
}

// RecordSummary is one entry of a patient's record catalog. Immutable once
// fetched; the whole list is superseded on refresh.
type RecordSummary struct {
	Index         int       // position assigned by the chain, 0-based
	RecordType    string    // free-text category ("Prescription", "Lab Report", ...)
	ContentID     string    // content-address into the content store
	RecordedAt    time.Time // chain-reported seconds since epoch, local time
	AuthorAddress string
	AuthorName    string
	Metadata      string // opaque JSON written by the author, display only
}

// DisplayTimeLayout renders chain timestamps for lists and viewers.
const DisplayTimeLayout = "2006-01-02 15:04"

// RecordedAtDisplay formats the chain timestamp in local display time.
func (r RecordSummary) RecordedAtDisplay() string {
	return r.RecordedAt.Format(DisplayTimeLayout)
}

// ContentKind classifies retrieved content for rendering.
type ContentKind int

const (
	KindUnsupported ContentKind = iota
	KindPDF
	KindSpreadsheet
	KindText
	KindImage
)

func (k ContentKind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

// ClassifyType maps a declared media type onto a render class. Unknown
// types classify as unsupported, never silently dropped.
func ClassifyType(declared string) ContentKind {
	mt := declared
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.TrimSpace(strings.ToLower(mt))

	switch {
	case mt == "application/pdf":
		return KindPDF
	case mt == "application/vnd.ms-excel",
		mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return KindSpreadsheet
	case strings.HasPrefix(mt, "text/"):
		return KindText
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	default:
		return KindUnsupported
	}
}

// Content is a retrieved record payload. Lifetime spans one selection: it is
// released when superseded by the next fetch or when the viewer goes away.
type Content struct {
	Bytes        []byte
	DeclaredType string // MIME-like string used for render dispatch
	Kind         ContentKind
}

// Speaker tags a transcript turn with its author.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is a single entry in an assistant conversation transcript.
type Turn struct {
	ID      uuid.UUID
	Speaker Speaker
	Text    string
	Err     bool // true when this turn reports a failed exchange
	At      time.Time
}

// Prediction is the structured reply of the doctor-flow inference endpoint.
// List fields arrive already salvaged by the gateway (see gateway/inference).
type Prediction struct {
	Disease          string
	Description      string
	DetectedSymptoms []string
	Medications      []string
	Precautions      []string
	Diet             []string
	Workout          []string
}
