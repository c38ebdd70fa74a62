package fabric

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medchain/medchain/internal/model"
)

// Chaincode replies are JSON except for the bare bool role checks.

func decodeBool(out []byte) (bool, error) {
	s := strings.TrimSpace(string(out))
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("decode bool reply %q: %w", s, err)
	}
	return v, nil
}

type patientDetailsReply struct {
	Name        string `json:"name"`
	PatientID   string `json:"patientId"`
	RecordCount int    `json:"recordCount"`
}

func decodePatientDetails(out []byte) (model.PatientDetails, error) {
	var r patientDetailsReply
	if err := json.Unmarshal(out, &r); err != nil {
		return model.PatientDetails{}, fmt.Errorf("decode patient details: %w", err)
	}
	return model.PatientDetails{
		Name:        r.Name,
		PatientID:   r.PatientID,
		RecordCount: r.RecordCount,
	}, nil
}

type recordDetailsReply struct {
	RecordType string `json:"recordType"`
	ContentID  string `json:"contentId"`
	Timestamp  int64  `json:"timestamp"` // seconds since epoch, chain-reported
	AuthorAddr string `json:"doctorAddress"`
	AuthorName string `json:"doctorName"`
	Metadata   string `json:"metadata"`
}

func decodeRecordSummary(out []byte, index int) (model.RecordSummary, error) {
	var r recordDetailsReply
	if err := json.Unmarshal(out, &r); err != nil {
		return model.RecordSummary{}, fmt.Errorf("decode record %d: %w", index, err)
	}
	return model.RecordSummary{
		Index:         index,
		RecordType:    r.RecordType,
		ContentID:     r.ContentID,
		RecordedAt:    time.Unix(r.Timestamp, 0),
		AuthorAddress: r.AuthorAddr,
		AuthorName:    r.AuthorName,
		Metadata:      r.Metadata,
	}, nil
}
