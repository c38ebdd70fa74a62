package model

import (
	"testing"
	"time"
)

func TestClassifyType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		declared string
		want     ContentKind
	}{
		{"application/pdf", KindPDF},
		{"application/vnd.ms-excel", KindSpreadsheet},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", KindSpreadsheet},
		{"text/plain", KindText},
		{"text/plain; charset=utf-8", KindText},
		{"image/png", KindImage},
		{"image/jpeg", KindImage},
		{"IMAGE/PNG", KindImage},
		{"application/zip", KindUnsupported},
		{"", KindUnsupported},
	}
	for _, c := range cases {
		if got := ClassifyType(c.declared); got != c.want {
			t.Errorf("ClassifyType(%q) = %v, want %v", c.declared, got, c.want)
		}
	}
}

func TestRecordedAtDisplayRoundTrip(t *testing.T) {
	t.Parallel()
	// Chain-reported seconds, parsed back from display, match to the minute.
	rec := RecordSummary{RecordedAt: time.Unix(1700000123, 0)}
	parsed, err := time.ParseInLocation(DisplayTimeLayout, rec.RecordedAtDisplay(), time.Local)
	if err != nil {
		t.Fatalf("parse display value: %v", err)
	}
	if !parsed.Equal(rec.RecordedAt.Truncate(time.Minute)) {
		t.Fatalf("round-trip: got %v, want %v", parsed, rec.RecordedAt.Truncate(time.Minute))
	}
}

func TestContentKindString(t *testing.T) {
	t.Parallel()
	if KindPDF.String() != "pdf" || KindUnsupported.String() != "unsupported" {
		t.Fatal("kind names changed")
	}
}
