package history

import (
	"testing"
	"time"

	"github.com/medchain/medchain/internal/model"
)

func TestAppendList(t *testing.T) {
	s, err := Open(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	now := time.Now()
	turns := []model.Turn{
		{Speaker: model.SpeakerUser, Text: "what does this mean?", At: now},
		{Speaker: model.SpeakerAssistant, Text: "it means rest", At: now},
	}
	if err := s.Append("acct-1", turns); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("acct-1", []model.Turn{{Speaker: model.SpeakerUser, Text: "thanks", At: now}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.List("acct-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Speaker != model.SpeakerUser || got[1].Speaker != model.SpeakerAssistant {
		t.Fatalf("order lost: %+v", got)
	}
	if got[2].Text != "thanks" {
		t.Fatalf("last = %q", got[2].Text)
	}

	// Other accounts see nothing.
	other, err := s.List("acct-2")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("other account sees %d entries", len(other))
	}
}

func TestAppendEmpty(t *testing.T) {
	s, err := Open(t.TempDir() + "/db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Append("", []model.Turn{{Text: "x"}}); err != nil {
		t.Fatalf("append without account: %v", err)
	}
	if err := s.Append("acct", nil); err != nil {
		t.Fatalf("append nothing: %v", err)
	}
}
