package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/gateway"
	"github.com/medchain/medchain/internal/history"
	"github.com/medchain/medchain/internal/model"
)

// AssistantService holds one conversation transcript and forwards prompts
// to the inference service. One exchange at a time: while a prompt is in
// flight the session is awaiting-response and further submits are refused.
type AssistantService struct {
	assist  gateway.Assistant
	archive *history.Store // optional
	account string
	log     *zap.Logger

	mu        sync.Mutex
	turns     []model.Turn
	busy      bool
	content   *model.Content
	contentID string
}

// NewAssistantService constructs an assistant session for account.
// archive may be nil; exchanges are then kept in memory only.
func NewAssistantService(assist gateway.Assistant, archive *history.Store, account string, log *zap.Logger) *AssistantService {
	return &AssistantService{assist: assist, archive: archive, account: account, log: log}
}

// SetContent binds the resolved record content the patient flow talks
// about. Switching to a different record resets the transcript so context
// from unrelated records never mixes.
func (a *AssistantService) SetContent(content *model.Content, contentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if contentID != a.contentID {
		a.turns = nil
	}
	a.content = content
	a.contentID = contentID
}

// Transcript returns a copy of the conversation turns in append order.
func (a *AssistantService) Transcript() []model.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Turn(nil), a.turns...)
}

// Busy reports whether an exchange is awaiting a response.
func (a *AssistantService) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

// Reset clears the live transcript. The archive keeps what was exchanged.
func (a *AssistantService) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.turns = nil
}

// Ask runs the patient flow: the resolved record content plus the prompt go
// to the Q&A endpoint. The prompt is appended optimistically before the
// call; on failure a visible error turn is appended and the session returns
// to idle.
func (a *AssistantService) Ask(ctx context.Context, prompt string) (string, error) {
	source, user, err := a.begin(prompt, true)
	if err != nil {
		return "", err
	}

	answer, err := a.assist.Answer(ctx, source, strings.TrimSpace(prompt), a.account)
	return a.finish(user, answer, err)
}

// Predict runs the doctor flow: the prompt alone goes to the prediction
// endpoint and the structured payload is formatted into one readable turn.
func (a *AssistantService) Predict(ctx context.Context, prompt string) (string, error) {
	_, user, err := a.begin(prompt, false)
	if err != nil {
		return "", err
	}

	pred, err := a.assist.Predict(ctx, strings.TrimSpace(prompt))
	var text string
	if err == nil {
		text = FormatPrediction(pred)
	}
	return a.finish(user, text, err)
}

// begin validates the submit, flips to awaiting-response, and appends the
// user turn. An empty prompt never appends or sends anything. The appended
// user turn is returned so finish can archive the exchange even if the live
// transcript is reset while the call is in flight.
func (a *AssistantService) begin(prompt string, needContent bool) (string, model.Turn, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", model.Turn{}, errs.ErrEmptyPrompt
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy {
		return "", model.Turn{}, errs.ErrBusy
	}
	var source string
	if needContent {
		if a.content == nil {
			return "", model.Turn{}, errs.ErrNoContent
		}
		source = string(a.content.Bytes)
	}

	a.busy = true
	user := a.appendLocked(model.Turn{Speaker: model.SpeakerUser, Text: trimmed})
	return source, user, nil
}

// finish appends the assistant turn (or a visible error turn), returns the
// session to idle, and archives the exchange from the captured turns. The
// transcript itself may have been reset by a record switch meanwhile; the
// reply still lands on whatever transcript is current.
func (a *AssistantService) finish(user model.Turn, text string, err error) (string, error) {
	a.mu.Lock()
	a.busy = false
	var reply model.Turn
	if err != nil {
		reply = a.appendLocked(model.Turn{
			Speaker: model.SpeakerAssistant,
			Text:    fmt.Sprintf("The assistant is unavailable: %v", err),
			Err:     true,
		})
	} else {
		reply = a.appendLocked(model.Turn{Speaker: model.SpeakerAssistant, Text: text})
	}
	a.mu.Unlock()

	if a.archive != nil {
		if aerr := a.archive.Append(a.account, []model.Turn{user, reply}); aerr != nil {
			a.log.Warn("archive append failed", zap.Error(aerr))
		}
	}

	if err != nil {
		if !errors.Is(err, errs.ErrAssistantUnavailable) {
			err = fmt.Errorf("%w: %v", errs.ErrAssistantUnavailable, err)
		}
		return "", err
	}
	return text, nil
}

func (a *AssistantService) appendLocked(turn model.Turn) model.Turn {
	turn.ID, _ = uuid.NewV4()
	turn.At = time.Now()
	a.turns = append(a.turns, turn)
	return turn
}

// FormatPrediction renders a prediction payload as a single readable turn
// with a labeled section per field. Empty fields print "Not available".
func FormatPrediction(p model.Prediction) string {
	var b strings.Builder

	b.WriteString("Predicted Disease: ")
	b.WriteString(orNA(p.Disease))
	b.WriteString("\n\n")

	b.WriteString("Description:\n")
	b.WriteString(orNA(p.Description))
	b.WriteString("\n\n")

	writeSection(&b, "Detected Symptoms:", p.DetectedSymptoms)
	writeSection(&b, "Recommended Medications:", p.Medications)
	writeSection(&b, "Precautions:", p.Precautions)
	writeSection(&b, "Diet Recommendations:", p.Diet)
	writeSection(&b, "Workout/Lifestyle Recommendations:", p.Workout)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, items []string) {
	b.WriteString(title)
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString("- Not available\n")
	}
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(orNA(item))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not available"
	}
	return s
}
