// Package inference implements gateway.Assistant over the two HTTP JSON
// endpoints of the prediction/question-answering service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/model"
)

// Client calls the patient Q&A and doctor prediction endpoints.
type Client struct {
	patientURL string
	doctorURL  string
	http       *http.Client
	log        *zap.Logger
}

// New builds a Client. timeout bounds every exchange; expiry maps to
// errs.ErrAssistantUnavailable so a hung endpoint cannot wedge a session.
func New(patientURL, doctorURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		patientURL: patientURL,
		doctorURL:  doctorURL,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}
}

type answerRequest struct {
	Source     string `json:"source"`
	SourceType string `json:"source_type"`
	Question   string `json:"question"`
	Username   string `json:"username"`
}

type answerReply struct {
	Answer string `json:"answer"`
	Error  string `json:"error"`
}

// Answer forwards record content plus a question and returns the free-text answer.
func (c *Client) Answer(ctx context.Context, source, question, account string) (string, error) {
	req := answerRequest{Source: source, SourceType: "raw", Question: question, Username: account}
	raw, err := c.post(ctx, c.patientURL, req)
	if err != nil {
		return "", err
	}

	var reply answerReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("%w: decode answer: %v", errs.ErrAssistantUnavailable, err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("%w: %s", errs.ErrAssistantUnavailable, reply.Error)
	}
	return reply.Answer, nil
}

type predictRequest struct {
	Text string `json:"text"`
}

// predictReply mirrors the prediction endpoint's JSON. List fields use
// rawList because entries may be a single string-encoded list.
type predictReply struct {
	DetectedSymptoms rawList `json:"detected_symptoms"`
	PredictedDisease string  `json:"predicted_disease"`
	Description      string  `json:"description"`
	Precautions      rawList `json:"precautions"`
	Medications      rawList `json:"medications"`
	Diet             rawList `json:"diet"`
	Workout          rawList `json:"workout"`
	Error            string  `json:"error"`
}

// Predict forwards a prompt and returns the structured prediction.
func (c *Client) Predict(ctx context.Context, text string) (model.Prediction, error) {
	raw, err := c.post(ctx, c.doctorURL, predictRequest{Text: text})
	if err != nil {
		return model.Prediction{}, err
	}

	// The endpoint emits bare NaN tokens inside list payloads; strict
	// decoders reject them, so substitute before decoding.
	raw = sanitizeNaN(raw)

	var reply predictReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return model.Prediction{}, fmt.Errorf("%w: decode prediction: %v", errs.ErrAssistantUnavailable, err)
	}
	if reply.Error != "" {
		return model.Prediction{}, fmt.Errorf("%w: %s", errs.ErrAssistantUnavailable, reply.Error)
	}

	return model.Prediction{
		Disease:          reply.PredictedDisease,
		Description:      reply.Description,
		DetectedSymptoms: salvageList(reply.DetectedSymptoms),
		Medications:      salvageList(reply.Medications),
		Precautions:      salvageList(reply.Precautions),
		Diet:             salvageList(reply.Diet),
		Workout:          salvageList(reply.Workout),
	}, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: endpoint not configured", errs.ErrAssistantUnavailable)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrAssistantUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %v", errs.ErrAssistantUnavailable, err)
	}
	c.log.Debug("inference exchange",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", errs.ErrAssistantUnavailable, resp.StatusCode)
	}
	return raw, nil
}

// rawList accepts either a JSON array of strings or a single string.
type rawList []string

func (l *rawList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = rawList{one}
	return nil
}

// sanitizeNaN substitutes literal NaN tokens with a readable placeholder
// so the payload parses.
func sanitizeNaN(raw []byte) []byte {
	return bytes.ReplaceAll(raw, []byte("NaN"), []byte(`"Not available"`))
}

// salvageList undoes the endpoint's non-standard list packing: a field may
// arrive as a single element holding a list quoted with single quotes,
// e.g. `["['a', 'b']"]`. Re-encode and parse; on failure keep the field
// as the already-parsed list it claims to be.
func salvageList(in []string) []string {
	if len(in) != 1 {
		return in
	}
	s := strings.TrimSpace(in[0])
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return in
	}
	reencoded := strings.ReplaceAll(s, "'", `"`)
	var out []string
	if err := json.Unmarshal([]byte(reencoded), &out); err != nil {
		return in
	}
	return out
}
