package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chunkscribe/chunkscribe/internal/apierr"
)

// OpenAI transcription model and format identifiers.
// These are not yet defined in go-openai, so we define them locally.
const (
	// ModelTranscribe is the cost-effective transcription model.
	ModelTranscribe = "gpt-4o-mini-transcribe"

	// ModelTranscribeDiarize is the transcription model with speaker identification.
	ModelTranscribeDiarize = "gpt-4o-transcribe-diarize"

	// FormatDiarizedJSON is the response format for diarized transcription.
	FormatDiarizedJSON = "diarized_json"

	// ChunkingStrategyAuto lets the API determine chunking boundaries within
	// one call. Required by the diarization model for inputs over 30 seconds.
	ChunkingStrategyAuto = "auto"

	// transcriptionURL is the OpenAI API endpoint for audio transcription.
	transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"
)

// OpenAI per-call limits.
const (
	// maxUploadBytes is the documented hard upload ceiling (25MB).
	maxUploadBytes = 25 * 1024 * 1024

	// Speaker reference samples outside this window are rejected by the API.
	minReferenceSeconds = 1.2
	maxReferenceSeconds = 10.0
)

// audioTranscriber is the subset of *openai.Client used for plain requests.
// Allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface compliance checks.
var (
	_ Provider         = (*OpenAIProvider)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAIProvider implements Provider against OpenAI's transcription API.
// Plain requests go through go-openai; diarized requests use direct HTTP
// because the library does not support speaker references yet.
type OpenAIProvider struct {
	client     audioTranscriber
	httpClient httpDoer
	apiKey     string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c httpDoer) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = c }
}

// WithClient sets a custom go-openai client (for testing).
func WithClient(c audioTranscriber) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = c }
}

// NewOpenAIProvider creates an OpenAIProvider.
// apiKey is required for diarization requests, which use direct HTTP.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capabilities returns OpenAI's transcription limits.
func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		MaxFileSizeBytes:    maxUploadBytes,
		SupportsDiarization: true,
		MinReferenceSeconds: minReferenceSeconds,
		MaxReferenceSeconds: maxReferenceSeconds,
	}
}

// Transcribe performs one transcription call. It does not retry; callers own
// the retry policy and use apierr to classify what is worth retrying.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req Request) (*Response, error) {
	if req.Diarize {
		return p.transcribeDiarized(ctx, req)
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    ModelTranscribe,
		Reader:   bytes.NewReader(req.Audio),
		FilePath: req.Filename,
		Format:   openai.AudioResponseFormatJSON,
		Language: req.Language,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return &Response{Text: resp.Text}, nil
}

// transcribeDiarized performs a diarization request via direct HTTP.
// The go-openai library supports neither the chunking_strategy parameter nor
// known_speaker_references, both of which the diarize model needs.
func (p *OpenAIProvider) transcribeDiarized(ctx context.Context, req Request) (*Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("failed to write audio to form: %w", err)
	}

	fields := map[string]string{
		"model":             ModelTranscribeDiarize,
		"response_format":   FormatDiarizedJSON,
		"chunking_strategy": ChunkingStrategyAuto,
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", name, err)
		}
	}

	if err := writeSpeakerHints(writer, req); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, transcriptionURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, respBody)
	}

	return parseDiarizedResponse(respBody)
}

// writeSpeakerHints adds known speaker names and reference samples to the form.
// References are sent as data URLs paired with their labels; labels sent here
// are the ones the API is asked to reuse for matching voices.
func writeSpeakerHints(writer *multipart.Writer, req Request) error {
	for _, name := range req.KnownSpeakerNames {
		if err := writer.WriteField("known_speaker_names[]", name); err != nil {
			return fmt.Errorf("failed to write speaker name: %w", err)
		}
	}

	if len(req.SpeakerReferences) == 0 {
		return nil
	}

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	// Deterministic order keeps requests reproducible in tests.
	labels := make([]string, 0, len(req.SpeakerReferences))
	for label := range req.SpeakerReferences {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	for _, label := range labels {
		if err := writer.WriteField("known_speaker_names[]", label); err != nil {
			return fmt.Errorf("failed to write speaker label: %w", err)
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s",
			mimeType, base64.StdEncoding.EncodeToString(req.SpeakerReferences[label]))
		if err := writer.WriteField("known_speaker_references[]", dataURL); err != nil {
			return fmt.Errorf("failed to write speaker reference: %w", err)
		}
	}
	return nil
}

// diarizedResponse is the wire shape of a diarized transcription response.
type diarizedResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		ID      string  `json:"id"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

// parseDiarizedResponse parses the diarized JSON response into a Response.
func parseDiarizedResponse(body []byte) (*Response, error) {
	var wire diarizedResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	resp := &Response{Text: wire.Text}
	seen := make(map[string]bool)
	for _, seg := range wire.Segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "SPEAKER_" + seg.ID
		}
		resp.Segments = append(resp.Segments, Segment{
			Speaker:      speaker,
			Text:         strings.TrimSpace(seg.Text),
			StartSeconds: seg.Start,
			EndSeconds:   seg.End,
		})
		if !seen[speaker] {
			seen[speaker] = true
			resp.Speakers = append(resp.Speakers, speaker)
		}
	}

	// Rebuild labeled text when the API returned segments but no flat text.
	if resp.Text == "" && len(resp.Segments) > 0 {
		var b strings.Builder
		for _, seg := range resp.Segments {
			fmt.Fprintf(&b, "[%s]: %s\n", seg.Speaker, seg.Text)
		}
		resp.Text = strings.TrimSpace(b.String())
	}

	return resp, nil
}

// errorResponse is the wire shape of an OpenAI error payload.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// parseHTTPError classifies a non-200 response into apierr sentinels.
func parseHTTPError(statusCode int, body []byte) error {
	var wire errorResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return apierr.ClassifyHTTP(statusCode, string(body))
	}

	msg := wire.Error.Message
	if msg == "" {
		msg = string(body)
	}
	return apierr.ClassifyHTTP(statusCode, msg)
}

// classifyError maps go-openai and transport errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apierr.ClassifyHTTP(apiErr.HTTPStatusCode, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
