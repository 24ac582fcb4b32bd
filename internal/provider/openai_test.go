package provider_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chunkscribe/chunkscribe/internal/apierr"
	"github.com/chunkscribe/chunkscribe/internal/provider"
)

// mockClient implements the go-openai transcription surface.
type mockClient struct {
	resp openai.AudioResponse
	err  error
	got  openai.AudioRequest
}

func (m *mockClient) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	m.got = req
	return m.resp, m.err
}

// mockHTTP returns a canned response and captures the request body.
type mockHTTP struct {
	status int
	body   string
	err    error

	gotBody string
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		m.gotBody = string(data)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

func TestOpenAIProvider_Transcribe_Plain(t *testing.T) {
	t.Parallel()

	client := &mockClient{resp: openai.AudioResponse{Text: "hello world"}}
	p := provider.NewOpenAIProvider("key", provider.WithClient(client))

	resp, err := p.Transcribe(context.Background(), provider.Request{
		Audio:    []byte("fake-audio"),
		Filename: "chunk_000.ogg",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("Text = %q, want %q", resp.Text, "hello world")
	}
	if len(resp.Segments) != 0 {
		t.Errorf("plain response should have no segments, got %d", len(resp.Segments))
	}
	if client.got.Language != "en" {
		t.Errorf("Language = %q, want %q", client.got.Language, "en")
	}
	if client.got.Model != provider.ModelTranscribe {
		t.Errorf("Model = %q, want %q", client.got.Model, provider.ModelTranscribe)
	}
}

func TestOpenAIProvider_Transcribe_ClassifiesAPIError(t *testing.T) {
	t.Parallel()

	client := &mockClient{err: &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "rate limited",
	}}
	p := provider.NewOpenAIProvider("key", provider.WithClient(client))

	_, err := p.Transcribe(context.Background(), provider.Request{Audio: []byte("x")})
	if !errors.Is(err, apierr.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

const diarizedBody = `{
  "text": "[A]: hi there\n[B]: hello",
  "segments": [
    {"id": "0", "start": 0.0, "end": 2.5, "text": " hi there", "speaker": "A"},
    {"id": "1", "start": 2.8, "end": 4.0, "text": "hello ", "speaker": "B"}
  ]
}`

func TestOpenAIProvider_Transcribe_Diarized(t *testing.T) {
	t.Parallel()

	httpClient := &mockHTTP{status: http.StatusOK, body: diarizedBody}
	p := provider.NewOpenAIProvider("key", provider.WithHTTPClient(httpClient))

	resp, err := p.Transcribe(context.Background(), provider.Request{
		Audio:    []byte("fake-audio"),
		Filename: "chunk_000.ogg",
		Diarize:  true,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(resp.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(resp.Segments))
	}
	if resp.Segments[0].Speaker != "A" || resp.Segments[1].Speaker != "B" {
		t.Errorf("speakers = %q, %q, want A, B", resp.Segments[0].Speaker, resp.Segments[1].Speaker)
	}
	if resp.Segments[0].Text != "hi there" {
		t.Errorf("segment text should be trimmed, got %q", resp.Segments[0].Text)
	}
	if len(resp.Speakers) != 2 {
		t.Errorf("Speakers = %v, want 2 distinct labels", resp.Speakers)
	}

	for _, want := range []string{provider.ModelTranscribeDiarize, provider.FormatDiarizedJSON, provider.ChunkingStrategyAuto} {
		if !strings.Contains(httpClient.gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestOpenAIProvider_Transcribe_SendsSpeakerReferences(t *testing.T) {
	t.Parallel()

	httpClient := &mockHTTP{status: http.StatusOK, body: diarizedBody}
	p := provider.NewOpenAIProvider("key", provider.WithHTTPClient(httpClient))

	_, err := p.Transcribe(context.Background(), provider.Request{
		Audio:    []byte("fake-audio"),
		Filename: "chunk_001.ogg",
		MIMEType: "audio/ogg",
		Diarize:  true,
		SpeakerReferences: map[string][]byte{
			"B": []byte("voice-b"),
			"A": []byte("voice-a"),
		},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	body := httpClient.gotBody
	for _, want := range []string{
		"known_speaker_names[]",
		"known_speaker_references[]",
		"data:audio/ogg;base64,",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q", want)
		}
	}
	// Labels are sent in sorted order for reproducibility.
	refA := "data:audio/ogg;base64," + base64.StdEncoding.EncodeToString([]byte("voice-a"))
	refB := "data:audio/ogg;base64," + base64.StdEncoding.EncodeToString([]byte("voice-b"))
	if !strings.Contains(body, refA) || !strings.Contains(body, refB) {
		t.Fatalf("request body missing encoded references")
	}
	if strings.Index(body, refA) > strings.Index(body, refB) {
		t.Errorf("expected reference for A before B in request body")
	}
}

func TestOpenAIProvider_Transcribe_DiarizedHTTPError(t *testing.T) {
	t.Parallel()

	httpClient := &mockHTTP{
		status: http.StatusUnauthorized,
		body:   `{"error": {"message": "bad key"}}`,
	}
	p := provider.NewOpenAIProvider("key", provider.WithHTTPClient(httpClient))

	_, err := p.Transcribe(context.Background(), provider.Request{
		Audio:   []byte("x"),
		Diarize: true,
	})
	if !errors.Is(err, apierr.ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenAIProvider_Capabilities(t *testing.T) {
	t.Parallel()

	caps := provider.NewOpenAIProvider("key").Capabilities()
	if caps.MaxFileSizeBytes != 25*1024*1024 {
		t.Errorf("MaxFileSizeBytes = %d, want 25MB", caps.MaxFileSizeBytes)
	}
	if !caps.SupportsDiarization {
		t.Error("expected diarization support")
	}
	if caps.HandlesChunkingInternally {
		t.Error("OpenAI does not handle chunking across calls")
	}
	if caps.MinReferenceSeconds >= caps.MaxReferenceSeconds {
		t.Errorf("reference window [%v, %v] is invalid", caps.MinReferenceSeconds, caps.MaxReferenceSeconds)
	}
}
