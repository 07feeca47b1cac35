package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// OpenAITranscriber implements gateway.Transcriber against an
// OpenAI-compatible speech-to-text endpoint (multipart audio upload,
// verbose_json response carrying a segments array), grounded on the raw
// net/http client pattern in the corpus's openai_client.go — no go-openai
// SDK appears anywhere in the retrieved pack.
type OpenAITranscriber struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

var _ gateway.Transcriber = (*OpenAITranscriber)(nil)

func NewOpenAITranscriber(baseURL, apiKey string) *OpenAITranscriber {
	return &OpenAITranscriber{BaseURL: baseURL, APIKey: apiKey, Model: "whisper-1", client: newHTTPClient()}
}

type transcriptionSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcriptionResponse struct {
	Segments []transcriptionSegment `json:"segments"`
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) ([]gateway.TranscriptChunk, error) {
	body, contentType, err := buildMultipartAudio(audioPath, t.Model)
	if err != nil {
		return nil, err
	}

	respBody, err := doJSON(ctx, t.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, domain.Retryable(fmt.Errorf("decode transcription response: %w", err))
	}

	chunks := make([]gateway.TranscriptChunk, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		chunks = append(chunks, gateway.TranscriptChunk{TStart: s.Start, TEnd: s.End, Text: s.Text})
	}
	return chunks, nil
}

func buildMultipartAudio(audioPath, model string) ([]byte, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
