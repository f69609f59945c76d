// Package voice handles speech-to-text at the system boundary: a
// Deepgram REST client for prerecorded audio and a websocket endpoint
// for streamed capture.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const deepgramListenURL = "https://api.deepgram.com/v1/listen?model=nova-2&smart_format=true&punctuate=true"

// Transcriber converts captured audio into text. Satisfied by the
// Deepgram client; tests substitute their own.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// DeepgramClient transcribes prerecorded audio via the Deepgram API.
type DeepgramClient struct {
	apiKey string
	url    string
	client *http.Client
}

// NewDeepgramClient creates a transcriber, or an error when no API key
// is configured.
func NewDeepgramClient(apiKey string) (*DeepgramClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY not set")
	}
	return &DeepgramClient{
		apiKey: apiKey,
		url:    deepgramListenURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends audio bytes and returns the top transcript. An empty
// transcript is returned as-is; the caller decides how to respond.
func (d *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription returned HTTP %d", resp.StatusCode)
	}

	var decoded deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	if len(decoded.Results.Channels) == 0 || len(decoded.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return decoded.Results.Channels[0].Alternatives[0].Transcript, nil
}
