// Package verify implements the advisory quality check: the assembled
// audio is transcribed back to text and compared against the normalized
// input by word error rate. Verification never blocks delivery.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Error messages.
const (
	errFailedToCreateFormFile  = "failed to create form file: %w"
	errFailedToCopyAudioData   = "failed to copy audio data: %w"
	errFailedToWriteModelField = "failed to write model field: %w"
	errFailedToWriteLangField  = "failed to write language field: %w"
	errFailedToCloseWriter     = "failed to close multipart writer: %w"
	errFailedToCreateRequest   = "failed to create request: %w"
	errFailedToMakeRequest     = "failed to make request: %w"
	errAPIRequestFailed        = "transcription request failed with status %d: %s"
	errFailedToDecodeResponse  = "failed to decode response: %w"
)

// Form field names.
const (
	formFieldFile     = "file"
	formFieldModel    = "model"
	formFieldLanguage = "language"

	uploadFileName = "audio.wav"
)

// TranscriptionClient calls a Whisper-compatible transcription endpoint
// over multipart HTTP.
type TranscriptionClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// transcriptionResponse is the endpoint's JSON reply.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewTranscriptionClient creates a client for the given endpoint and model.
func NewTranscriptionClient(baseURL, model string, timeout time.Duration) *TranscriptionClient {
	return &TranscriptionClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Transcribe sends WAV bytes to the transcription endpoint and returns the
// recognized text.
func (c *TranscriptionClient) Transcribe(
	ctx context.Context,
	wavData []byte,
	language string,
) (string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, uploadFileName)
	if err != nil {
		return "", fmt.Errorf(errFailedToCreateFormFile, err)
	}

	_, err = io.Copy(part, bytes.NewReader(wavData))
	if err != nil {
		return "", fmt.Errorf(errFailedToCopyAudioData, err)
	}

	err = writer.WriteField(formFieldModel, c.model)
	if err != nil {
		return "", fmt.Errorf(errFailedToWriteModelField, err)
	}

	if language != "" {
		err = writer.WriteField(formFieldLanguage, language)
		if err != nil {
			return "", fmt.Errorf(errFailedToWriteLangField, err)
		}
	}

	err = writer.Close()
	if err != nil {
		return "", fmt.Errorf(errFailedToCloseWriter, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &buf)
	if err != nil {
		return "", fmt.Errorf(errFailedToCreateRequest, err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf(errFailedToMakeRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf(errAPIRequestFailed, resp.StatusCode, string(body))
	}

	var decoded transcriptionResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return "", fmt.Errorf(errFailedToDecodeResponse, err)
	}

	return decoded.Text, nil
}
