package verify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emovoice/synthesis-service/internal/verify"
)

func TestTranscriptionClient_Transcribe(t *testing.T) {
	t.Parallel()

	wavData := []byte("RIFFfake-wav-bytesWAVE")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)

		defer file.Close()

		uploaded, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, wavData, uploaded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello world"}`))
	}))
	t.Cleanup(server.Close)

	client := verify.NewTranscriptionClient(server.URL, "whisper-1", 5*time.Second)

	transcript, err := client.Transcribe(context.Background(), wavData, "en")
	require.NoError(t, err)
	assert.Equal(t, "hello world", transcript)
}

func TestTranscriptionClient_Transcribe_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model crashed"))
	}))
	t.Cleanup(server.Close)

	client := verify.NewTranscriptionClient(server.URL, "whisper-1", 5*time.Second)

	_, err := client.Transcribe(context.Background(), []byte("data"), "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
}
