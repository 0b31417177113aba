// Package objectstore_test tests the JetStream-backed blob store.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emovoice/synthesis-service/internal/objectstore"
)

const testBucket = "SPEECH_TEST"

func createTestJetStream(t *testing.T) nats.JetStreamContext {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return jetstreamContext
}

func TestNatsObjectStore_UploadDownloadRoundTrip(t *testing.T) {
	jetstreamContext := createTestJetStream(t)

	store, err := objectstore.New(jetstreamContext, testBucket)
	require.NoError(t, err)

	payload := []byte("We did it. The launch was a complete success.")

	require.NoError(t, store.Upload(context.Background(), "job-1-text", payload))

	data, err := store.Download(context.Background(), "job-1-text")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestNatsObjectStore_DescribesArtifactsByKind(t *testing.T) {
	jetstreamContext := createTestJetStream(t)

	store, err := objectstore.New(jetstreamContext, testBucket)
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "job-2.wav", []byte{1, 2, 3}))
	require.NoError(t, store.Upload(context.Background(), "job-2.json", []byte("[]")))

	bucket, err := jetstreamContext.ObjectStore(testBucket)
	require.NoError(t, err)

	audioInfo, err := bucket.GetInfo("job-2.wav")
	require.NoError(t, err)
	assert.Equal(t, "synthesized speech audio", audioInfo.Description)

	metadataInfo, err := bucket.GetInfo("job-2.json")
	require.NoError(t, err)
	assert.Equal(t, "segment timing metadata", metadataInfo.Description)
}

func TestNatsObjectStore_BindsToExistingBucket(t *testing.T) {
	jetstreamContext := createTestJetStream(t)

	first, err := objectstore.New(jetstreamContext, testBucket)
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "shared-key", []byte("shared")))

	second, err := objectstore.New(jetstreamContext, testBucket)
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "shared-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), data)
}

func TestNatsObjectStore_DownloadMissingKey(t *testing.T) {
	jetstreamContext := createTestJetStream(t)

	store, err := objectstore.New(jetstreamContext, testBucket)
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "no-such-key")
	assert.Error(t, err)
}
