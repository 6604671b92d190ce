package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRecording(t *testing.T) {
	var gotPath string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer server.Close()

	client := NewTwilioClient("AC123", "secret-token", 5*time.Second)

	audio, err := client.DownloadRecording(context.Background(), server.URL+"/recordings/RE42")
	require.NoError(t, err)

	assert.Equal(t, []byte("fake-mp3-bytes"), audio)
	// Twilio serves the media artifact at the recording URL plus .mp3.
	assert.Equal(t, "/recordings/RE42.mp3", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secret-token", gotPass)
}

func TestDownloadRecordingNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewTwilioClient("AC123", "secret-token", 5*time.Second)

	_, err := client.DownloadRecording(context.Background(), server.URL+"/recordings/RE404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadRecordingUnreachableProvider(t *testing.T) {
	client := NewTwilioClient("AC123", "secret-token", 500*time.Millisecond)

	_, err := client.DownloadRecording(context.Background(), "http://127.0.0.1:1/recordings/RE1")
	assert.Error(t, err)
}
