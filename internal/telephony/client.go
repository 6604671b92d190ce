package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/vedahq/veda-call-service/pkg/logger"
	"go.uber.org/zap"
)

// PlaceCallParams carries everything one outbound call attempt needs.
type PlaceCallParams struct {
	To                   string
	From                 string
	VoiceURL             string
	StatusCallbackURL    string
	RecordingCallbackURL string
	RingTimeoutSeconds   int
}

// Dialer places outbound calls with a telephony provider.
type Dialer interface {
	PlaceCall(ctx context.Context, params PlaceCallParams) (callSID string, err error)
}

// RecordingDownloader fetches a finished recording artifact from the provider.
type RecordingDownloader interface {
	DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

// statusCallbackEvents are the call-state transitions Twilio reports back.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// TwilioClient implements Dialer and RecordingDownloader against the
// Twilio REST API.
type TwilioClient struct {
	client     *twilio.RestClient
	accountSID string
	authToken  string
	httpClient *http.Client
}

// NewTwilioClient creates a Twilio-backed telephony client.
func NewTwilioClient(accountSID, authToken string, downloadTimeout time.Duration) *TwilioClient {
	return &TwilioClient{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		accountSID: accountSID,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: downloadTimeout},
	}
}

// PlaceCall requests an outbound call. The destination number is passed to
// the provider exactly as stored; no normalization happens here.
func (c *TwilioClient) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	createParams := &api.CreateCallParams{}
	createParams.SetTo(params.To)
	createParams.SetFrom(params.From)
	createParams.SetUrl(params.VoiceURL)
	createParams.SetStatusCallback(params.StatusCallbackURL)
	createParams.SetStatusCallbackEvent(statusCallbackEvents)
	createParams.SetRecord(true)
	createParams.SetRecordingStatusCallback(params.RecordingCallbackURL)
	createParams.SetTimeout(params.RingTimeoutSeconds)

	resp, err := c.client.Api.CreateCall(createParams)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return "", fmt.Errorf("twilio create call: response carried no call sid")
	}

	logger.Base().Info("outbound call placed",
		zap.String("call_sid", *resp.Sid),
		zap.String("to", params.To))
	return *resp.Sid, nil
}

// DownloadRecording fetches {recordingURL}.mp3 with basic auth built from
// the account credentials, as Twilio requires for media access.
func (c *TwilioClient) DownloadRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	mediaURL := recordingURL + ".mp3"
	if _, err := url.Parse(mediaURL); err != nil {
		return nil, fmt.Errorf("invalid recording url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build recording request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch recording: provider returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recording body: %w", err)
	}
	return audio, nil
}
