package telephony

import (
	"bytes"
	"encoding/xml"
)

// TwiML rendering for the voice webhook. Built on encoding/xml directly;
// the provider SDK does not ship a TwiML writer.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// StreamParameter is one named parameter handed to the media stream.
type StreamParameter struct {
	Name  string
	Value string
}

// RenderConnectStream renders the TwiML that bridges the live call audio to
// the media-stream endpoint at streamURL, passing the given parameters.
func RenderConnectStream(streamURL string, parameters []StreamParameter) (string, error) {
	stream := twimlStream{URL: streamURL}
	for _, p := range parameters {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: p.Name, Value: p.Value})
	}

	r := twimlResponse{Verbs: []any{twimlConnect{Stream: stream}}}
	return renderTwiML(r)
}

const fallbackMessage = "We're sorry, but we're unable to connect your call at this time. Please try again later."

// RenderFallback renders the apology-and-hangup TwiML returned when the
// voice webhook cannot set up the stream. It must never fail, so rendering
// errors degrade to a precomputed document.
func RenderFallback() string {
	r := twimlResponse{Verbs: []any{
		twimlSay{Text: fallbackMessage},
		twimlHangup{},
	}}
	out, err := renderTwiML(r)
	if err != nil {
		return xml.Header + "<Response><Say>" + fallbackMessage + "</Say><Hangup></Hangup></Response>"
	}
	return out
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
