package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlStream struct {
	URL string `xml:"url,attr"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

// ConnectStreamTwiML renders the TwiML that tells Twilio to open a
// bidirectional media stream to the given path on our host.
func ConnectStreamTwiML(host, path string) (string, error) {
	doc := twimlResponse{
		Connect: twimlConnect{
			Stream: twimlStream{URL: fmt.Sprintf("wss://%s%s", host, path)},
		},
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("telephony: render twiml: %w", err)
	}
	return xml.Header + string(body), nil
}
