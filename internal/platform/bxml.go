package platform

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Bridge-instruction XML returned to the voice platform's answer webhook.
// The document transfers the answered PSTN leg into the session that the
// participant token belongs to. It is written back as the webhook response
// body, not sent via a separate request.
//
// Only the verbs we need at the adapter boundary are modeled.

// bridgeSIPURI is the platform's RTC interconnect; the participant token
// travels in the UUI header so the far side knows which session to join.
const bridgeSIPURI = "sip:sipx.webrtc.cat.bandwidth.com:5008;transport=tls"

type bridgeResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Transfer bridgeTransfer `xml:"Transfer"`
}

type bridgeTransfer struct {
	SipUri bridgeSipUri `xml:"SipUri"`
}

type bridgeSipUri struct {
	UUI string `xml:"uui,attr"`
	URI string `xml:",chardata"`
}

// TransferResponse renders the bridge document for a participant join token.
func TransferResponse(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("platform: participant token required for transfer")
	}

	doc := bridgeResponse{
		Transfer: bridgeTransfer{
			SipUri: bridgeSipUri{
				UUI: token + ";encoding=jwt",
				URI: bridgeSIPURI,
			},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
