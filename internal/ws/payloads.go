package ws

import "readearn/internal/reading"

// Envelope is every frame the server writes.
type Envelope struct {
	Type    string         `json:"type"`
	Event   *reading.Event `json:"event,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Inbound is a frame sent by the browser.
type Inbound struct {
	Type string `json:"type"`
}
