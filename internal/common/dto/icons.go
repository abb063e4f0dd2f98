package dto

import "github.com/hellooo-cards/iconbridge/internal/common/cnst"

// BatchRequest asks the broker to collect icons for an ordered account list.
type BatchRequest struct {
	Accounts []string      `json:"accounts"`
	Platform cnst.Platform `json:"platform,omitempty"`
}

// Ack is the synchronous reply to a BatchRequest. A successful ack carries
// only the session identifier; a rejected one carries status=false plus a
// reason and no fetch is started.
type Ack struct {
	SessionID string `json:"sessionId,omitempty"`
	Status    *bool  `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// OK reports whether the request was accepted.
func (a *Ack) OK() bool {
	return a != nil && a.Status == nil && a.SessionID != ""
}

// AckOK builds a success acknowledgement.
func AckOK(sessionID string) *Ack {
	return &Ack{SessionID: sessionID}
}

// AckFailed builds a rejection acknowledgement.
func AckFailed(reason string) *Ack {
	f := false
	return &Ack{Status: &f, Reason: reason}
}

// LocatorReport is emitted once per opened tab. IconURL has three states:
// nil means the locator has not reported yet, empty string is a confirmed
// miss, non-empty is a resolved profile image URL. Account is derived from
// the tab's URL path, not from the requested handle.
type LocatorReport struct {
	Account string  `json:"account"`
	IconURL *string `json:"iconUrl,omitempty"`
}

// IconResult is one collected icon, positionally matching the input list.
// Data is non-empty iff URL is non-empty and the slot is not blank.
type IconResult struct {
	Account  string        `json:"account"`
	URL      string        `json:"url"`
	Data     string        `json:"data"`
	Platform cnst.Platform `json:"platform,omitempty"`
	QR       string        `json:"qr,omitempty"`
}

// Blank reports whether the result is an intentionally empty label slot.
func (r IconResult) Blank() bool {
	return r.Account == "" && r.URL == "" && r.Data == ""
}

// BatchResult carries the completed icon list back to the requesting page,
// tagged with the session identifier it belongs to.
type BatchResult struct {
	SessionID string       `json:"sessionId"`
	Icons     []IconResult `json:"icons"`
}

// Progress is an advisory start/end marker for the requesting page's UI.
type Progress struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"`
}
