package protocol

import (
	"encoding/json"

	"github.com/mcoot/turnrelay/internal/model"
)

// Status is the outcome of a request
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Kind discriminates the response variants
type Kind string

const (
	KindBase    Kind = "base"
	KindPairing Kind = "pairing"
	KindMove    Kind = "move"
)

// Response is the reply to a single request. Exactly one of the payloads is
// set for the pairing and move kinds; the payload fields are flattened into
// the top-level object on the wire.
type Response struct {
	Kind    Kind   `json:"kind"`
	Status  Status `json:"status"`
	Message string `json:"message"`

	*PairingPayload
	*MovePayload
}

// PairingPayload answers UPDATE_PAIRING
type PairingPayload struct {
	AvailableUsers     []model.User `json:"availableUsers"`
	Invitation         *model.Event `json:"invitation"`
	InvitationResponse *model.Event `json:"invitationResponse"`
}

// MovePayload answers REQUEST_MOVE
type MovePayload struct {
	Active bool `json:"active"`
	Move   int  `json:"move"`
}

// Success builds a plain successful response
func Success(message string) *Response {
	return &Response{Kind: KindBase, Status: StatusSuccess, Message: message}
}

// Failure builds a plain failed response
func Failure(message string) *Response {
	return &Response{Kind: KindBase, Status: StatusFailure, Message: message}
}

// Pairing builds a successful pairing response
func Pairing(message string, payload PairingPayload) *Response {
	if payload.AvailableUsers == nil {
		payload.AvailableUsers = []model.User{}
	}
	return &Response{Kind: KindPairing, Status: StatusSuccess, Message: message, PairingPayload: &payload}
}

// Move builds a successful move response
func Move(message string, active bool, move int) *Response {
	return &Response{
		Kind:        KindMove,
		Status:      StatusSuccess,
		Message:     message,
		MovePayload: &MovePayload{Active: active, Move: move},
	}
}

// OK reports whether the request succeeded
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// Encode serialises the response envelope
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResponse parses a response envelope, keeping only the payload its kind names
func DecodeResponse(b []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, err
	}
	switch resp.Kind {
	case KindPairing:
		resp.MovePayload = nil
		if resp.PairingPayload == nil {
			resp.PairingPayload = &PairingPayload{}
		}
	case KindMove:
		resp.PairingPayload = nil
		if resp.MovePayload == nil {
			resp.MovePayload = &MovePayload{Move: model.NoMove}
		}
	default:
		resp.PairingPayload = nil
		resp.MovePayload = nil
	}
	return &resp, nil
}
