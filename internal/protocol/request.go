// Package protocol defines the request and response envelopes exchanged with
// clients and the length-prefixed framing they travel in.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mcoot/turnrelay/internal/model"
)

// RequestType names the operation a client is asking for
type RequestType string

const (
	RequestLogin               RequestType = "LOGIN"
	RequestRegister            RequestType = "REGISTER"
	RequestUpdatePairing       RequestType = "UPDATE_PAIRING"
	RequestSendInvitation      RequestType = "SEND_INVITATION"
	RequestAcceptInvitation    RequestType = "ACCEPT_INVITATION"
	RequestDeclineInvitation   RequestType = "DECLINE_INVITATION"
	RequestAcknowledgeResponse RequestType = "ACKNOWLEDGE_RESPONSE"
	RequestRequestMove         RequestType = "REQUEST_MOVE"
	RequestSendMove            RequestType = "SEND_MOVE"
	RequestAbortGame           RequestType = "ABORT_GAME"
	RequestCompleteGame        RequestType = "COMPLETE_GAME"
)

// requestTypeAliases maps legacy spellings still sent by older clients
var requestTypeAliases = map[RequestType]RequestType{
	"UPATE_PAIRING": RequestUpdatePairing,
}

// RequestTypes lists every request type in protocol order
func RequestTypes() []RequestType {
	return []RequestType{
		RequestLogin,
		RequestRegister,
		RequestUpdatePairing,
		RequestSendInvitation,
		RequestAcceptInvitation,
		RequestDeclineInvitation,
		RequestAcknowledgeResponse,
		RequestRequestMove,
		RequestSendMove,
		RequestAbortGame,
		RequestCompleteGame,
	}
}

// Canonical resolves aliases and reports whether t is a known request type
func (t RequestType) Canonical() (RequestType, bool) {
	if alias, ok := requestTypeAliases[t]; ok {
		return alias, true
	}
	for _, known := range RequestTypes() {
		if t == known {
			return t, true
		}
	}
	return t, false
}

// Request is one client message. Data is opaque text whose meaning depends on Type.
type Request struct {
	Type RequestType `json:"type"`
	Data string      `json:"data"`
}

// UnmarshalJSON accepts data either as a JSON string or as any other JSON
// value, which is kept verbatim
func (r *Request) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type RequestType     `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	r.Type = raw.Type
	r.Data = ""

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '"':
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return err
		}
	default:
		r.Data = string(data)
	}
	return nil
}

// DecodeRequest parses one request envelope
func DecodeRequest(b []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, model.ErrUnknownRequest
	}
	canonical, ok := req.Type.Canonical()
	if !ok {
		return nil, model.ErrUnknownRequest
	}
	req.Type = canonical
	return &req, nil
}

// NewRequest builds a request whose data is the JSON encoding of v
func NewRequest(t RequestType, v any) (*Request, error) {
	if s, ok := v.(string); ok {
		return &Request{Type: t, Data: s}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Request{Type: t, Data: string(b)}, nil
}

// Credentials is the LOGIN and REGISTER payload
type Credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// DecodeCredentials parses a JSON user object
func DecodeCredentials(data string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Credentials{}, model.ErrInvalidRequest
	}
	if c.Username == "" {
		return Credentials{}, model.ErrInvalidRequest
	}
	return c, nil
}

// DecodeUsername accepts either a JSON string or a bare username
func DecodeUsername(data string) (string, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, `"`) {
		var name string
		if err := json.Unmarshal([]byte(data), &name); err != nil {
			return "", model.ErrInvalidRequest
		}
		data = strings.TrimSpace(name)
	}
	if data == "" {
		return "", model.ErrInvalidRequest
	}
	return data, nil
}

// DecodeEventID parses a decimal event id, optionally JSON quoted
func DecodeEventID(data string) (model.EventID, error) {
	n, err := decodeInt(data)
	if err != nil || n <= 0 {
		return 0, model.ErrInvalidRequest
	}
	return model.EventID(n), nil
}

// DecodeMove parses a decimal move. Range checks are left to the match engine.
func DecodeMove(data string) (int, error) {
	n, err := decodeInt(data)
	if err != nil {
		return 0, model.ErrInvalidRequest
	}
	return int(n), nil
}

func decodeInt(data string) (int64, error) {
	data = strings.TrimSpace(data)
	data = strings.Trim(data, `"`)
	return strconv.ParseInt(strings.TrimSpace(data), 10, 64)
}
