// Package wire defines the clearnode RPC envelope and message payloads.
//
// The protocol frames every message as a compact array [id, method, params,
// timestamp] wrapped in an object keyed by direction ("req" for requests,
// "res" for responses) together with the signatures over that array. Some
// counterparty builds still emit the bare array without the wrapper, so
// decoding falls back to that legacy shape before giving up.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol method names.
const (
	MethodAuthRequest   = "auth_request"
	MethodAuthChallenge = "auth_challenge"
	MethodAuthVerify    = "auth_verify"
	MethodCreateChannel = "create_channel"
	MethodCloseChannel  = "close_channel"
	MethodTransfer      = "transfer"
	MethodPing          = "ping"
	MethodPong          = "pong"
	MethodError         = "error"

	// Unsolicited notification codes.
	MethodBalanceUpdate  = "bu"
	MethodChannelUpdate  = "cu"
	MethodTransferNotice = "tr"
)

// Envelope is a single protocol message: a correlated request or response,
// or an unsolicited notification.
type Envelope struct {
	RequestID  uint64
	Method     string
	Params     json.RawMessage
	Timestamp  uint64
	Signatures []string
}

// NewRequest builds a request envelope with the given id and marshalled
// params.
func NewRequest(id uint64, method string, params interface{}) (Envelope, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return Envelope{
		RequestID: id,
		Method:    method,
		Params:    raw,
		Timestamp: uint64(time.Now().UnixMilli()),
	}, nil
}

// body returns the [id, method, params, ts] array this envelope frames.
func (e Envelope) body() []interface{} {
	params := e.Params
	if params == nil {
		params = json.RawMessage(`{}`)
	}
	return []interface{}{e.RequestID, e.Method, params, e.Timestamp}
}

// SigningPayload returns the canonical bytes a session key signs: the
// serialized body array, without the signature wrapper.
func (e Envelope) SigningPayload() ([]byte, error) {
	return json.Marshal(e.body())
}

// MarshalJSON encodes the envelope in the primary request shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	sigs := e.Signatures
	if sigs == nil {
		sigs = []string{}
	}
	return json.Marshal(struct {
		Req []interface{} `json:"req"`
		Sig []string      `json:"sig"`
	}{Req: e.body(), Sig: sigs})
}

// IsNotification reports whether the envelope's method is an unsolicited
// notification rather than a correlated response.
func (e Envelope) IsNotification() bool {
	switch e.Method {
	case MethodBalanceUpdate, MethodChannelUpdate, MethodTransferNotice, MethodPong, MethodPing:
		return true
	}
	return false
}

// ParseFailure is returned when an inbound payload matches neither the
// primary nor the legacy envelope shape. The transport logs and drops such
// messages; a ParseFailure never reaches the lifecycle manager.
type ParseFailure struct {
	Reason string
}

// Error returns the failure description.
func (e *ParseFailure) Error() string {
	return fmt.Sprintf("unparseable clearnode message: %s", e.Reason)
}

// Decode parses an inbound payload, attempting the primary object shape and
// then the legacy bare-array shape.
func Decode(data []byte) (Envelope, error) {
	var primary struct {
		Req []json.RawMessage `json:"req"`
		Res []json.RawMessage `json:"res"`
		Sig []string          `json:"sig"`
	}
	if err := json.Unmarshal(data, &primary); err == nil {
		body := primary.Res
		if body == nil {
			body = primary.Req
		}
		if body != nil {
			env, err := decodeBody(body)
			if err != nil {
				return Envelope{}, err
			}
			env.Signatures = primary.Sig
			return env, nil
		}
	}

	// Legacy shape: the bare [id, method, params, ts] array.
	var legacy []json.RawMessage
	if err := json.Unmarshal(data, &legacy); err == nil && len(legacy) >= 2 {
		return decodeBody(legacy)
	}

	return Envelope{}, &ParseFailure{Reason: "no envelope shape matched"}
}

func decodeBody(body []json.RawMessage) (Envelope, error) {
	if len(body) < 2 {
		return Envelope{}, &ParseFailure{Reason: fmt.Sprintf("body has %d elements, need at least 2", len(body))}
	}

	var env Envelope
	if err := json.Unmarshal(body[0], &env.RequestID); err != nil {
		return Envelope{}, &ParseFailure{Reason: "request id is not a number"}
	}
	if err := json.Unmarshal(body[1], &env.Method); err != nil {
		return Envelope{}, &ParseFailure{Reason: "method is not a string"}
	}
	if len(body) > 2 {
		env.Params = body[2]
	}
	if len(body) > 3 {
		// Timestamp is advisory; a malformed one does not fail the decode.
		_ = json.Unmarshal(body[3], &env.Timestamp)
	}
	return env, nil
}
