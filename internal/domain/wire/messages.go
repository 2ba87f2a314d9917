package wire

import "encoding/json"

// Allowance grants the session key authority to spend up to Amount of Asset.
type Allowance struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// AuthRequestParams opens the challenge/response handshake. It names the
// wallet identity, the ephemeral session key being delegated to, and the
// bounds of that delegation.
type AuthRequestParams struct {
	Address           string      `json:"address"`
	SessionKeyAddress string      `json:"session_key"`
	Application       string      `json:"application"`
	Scope             string      `json:"scope"`
	Expiry            uint64      `json:"expire"`
	Allowances        []Allowance `json:"allowances"`
}

// AuthChallengeParams carries the opaque challenge the wallet must sign over.
type AuthChallengeParams struct {
	ChallengeMessage string `json:"challenge_message"`
}

// AuthVerifyParams answers a challenge with the wallet's typed-data
// signature.
type AuthVerifyParams struct {
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

// AuthVerifyResult reports the outcome of verification. On success the
// bearer token authorizes this connection until expiry.
type AuthVerifyResult struct {
	Success     bool   `json:"success"`
	Address     string `json:"address,omitempty"`
	BearerToken string `json:"jwt_token,omitempty"`
}

// CreateChannelParams asks the counterparty to open a bilateral channel on
// the given settlement chain.
type CreateChannelParams struct {
	ChainID uint64 `json:"chain_id"`
	Token   string `json:"token"`
}

// ChannelResult is the create-channel response. Counterparty builds disagree
// on where the channel identifier lives, so extraction checks every known
// location.
type ChannelResult struct {
	ChannelIDCamel string `json:"channelId"`
	ChannelIDSnake string `json:"channel_id"`
	Channel        struct {
		ChannelID string `json:"channel_id"`
	} `json:"channel"`
}

// ID returns the first channel identifier found, empty if none.
func (r ChannelResult) ID() string {
	switch {
	case r.ChannelIDCamel != "":
		return r.ChannelIDCamel
	case r.ChannelIDSnake != "":
		return r.ChannelIDSnake
	default:
		return r.Channel.ChannelID
	}
}

// ExtractChannelID decodes a create-channel response params payload and
// returns the channel identifier, tolerating schema variation.
func ExtractChannelID(params json.RawMessage) string {
	var res ChannelResult
	if err := json.Unmarshal(params, &res); err != nil {
		return ""
	}
	return res.ID()
}

// Allocation moves an amount of an asset inside the channel.
type Allocation struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// TransferParams executes an off-chain transfer of one or more allocations.
type TransferParams struct {
	Destination string       `json:"destination,omitempty"`
	Allocations []Allocation `json:"allocations"`
}

// CloseChannelParams requests settlement and closure of a channel.
type CloseChannelParams struct {
	ChannelID        string `json:"channel_id"`
	FundsDestination string `json:"funds_destination"`
}

// ErrorResult is the params payload of an error envelope.
type ErrorResult struct {
	Error string `json:"error"`
}

// ErrorMessage extracts the counterparty's error text from an error
// envelope's params, with a fallback for unstructured payloads.
func ErrorMessage(params json.RawMessage) string {
	var res ErrorResult
	if err := json.Unmarshal(params, &res); err == nil && res.Error != "" {
		return res.Error
	}
	return string(params)
}
