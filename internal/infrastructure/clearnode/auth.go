package clearnode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/domain/wire"
)

// AuthConfig bounds the delegation granted to the session key.
type AuthConfig struct {
	// Application identifies this client to the clearnode.
	Application string
	// Scope names what the session key may do, e.g. "app.create app.submit".
	Scope string
	// Expiry ends the delegation; the session key is useless after it.
	Expiry time.Time
	// Allowances cap what the session key may spend, per asset.
	Allowances []wire.Allowance
}

// AuthResult reports a successful handshake.
type AuthResult struct {
	BearerToken       string
	SessionKeyAddress common.Address
}

// Authenticate runs the challenge/response handshake over an open
// connection: auth_request announcing the session key, a challenge from the
// counterparty, one wallet typed-data signature binding key, scope, expiry
// and allowances together, then auth_verify. On success the session key
// signs all further domain requests without wallet involvement.
//
// Failures are terminal for the attempt: a timed-out challenge, an explicit
// counterparty error, or a verify rejection all fail without retry.
func Authenticate(ctx context.Context, conn *Conn, wallet WalletSigner, cfg AuthConfig) (AuthResult, error) {
	key := conn.SessionKey()
	if key == nil {
		return AuthResult{}, domain.ErrNotConnected
	}

	reqParams := wire.AuthRequestParams{
		Address:           wallet.Address().Hex(),
		SessionKeyAddress: key.Address().Hex(),
		Application:       cfg.Application,
		Scope:             cfg.Scope,
		Expiry:            uint64(cfg.Expiry.Unix()),
		Allowances:        cfg.Allowances,
	}

	challengeEnv, err := conn.Call(ctx, wire.MethodAuthRequest, reqParams)
	if err != nil {
		return AuthResult{}, domain.NewAuthenticationError(err.Error())
	}
	if challengeEnv.Method != wire.MethodAuthChallenge {
		return AuthResult{}, domain.NewAuthenticationError(
			fmt.Sprintf("expected %s, got %s", wire.MethodAuthChallenge, challengeEnv.Method))
	}

	var challenge wire.AuthChallengeParams
	if err := json.Unmarshal(challengeEnv.Params, &challenge); err != nil {
		return AuthResult{}, domain.NewAuthenticationError("malformed challenge payload")
	}
	if challenge.ChallengeMessage == "" {
		return AuthResult{}, domain.NewAuthenticationError("empty challenge")
	}

	// The one wallet interaction per connection.
	sig, err := wallet.SignTypedData(ctx, challengeTypedData(cfg, wallet.Address(), key.Address(), challenge.ChallengeMessage))
	if err != nil {
		return AuthResult{}, domain.NewAuthenticationError(fmt.Sprintf("wallet signature: %s", err))
	}

	verifyEnv, err := conn.Call(ctx, wire.MethodAuthVerify, wire.AuthVerifyParams{
		Challenge: challenge.ChallengeMessage,
		Signature: hexutil.Encode(sig),
	})
	if err != nil {
		return AuthResult{}, domain.NewAuthenticationError(err.Error())
	}

	var verdict wire.AuthVerifyResult
	if err := json.Unmarshal(verifyEnv.Params, &verdict); err != nil {
		return AuthResult{}, domain.NewAuthenticationError("malformed verify payload")
	}
	if !verdict.Success {
		return AuthResult{}, domain.NewAuthenticationError("clearnode rejected verification")
	}

	conn.markAuthenticated(verdict.BearerToken)
	return AuthResult{
		BearerToken:       verdict.BearerToken,
		SessionKeyAddress: key.Address(),
	}, nil
}

// challengeTypedData builds the EIP-712 payload the wallet signs. Allowances
// are serialized into a single string field to keep the struct flat across
// wallet implementations.
func challengeTypedData(cfg AuthConfig, wallet, sessionKey common.Address, challenge string) apitypes.TypedData {
	allowances, _ := json.Marshal(cfg.Allowances)

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
			},
			"Policy": []apitypes.Type{
				{Name: "challenge", Type: "string"},
				{Name: "scope", Type: "string"},
				{Name: "wallet", Type: "address"},
				{Name: "participant", Type: "address"},
				{Name: "application", Type: "string"},
				{Name: "expire", Type: "uint256"},
				{Name: "allowances", Type: "string"},
			},
		},
		PrimaryType: "Policy",
		Domain: apitypes.TypedDataDomain{
			Name:    cfg.Application,
			Version: "1",
		},
		Message: apitypes.TypedDataMessage{
			"challenge":   challenge,
			"scope":       cfg.Scope,
			"wallet":      wallet.Hex(),
			"participant": sessionKey.Hex(),
			"application": cfg.Application,
			"expire":      fmt.Sprintf("%d", cfg.Expiry.Unix()),
			"allowances":  string(allowances),
		},
	}
}
