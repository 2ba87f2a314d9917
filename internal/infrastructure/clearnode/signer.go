package clearnode

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// WalletSigner is the external wallet capability. Signing typed data usually
// requires user confirmation, which is why it is invoked exactly once per
// connection, during the authentication challenge.
type WalletSigner interface {
	// Address returns the wallet's long-lived identity.
	Address() common.Address

	// SignTypedData produces an EIP-712 signature over the payload.
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// SessionKey is an ephemeral secp256k1 keypair delegated authority to sign
// protocol messages for one connection's lifetime. It is generated fresh on
// every connect and never persisted.
type SessionKey struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewSessionKey generates a fresh ephemeral keypair.
func NewSessionKey() (*SessionKey, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generating session key")
	}
	return &SessionKey{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Address returns the session key's public identity.
func (k *SessionKey) Address() common.Address {
	return k.address
}

// Sign signs the keccak256 digest of payload and returns the 0x-prefixed
// signature.
func (k *SessionKey) Sign(payload []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), k.priv)
	if err != nil {
		return "", errors.Wrap(err, "session key sign")
	}
	return hexutil.Encode(sig), nil
}

// LocalWallet is a WalletSigner backed by an in-process private key. It
// stands in for a browser wallet in tests and the CLI demo.
type LocalWallet struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewLocalWallet generates a wallet with a random key.
func NewLocalWallet() (*LocalWallet, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generating wallet key")
	}
	return &LocalWallet{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// NewLocalWalletFromHex builds a wallet from a hex-encoded private key.
func NewLocalWalletFromHex(keyHex string) (*LocalWallet, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decoding wallet key")
	}
	return &LocalWallet{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Address returns the wallet address.
func (w *LocalWallet) Address() common.Address {
	return w.address
}

// SignTypedData signs the EIP-712 hash of the payload.
func (w *LocalWallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, errors.Wrap(err, "hashing typed data")
	}
	sig, err := crypto.Sign(digest, w.priv)
	if err != nil {
		return nil, errors.Wrap(err, "signing typed data")
	}
	return sig, nil
}
