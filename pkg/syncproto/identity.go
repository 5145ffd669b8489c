package syncproto

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/errs"
)

// syncSecretName is the backend secret namespace key holding the 32-byte
// seed the node's libp2p identity derives from. Named "sync" rather than
// the original's "iroh" — see DESIGN.md's sync identity secret note: the key name
// should describe what it's for, not which library originally used it.
const syncSecretName = "sync"

// Identity derives a deterministic ed25519 libp2p identity key from the
// backend's persisted sync secret, generating and persisting a fresh
// random secret on first use. The node's peer ID is stable across
// restarts as long as the secret persists, mirroring the original's
// SecretKey::from_bytes over a fixed 32-byte secret.
func Identity(ctx context.Context, be *backend.Backend) (libp2pcrypto.PrivKey, error) {
	secret, err := be.GetSecret(ctx, syncSecretName)
	if errors.Is(err, errs.ErrSecretNotFound) {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("%w: generate sync secret: %v", errs.ErrIO, err)
		}
		if err := be.SetSecret(ctx, syncSecretName, secret); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: sync secret must be 32 bytes, got %d", errs.ErrInvalidSecret, len(secret))
	}

	seed := sha256.Sum256(secret)
	priv, _, err := libp2pcrypto.GenerateEd25519Key(bytes.NewReader(seed[:]))
	if err != nil {
		return nil, fmt.Errorf("%w: derive identity key: %v", errs.ErrSync, err)
	}
	return priv, nil
}
