package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"certus/internal/domain"
)

// Service signs canonical proof bytes with the active key and verifies
// signatures against either of the at most two keys live during a rotation
// window. Rotation can happen while requests are in flight, so the key
// fields are guarded by mu.
type Service struct {
	mu         sync.RWMutex
	active     ed25519.PrivateKey
	activeFP   string
	previous   ed25519.PrivateKey
	previousFP string
}

func NewService(active, previous ed25519.PrivateKey) (*Service, error) {
	if len(active) != ed25519.PrivateKeySize {
		return nil, domain.ErrNoSigningKey
	}
	s := &Service{
		active:   active,
		activeFP: Fingerprint(active.Public().(ed25519.PublicKey)),
	}
	if previous != nil {
		if len(previous) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("previous key: invalid length %d", len(previous))
		}
		s.previous = previous
		s.previousFP = Fingerprint(previous.Public().(ed25519.PublicKey))
	}
	return s, nil
}

// NewServiceFromKeys loads keys from base64 (full private key) or hex seed
// material. Exactly one form of the active key is required.
func NewServiceFromKeys(activeB64, activeSeedHex, previousB64, previousSeedHex string) (*Service, error) {
	active, err := decodeKey(activeB64, activeSeedHex)
	if err != nil {
		return nil, fmt.Errorf("active signing key: %w", err)
	}
	if active == nil {
		return nil, domain.ErrNoSigningKey
	}
	previous, err := decodeKey(previousB64, previousSeedHex)
	if err != nil {
		return nil, fmt.Errorf("previous signing key: %w", err)
	}
	return NewService(active, previous)
}

func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}

// Fingerprint identifies a public key as hex(sha256(pubkey)).
func Fingerprint(pubKey ed25519.PublicKey) string {
	sum := sha256.Sum256(pubKey)
	return hex.EncodeToString(sum[:])
}

func (s *Service) ActiveFingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFP
}

// Sign signs the canonical bytes with the active key and returns the base64
// signature plus the signer fingerprint.
func (s *Service) Sign(canonical []byte) (string, string, error) {
	if s == nil {
		return "", "", domain.ErrNoSigningKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return "", "", domain.ErrNoSigningKey
	}
	sig := ed25519.Sign(s.active, canonical)
	return base64.StdEncoding.EncodeToString(sig), s.activeFP, nil
}

// Verify checks sigB64 over canonical against the key identified by
// fingerprint. It reports false with a reason on any malformed input, unknown
// fingerprint, or mismatch; it never returns an error to the caller.
func (s *Service) Verify(canonical []byte, sigB64, fingerprint string) (bool, string) {
	if s == nil {
		return false, "verifier not configured"
	}
	s.mu.RLock()
	pubKey, ok := s.publicKeyFor(fingerprint)
	s.mu.RUnlock()
	if !ok {
		return false, domain.ErrUnknownSigner.Error()
	}
	if sigB64 == "" {
		return false, "signature is empty"
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, "invalid signature encoding"
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Sprintf("invalid signature length %d", len(sig))
	}
	if !ed25519.Verify(pubKey, canonical, sig) {
		return false, domain.ErrSignatureInvalid.Error()
	}
	return true, ""
}

// publicKeyFor is called with mu held.
func (s *Service) publicKeyFor(fingerprint string) (ed25519.PublicKey, bool) {
	switch fingerprint {
	case s.activeFP:
		if s.active == nil {
			return nil, false
		}
		return s.active.Public().(ed25519.PublicKey), true
	case s.previousFP:
		if s.previous == nil {
			return nil, false
		}
		return s.previous.Public().(ed25519.PublicKey), true
	default:
		return nil, false
	}
}

// Rotate makes key the new active key and demotes the current active key to
// the previous slot, keeping the rotation window at two keys.
func (s *Service) Rotate(key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid key length %d", len(key))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.active
	s.previousFP = s.activeFP
	s.active = key
	s.activeFP = Fingerprint(key.Public().(ed25519.PublicKey))
	return nil
}

func decodeKey(b64, seedHex string) (ed25519.PrivateKey, error) {
	if b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid private key length %d", len(raw))
		}
		return ed25519.PrivateKey(raw), nil
	}
	if seedHex != "" {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("invalid hex seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid seed length %d", len(seed))
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	return nil, nil
}
