package archive

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/btcsuite/btcutil/bech32"
)

const (
	envAgeSecretKey = "AGE_SECRET_KEY"
	envAgePublicKey = "AGE_PUBLIC_KEY"
)

// Signer signs and verifies manifests with an Ed25519 key pair derived from an age secret key.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	recipient  string
}

// NewSignerFromEnv initialises a Signer from AGE_SECRET_KEY and AGE_PUBLIC_KEY.
func NewSignerFromEnv() (*Signer, error) {
	return NewSigner(os.Getenv(envAgeSecretKey), os.Getenv(envAgePublicKey))
}

// NewSigner builds a Signer from an age secret key, a base64 Ed25519 public key, or both. A signer
// without the secret can only verify.
func NewSigner(secret, public string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	public = strings.TrimSpace(public)
	if secret == "" && public == "" {
		return nil, fmt.Errorf("%s or %s must be set", envAgeSecretKey, envAgePublicKey)
	}

	s := &Signer{}
	if secret != "" {
		seed, err := decodeAgeSecretKey(secret)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", envAgeSecretKey, err)
		}
		s.privateKey = ed25519.NewKeyFromSeed(seed)
		s.publicKey = ed25519.PublicKey(s.privateKey[ed25519.SeedSize:])

		if identity, err := age.ParseX25519Identity(secret); err == nil {
			s.recipient = identity.Recipient().String()
		}
	}

	if public != "" {
		decoded, err := decodePublicKey(public)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", envAgePublicKey, err)
		}
		if s.publicKey == nil {
			s.publicKey = decoded
		} else if !bytes.Equal(s.publicKey, decoded) {
			return nil, errors.New("AGE_PUBLIC_KEY does not match AGE_SECRET_KEY")
		}
	}
	return s, nil
}

// Sign produces a base64-encoded Ed25519 signature for payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	if s == nil {
		return "", errors.New("nil signer")
	}
	if len(s.privateKey) == 0 {
		return "", errors.New("signer configured without private key")
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.privateKey, payload)), nil
}

// Verify checks signature against payload. manifestPublicKey, when set, must match the configured
// key; a nil signer trusts the key embedded in the manifest.
func (s *Signer) Verify(payload []byte, signature, manifestPublicKey string) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	var key ed25519.PublicKey
	if s != nil {
		key = s.publicKey
	}
	if manifestPublicKey != "" {
		decoded, err := decodePublicKey(manifestPublicKey)
		if err != nil {
			return fmt.Errorf("decode manifest public key: %w", err)
		}
		if key != nil && !bytes.Equal(key, decoded) {
			return errors.New("manifest signed by unexpected key")
		}
		key = decoded
	}
	if key == nil {
		return errors.New("no public key available for verification")
	}
	if !ed25519.Verify(key, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

// PublicKeyBase64 returns the Ed25519 public key in base64 form.
func (s *Signer) PublicKeyBase64() string {
	if s == nil || len(s.publicKey) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.publicKey)
}

// Recipient returns the age recipient matching the secret key, if any.
func (s *Signer) Recipient() string {
	if s == nil {
		return ""
	}
	return s.recipient
}

func decodePublicKey(raw string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if l := len(decoded); l != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return ed25519.PublicKey(decoded), nil
}

func decodeAgeSecretKey(raw string) ([]byte, error) {
	hrp, data, err := bech32.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(hrp, "age-secret-key-") {
		return nil, fmt.Errorf("unexpected hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected seed length %d", len(decoded))
	}
	return decoded, nil
}

// ParseRecipients parses age X25519 recipients ("age1...").
func ParseRecipients(values []string) ([]age.Recipient, error) {
	out := make([]age.Recipient, 0, len(values))
	for _, v := range values {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", v, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseIdentities parses age X25519 identities ("AGE-SECRET-KEY-1...").
func ParseIdentities(values []string) ([]age.Identity, error) {
	out := make([]age.Identity, 0, len(values))
	for _, v := range values {
		id, err := age.ParseX25519Identity(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}
