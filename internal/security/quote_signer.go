// Package security signs route recommendations so downstream consumers can
// verify that a quote was produced by this service and has not been altered
// in transit.
package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/route-optimizer-ea/internal/model"
)

const signatureAlgorithm = "ECDSA-P256-SHA256"

// QuoteSigner holds the key material for signing recommendations. The P-256
// key signs JSON envelopes, a separate secp256k1 key produces digests that
// Ethereum contracts can verify with ecrecover.
type QuoteSigner struct {
	signingKey *ecdsa.PrivateKey
	onChainKey *ecdsa.PrivateKey
	publicKey  string
	validity   time.Duration
}

// SignedQuote wraps a recommendation together with its signature metadata.
type SignedQuote struct {
	Quote      *model.RouteRecommendation `json:"quote"`
	Signature  string                     `json:"signature"`
	PublicKey  string                     `json:"public_key"`
	Algorithm  string                     `json:"algorithm"`
	SignedAt   time.Time                  `json:"signed_at"`
	ValidUntil time.Time                  `json:"valid_until"`
}

// OnChainAttestation carries a Keccak-256 digest of a recommendation signed
// with the Ethereum signature scheme.
type OnChainAttestation struct {
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	SignedAt  int64  `json:"signed_at"`
}

// NewQuoteSigner generates fresh key pairs. Quotes signed by the returned
// signer expire after validity; values <= 0 fall back to 5 minutes.
func NewQuoteSigner(validity time.Duration) (*QuoteSigner, error) {
	if validity <= 0 {
		validity = 5 * time.Minute
	}

	signingKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	onChainKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate on-chain key: %w", err)
	}

	publicKeyBytes := elliptic.Marshal(elliptic.P256(), signingKey.PublicKey.X, signingKey.PublicKey.Y)
	publicKey := base64.StdEncoding.EncodeToString(publicKeyBytes)

	logrus.Infof("Quote signer initialized with public key: %s...", publicKey[:16])

	return &QuoteSigner{
		signingKey: signingKey,
		onChainKey: onChainKey,
		publicKey:  publicKey,
		validity:   validity,
	}, nil
}

// SignQuote signs the canonical JSON encoding of the recommendation.
func (s *QuoteSigner) SignQuote(rec *model.RouteRecommendation) (*SignedQuote, error) {
	if rec == nil {
		return nil, fmt.Errorf("cannot sign a nil recommendation")
	}

	digest, err := quoteDigest(rec)
	if err != nil {
		return nil, err
	}

	r, sv, err := ecdsa.Sign(rand.Reader, s.signingKey, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign recommendation: %w", err)
	}

	// Fixed-width encoding so the signature is always 64 bytes; r and s can
	// be shorter than 32 bytes on their own.
	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	sv.FillBytes(signature[32:])

	now := time.Now()
	return &SignedQuote{
		Quote:      rec,
		Signature:  base64.StdEncoding.EncodeToString(signature),
		PublicKey:  s.publicKey,
		Algorithm:  signatureAlgorithm,
		SignedAt:   now,
		ValidUntil: now.Add(s.validity),
	}, nil
}

// VerifyQuote checks expiry and signature. A nil return means the quote is
// authentic and still valid. The public key embedded in the quote is used,
// so quotes from other signer instances verify as well.
func (s *QuoteSigner) VerifyQuote(sq *SignedQuote) error {
	if sq == nil || sq.Quote == nil {
		return fmt.Errorf("signed quote is empty")
	}

	if time.Now().After(sq.ValidUntil) {
		return fmt.Errorf("quote signature expired at %s", sq.ValidUntil.Format(time.RFC3339))
	}

	signature, err := base64.StdEncoding.DecodeString(sq.Signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(signature) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(signature))
	}

	publicKeyBytes, err := base64.StdEncoding.DecodeString(sq.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), publicKeyBytes)
	if x == nil {
		return fmt.Errorf("failed to unmarshal public key")
	}
	publicKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}

	digest, err := quoteDigest(sq.Quote)
	if err != nil {
		return err
	}

	r := new(big.Int).SetBytes(signature[:32])
	sv := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(publicKey, digest, r, sv) {
		return fmt.Errorf("signature mismatch: recommendation was altered after signing")
	}

	return nil
}

// PublicKey returns the base64-encoded envelope verification key.
func (s *QuoteSigner) PublicKey() string {
	return s.publicKey
}

// OnChainDigest produces a Keccak-256 digest and 65-byte recoverable
// signature over the recommendation, verifiable on EVM chains.
func (s *QuoteSigner) OnChainDigest(rec *model.RouteRecommendation) (*OnChainAttestation, error) {
	if rec == nil {
		return nil, fmt.Errorf("cannot attest a nil recommendation")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendation: %w", err)
	}

	digest := crypto.Keccak256Hash(payload)
	signature, err := crypto.Sign(digest.Bytes(), s.onChainKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign with Ethereum scheme: %w", err)
	}

	return &OnChainAttestation{
		Digest:    digest.Hex(),
		Signature: fmt.Sprintf("0x%x", signature),
		Signer:    crypto.PubkeyToAddress(s.onChainKey.PublicKey).Hex(),
		SignedAt:  time.Now().Unix(),
	}, nil
}

func quoteDigest(rec *model.RouteRecommendation) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendation: %w", err)
	}
	hash := sha256.Sum256(payload)
	return hash[:], nil
}
