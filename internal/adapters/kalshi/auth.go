package kalshi

// auth.go — Kalshi trade API v2 request signing.
//
// Every request is signed over: decimal_timestamp_ms + HTTP_METHOD + path
// (query string stripped). The PEM key selects the algorithm: RSA keys sign
// with RSA-PSS SHA-256, Ed25519 keys sign raw. The signature travels
// base64-encoded in the KALSHI-ACCESS-SIGNATURE header.

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Signer produces signed auth headers for REST and WS handshakes.
type Signer struct {
	apiKeyID string
	rsaKey   *rsa.PrivateKey
	edKey    ed25519.PrivateKey
}

// LoadSigner reads a PEM private key and detects its type.
func LoadSigner(apiKeyID, privateKeyPath string) (*Signer, error) {
	pemBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi.LoadSigner: read key: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("kalshi.LoadSigner: %q is not PEM", privateKeyPath)
	}

	s := &Signer{apiKeyID: apiKeyID}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey:
			s.rsaKey = k
		case ed25519.PrivateKey:
			s.edKey = k
		default:
			return nil, fmt.Errorf("kalshi.LoadSigner: unsupported key type %T", key)
		}
	} else if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		s.rsaKey = key
	} else {
		return nil, fmt.Errorf("kalshi.LoadSigner: cannot parse private key in %q", privateKeyPath)
	}

	slog.Info("kalshi signer initialized", "key_type", s.keyType(), "key_id", apiKeyID)
	return s, nil
}

func (s *Signer) keyType() string {
	if s.edKey != nil {
		return "ed25519"
	}
	return "rsa-pss"
}

// Headers builds the signed auth headers for one request.
// method is the uppercase HTTP verb; path is the full URL path including the
// API prefix, e.g. "/trade-api/v2/portfolio/orders". The query string, if
// present, is stripped before signing.
func (s *Signer) Headers(method, path string) (map[string]string, error) {
	timestampMs := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signPath, _, _ := strings.Cut(path, "?")
	msg := []byte(timestampMs + strings.ToUpper(method) + signPath)

	sig, err := s.sign(msg)
	if err != nil {
		return nil, fmt.Errorf("kalshi.Signer.Headers: %w", err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.apiKeyID,
		"KALSHI-ACCESS-TIMESTAMP": timestampMs,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
	}, nil
}

func (s *Signer) sign(msg []byte) ([]byte, error) {
	if s.edKey != nil {
		return ed25519.Sign(s.edKey, msg), nil
	}
	digest := sha256.Sum256(msg)
	// Kalshi requires PSS with salt length equal to the digest size,
	// not PKCS1v15.
	return rsa.SignPSS(rand.Reader, s.rsaKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
}
