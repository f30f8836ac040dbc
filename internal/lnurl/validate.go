// Package lnurl holds the wire-level helpers shared by the LNURL flows:
// k1 generation, input format checks, linking key signatures and bech32 encoding.
package lnurl

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	K1Len     = 64 // 32 bytes, hex
	PubKeyLen = 66 // 33-byte compressed key, hex
)

var (
	ErrMalformedK1      = errors.New("k1 must be 64 hex characters")
	ErrMalformedPubKey  = errors.New("key must be a 33-byte compressed public key in hex")
	ErrMalformedInvoice = errors.New("malformed invoice")
)

// bech32 data charset after the "1" separator
var invoiceRe = regexp.MustCompile(`^ln[a-z0-9]{2,}1[qpzry9x8gf2tvdw0s3jn54khce6mua7l]{6,}$`)

var usernameRe = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// NewK1 returns 32 random bytes as lowercase hex.
func NewK1() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeK1 checks k1 is 64 hex characters in either case and returns it lowercased.
func NormalizeK1(k1 string) (string, error) {
	if len(k1) != K1Len || !isHex(k1) {
		return "", ErrMalformedK1
	}
	return strings.ToLower(k1), nil
}

// ParsePubKey accepts only compressed secp256k1 keys that lie on the curve.
func ParsePubKey(keyHex string) (*btcec.PublicKey, error) {
	if len(keyHex) != PubKeyLen || !isHex(keyHex) {
		return nil, ErrMalformedPubKey
	}
	raw, _ := hex.DecodeString(keyHex)
	if raw[0] != 0x02 && raw[0] != 0x03 {
		return nil, ErrMalformedPubKey
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, ErrMalformedPubKey
	}
	return pub, nil
}

// NormalizeInvoice strips a "lightning:" prefix, lowercases the payment request
// and checks it looks like a bolt11 string. Decoding is left to the node.
func NormalizeInvoice(pr string) (string, error) {
	pr = strings.ToLower(strings.TrimSpace(pr))
	pr = strings.TrimPrefix(pr, "lightning:")
	if !invoiceRe.MatchString(pr) {
		return "", ErrMalformedInvoice
	}
	return pr, nil
}

// NormalizeUsername lowercases a Lightning Address local part and checks its charset.
func NormalizeUsername(username string) (string, bool) {
	username = strings.ToLower(strings.TrimSpace(username))
	return username, usernameRe.MatchString(username)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
