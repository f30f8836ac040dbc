package lnurl

import (
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	ErrMalformedSignature = errors.New("sig must be a hex DER or 64-byte compact signature")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// DER signatures are 8..72 bytes, compact r||s is exactly 64.
const (
	minDERSigHex  = 16
	maxDERSigHex  = 144
	compactSigHex = 128
)

// VerifySignature checks sig over the raw k1 bytes (not a hash of them) under
// the compressed linking key. Both DER and compact encodings are accepted; the
// S value is normalized to the lower half of the curve order before verifying.
func VerifySignature(k1Hex, sigHex, keyHex string) error {
	k1, err := NormalizeK1(k1Hex)
	if err != nil {
		return err
	}
	pub, err := ParsePubKey(keyHex)
	if err != nil {
		return err
	}
	sig, err := ParseSignature(sigHex)
	if err != nil {
		return err
	}

	msg, _ := hex.DecodeString(k1)
	if !sig.Verify(msg, pub) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseSignature decodes a DER or compact signature into a low-S signature.
func ParseSignature(sigHex string) (*ecdsa.Signature, error) {
	if !isHex(sigHex) || len(sigHex)%2 != 0 {
		return nil, ErrMalformedSignature
	}
	raw, _ := hex.DecodeString(sigHex)

	var rBytes, sBytes []byte
	switch {
	case len(sigHex) == compactSigHex:
		// a 64-byte blob may still be DER; fall back to r||s
		if r, s, ok := parseDER(raw); ok {
			rBytes, sBytes = r, s
		} else {
			rBytes, sBytes = raw[:32], raw[32:]
		}
	case len(sigHex) >= minDERSigHex && len(sigHex) <= maxDERSigHex:
		r, s, ok := parseDER(raw)
		if !ok {
			return nil, ErrMalformedSignature
		}
		rBytes, sBytes = r, s
	default:
		return nil, ErrMalformedSignature
	}

	if len(rBytes) > 32 || len(sBytes) > 32 {
		return nil, ErrMalformedSignature
	}

	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(rBytes); overflow || r.IsZero() {
		return nil, ErrMalformedSignature
	}
	if overflow := s.SetByteSlice(sBytes); overflow || s.IsZero() {
		return nil, ErrMalformedSignature
	}
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	return ecdsa.NewSignature(&r, &s), nil
}

func parseDER(raw []byte) (r, s []byte, ok bool) {
	if len(raw) == 0 || raw[0] != 0x30 {
		return nil, nil, false
	}
	var der struct{ R, S *big.Int }
	rest, err := asn1.Unmarshal(raw, &der)
	if err != nil || len(rest) != 0 || der.R == nil || der.S == nil {
		return nil, nil, false
	}
	if der.R.Sign() <= 0 || der.S.Sign() <= 0 {
		return nil, nil, false
	}
	return der.R.Bytes(), der.S.Bytes(), true
}

// SignatureShapeOK reports whether sigHex has the length of a DER or compact
// signature. It does not parse it.
func SignatureShapeOK(sigHex string) bool {
	n := len(sigHex)
	if n%2 != 0 || !isHex(sigHex) {
		return false
	}
	return n == compactSigHex || (n >= minDERSigHex && n <= maxDERSigHex)
}
