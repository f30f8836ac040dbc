package lnurl

import (
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

type signer struct {
	priv *btcec.PrivateKey
	key  string
}

func newSigner(t *testing.T) signer {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return signer{priv: priv, key: hex.EncodeToString(priv.PubKey().SerializeCompressed())}
}

func (s signer) signDER(t *testing.T, k1 string) []byte {
	t.Helper()
	msg, err := hex.DecodeString(k1)
	if err != nil {
		t.Fatalf("decode k1: %v", err)
	}
	return ecdsa.Sign(s.priv, msg).Serialize()
}

func mustK1(t *testing.T) string {
	t.Helper()
	k1, err := NewK1()
	if err != nil {
		t.Fatalf("NewK1: %v", err)
	}
	return k1
}

func derParts(t *testing.T, der []byte) (*big.Int, *big.Int) {
	t.Helper()
	var sig struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		t.Fatalf("asn1: %v", err)
	}
	return sig.R, sig.S
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func TestVerifySignatureValid(t *testing.T) {
	s := newSigner(t)
	k1 := mustK1(t)
	der := s.signDER(t, k1)

	if err := VerifySignature(k1, hex.EncodeToString(der), s.key); err != nil {
		t.Fatalf("valid DER signature rejected: %v", err)
	}
	// hex case must not matter
	if err := VerifySignature(strings.ToUpper(k1), strings.ToUpper(hex.EncodeToString(der)), s.key); err != nil {
		t.Fatalf("uppercase input rejected: %v", err)
	}
}

func TestVerifySignatureHighS(t *testing.T) {
	s := newSigner(t)
	k1 := mustK1(t)
	r, lowS := derParts(t, s.signDER(t, k1))

	highS := new(big.Int).Sub(btcec.S256().N, lowS)
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, highS})
	if err != nil {
		t.Fatalf("asn1 marshal: %v", err)
	}

	if err := VerifySignature(k1, hex.EncodeToString(der), s.key); err != nil {
		t.Fatalf("high-S signature should verify after normalization: %v", err)
	}
}

func TestVerifySignatureCompact(t *testing.T) {
	s := newSigner(t)
	k1 := mustK1(t)
	r, sv := derParts(t, s.signDER(t, k1))

	compact := append(pad32(r.Bytes()), pad32(sv.Bytes())...)
	if err := VerifySignature(k1, hex.EncodeToString(compact), s.key); err != nil {
		t.Fatalf("compact signature rejected: %v", err)
	}
}

func TestVerifySignatureNegative(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	k1 := mustK1(t)
	sig := hex.EncodeToString(s.signDER(t, k1))

	// flip one bit of k1
	raw, _ := hex.DecodeString(k1)
	raw[0] ^= 0x01
	modifiedK1 := hex.EncodeToString(raw)

	tests := []struct {
		name    string
		k1      string
		sig     string
		key     string
		wantErr error
	}{
		{"modified k1", modifiedK1, sig, s.key, ErrInvalidSignature},
		{"different key", k1, sig, other.key, ErrInvalidSignature},
		{"short k1", k1[:62], sig, s.key, ErrMalformedK1},
		{"non-hex k1", "zz" + k1[2:], sig, s.key, ErrMalformedK1},
		{"uncompressed key prefix", k1, sig, "04" + s.key[2:], ErrMalformedPubKey},
		{"short key", k1, sig, s.key[:64], ErrMalformedPubKey},
		{"off-curve key", k1, sig, "02" + strings.Repeat("ff", 32), ErrMalformedPubKey},
		{"empty sig", k1, "", s.key, ErrMalformedSignature},
		{"odd-length sig", k1, sig[:len(sig)-1], s.key, ErrMalformedSignature},
		{"too long sig", k1, strings.Repeat("00", 73), s.key, ErrMalformedSignature},
		{"garbage DER", k1, strings.Repeat("30", 20), s.key, ErrMalformedSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.k1, tt.sig, tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifySignature() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
