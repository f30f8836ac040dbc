package cmd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const hardened = 0x80000000

func seedFromFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mnemonic := strings.TrimSpace(string(raw))
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("mnemonic is invalid")
	}
	// Passphrase is not supported.
	return bip39.NewSeed(mnemonic, ""), nil
}

// linkingKey derives the per-domain key of LUD-05:
//
//	hashingKey = m/138'/0
//	path       = m/138'/<i1>/<i2>/<i3>/<i4>
//
// where i1..i4 are the first 16 bytes of HMAC-SHA256(hashingKey, domain).
func linkingKey(seed []byte, domain string) (*btcec.PrivateKey, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	authRoot, err := master.NewChildKey(hardened + 138)
	if err != nil {
		return nil, fmt.Errorf("derive m/138': %w", err)
	}
	hashingKey, err := authRoot.NewChildKey(0)
	if err != nil {
		return nil, fmt.Errorf("derive m/138'/0: %w", err)
	}

	mac := hmac.New(sha256.New, hashingKey.Key)
	mac.Write([]byte(domain))
	digest := mac.Sum(nil)

	key := authRoot
	for i := 0; i < 4; i++ {
		key, err = key.NewChildKey(binary.BigEndian.Uint32(digest[i*4 : i*4+4]))
		if err != nil {
			return nil, fmt.Errorf("derive linking key: %w", err)
		}
	}

	priv, _ := btcec.PrivKeyFromBytes(key.Key)
	return priv, nil
}

// signChallenge returns the DER signature over the raw 32 k1 bytes and the
// compressed public key, both hex.
func signChallenge(priv *btcec.PrivateKey, k1Hex string) (sig, key string, err error) {
	k1, err := hex.DecodeString(k1Hex)
	if err != nil || len(k1) != 32 {
		return "", "", fmt.Errorf("k1 must be 32 hex-encoded bytes")
	}
	s := ecdsa.Sign(priv, k1)
	return hex.EncodeToString(s.Serialize()), hex.EncodeToString(priv.PubKey().SerializeCompressed()), nil
}
