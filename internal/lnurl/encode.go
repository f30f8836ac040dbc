package lnurl

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	golnurl "github.com/fiatjaf/go-lnurl"
	"github.com/skip2/go-qrcode"
)

// ProtocolPrefix lets the OS hand the link to a wallet app.
const ProtocolPrefix = "lightning:"

// Encode bech32-encodes rawURL as an uppercase LNURL string.
func Encode(rawURL string) (string, error) {
	code, err := golnurl.LNURLEncode(rawURL)
	if err != nil {
		return "", fmt.Errorf("lnurl encode: %w", err)
	}
	return strings.ToUpper(code), nil
}

// Decode accepts an LNURL with or without the lightning: prefix and returns the plain URL.
func Decode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(strings.ToLower(code), ProtocolPrefix) {
		code = code[len(ProtocolPrefix):]
	}
	u, err := golnurl.LNURLDecode(strings.ToLower(code))
	if err != nil {
		return "", fmt.Errorf("lnurl decode: %w", err)
	}
	return u, nil
}

// QRDataURL renders content as a PNG QR code inlined as a data: URL.
func QRDataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("qrcode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Metadata builds the LUD-06 metadata string. identifier is the Lightning
// Address (LUD-16) and may be empty.
func Metadata(description, identifier string) string {
	entries := [][2]string{{"text/plain", description}}
	if identifier != "" {
		entries = append(entries, [2]string{"text/identifier", identifier})
	}
	b, _ := json.Marshal(entries)
	return string(b)
}
