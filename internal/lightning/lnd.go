package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrNoMacaroon = errors.New("lnd macaroon is not readable")

// LND talks to an lnd node over its REST gateway.
type LND struct {
	baseURL      string
	macaroonPath string
	httpClient   *http.Client
	log          *zap.Logger
}

// NewLND builds the client. When tlsCertPath is set the node certificate is
// pinned, otherwise the system roots are used. An unreadable certificate is
// logged and ignored; calls will then fail at the TLS handshake instead.
func NewLND(baseURL, macaroonPath, tlsCertPath string, timeout time.Duration, log *zap.Logger) *LND {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCertPath != "" {
		pool, err := loadCertPool(tlsCertPath)
		if err != nil {
			log.Warn("failed to load lnd tls cert", zap.String("path", tlsCertPath), zap.Error(err))
		} else {
			transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
		}
	}

	return newLND(baseURL, macaroonPath, &http.Client{Timeout: timeout, Transport: transport}, log)
}

func newLND(baseURL, macaroonPath string, httpClient *http.Client, log *zap.Logger) *LND {
	return &LND{
		baseURL:      strings.TrimRight(baseURL, "/"),
		macaroonPath: macaroonPath,
		httpClient:   httpClient,
		log:          log,
	}
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no certificates found")
	}
	return pool, nil
}

func (l *LND) GetInfo(ctx context.Context) (*NodeInfo, error) {
	var info NodeInfo
	if err := l.do(ctx, http.MethodGet, "/v1/getinfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (l *LND) CreateInvoice(ctx context.Context, amountSat int64, memo string, expirySec int64) (*Invoice, error) {
	req := struct {
		Value  int64  `json:"value,string"`
		Memo   string `json:"memo,omitempty"`
		Expiry int64  `json:"expiry,string"`
	}{amountSat, memo, expirySec}

	var resp struct {
		RHash          string `json:"r_hash"` // base64
		PaymentRequest string `json:"payment_request"`
	}
	if err := l.do(ctx, http.MethodPost, "/v1/invoices", req, &resp); err != nil {
		return nil, err
	}

	hash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("lnd returned malformed r_hash %q", resp.RHash)
	}
	if resp.PaymentRequest == "" {
		return nil, errors.New("lnd returned empty payment_request")
	}

	return &Invoice{PaymentRequest: resp.PaymentRequest, PaymentHash: hex.EncodeToString(hash)}, nil
}

func (l *LND) DecodeInvoice(ctx context.Context, paymentRequest string) (*DecodedInvoice, error) {
	var resp struct {
		PaymentHash string `json:"payment_hash"`
		NumSatoshis int64  `json:"num_satoshis,string"`
		Description string `json:"description"`
		Expiry      int64  `json:"expiry,string"`
	}
	if err := l.do(ctx, http.MethodGet, "/v1/payreq/"+url.PathEscape(paymentRequest), nil, &resp); err != nil {
		return nil, err
	}
	return &DecodedInvoice{
		PaymentHash: resp.PaymentHash,
		AmountSat:   resp.NumSatoshis,
		Description: resp.Description,
		Expiry:      resp.Expiry,
	}, nil
}

func (l *LND) PayInvoice(ctx context.Context, paymentRequest string) error {
	req := struct {
		PaymentRequest string `json:"payment_request"`
	}{paymentRequest}

	var resp struct {
		PaymentError string `json:"payment_error"`
	}
	if err := l.do(ctx, http.MethodPost, "/v1/channels/transactions", req, &resp); err != nil {
		return err
	}
	// lnd reports routing failures in the body with a 200
	if resp.PaymentError != "" {
		return fmt.Errorf("payment failed: %s", resp.PaymentError)
	}
	return nil
}

func (l *LND) GetInvoiceStatus(ctx context.Context, paymentHashHex string) (*InvoiceStatus, error) {
	if _, err := hex.DecodeString(paymentHashHex); err != nil || len(paymentHashHex) != 64 {
		return nil, fmt.Errorf("malformed payment hash %q", paymentHashHex)
	}

	var resp struct {
		Settled bool   `json:"settled"`
		State   string `json:"state"`
	}
	if err := l.do(ctx, http.MethodGet, "/v1/invoice/"+paymentHashHex, nil, &resp); err != nil {
		return nil, err
	}
	return &InvoiceStatus{Settled: resp.Settled || resp.State == "SETTLED", State: resp.State}, nil
}

func (l *LND) OpenChannel(ctx context.Context, remotePubkeyHex string, capacitySat int64, private bool) error {
	pub, err := hex.DecodeString(remotePubkeyHex)
	if err != nil {
		return fmt.Errorf("malformed remote pubkey: %w", err)
	}

	req := struct {
		NodePubkey         string `json:"node_pubkey"` // base64
		LocalFundingAmount int64  `json:"local_funding_amount,string"`
		Private            bool   `json:"private"`
	}{base64.StdEncoding.EncodeToString(pub), capacitySat, private}

	return l.do(ctx, http.MethodPost, "/v1/channels", req, nil)
}

func (l *LND) NewAddress(ctx context.Context) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	if err := l.do(ctx, http.MethodGet, "/v1/newaddress", nil, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// do sends one authenticated request. The macaroon is read from disk on every
// call so a rotated or late-provisioned file is picked up without a restart.
func (l *LND) do(ctx context.Context, method, path string, body, out any) error {
	mac, err := os.ReadFile(l.macaroonPath)
	if err != nil || len(mac) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMacaroon, l.macaroonPath)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", hex.EncodeToString(mac))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd unavailable: %w", err)
	}
	defer resp.Body.Close()

	l.log.Debug("lnd call",
		zap.String("method", method),
		zap.String("path", routeOf(path)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil {
			if apiErr.Message != "" {
				return fmt.Errorf("lnd returned %d: %s", resp.StatusCode, apiErr.Message)
			}
			if apiErr.Error != "" {
				return fmt.Errorf("lnd returned %d: %s", resp.StatusCode, apiErr.Error)
			}
		}
		return fmt.Errorf("lnd returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode lnd response: %w", err)
	}
	return nil
}

// routeOf drops path parameters so invoices and hashes do not end up in logs.
func routeOf(path string) string {
	for _, prefix := range []string{"/v1/payreq/", "/v1/invoice/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + ":param"
		}
	}
	return path
}
