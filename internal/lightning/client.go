// Package lightning is the boundary to the Lightning node that issues, pays and
// settles invoices and opens channels.
package lightning

import "context"

// Client is everything the flows and the reconciler need from a node.
type Client interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	CreateInvoice(ctx context.Context, amountSat int64, memo string, expirySec int64) (*Invoice, error)
	DecodeInvoice(ctx context.Context, paymentRequest string) (*DecodedInvoice, error)
	PayInvoice(ctx context.Context, paymentRequest string) error
	GetInvoiceStatus(ctx context.Context, paymentHashHex string) (*InvoiceStatus, error)
	OpenChannel(ctx context.Context, remotePubkeyHex string, capacitySat int64, private bool) error
	NewAddress(ctx context.Context) (string, error)
}

type NodeInfo struct {
	IdentityPubkey string   `json:"identity_pubkey"`
	Alias          string   `json:"alias"`
	URIs           []string `json:"uris"`
	SyncedToChain  bool     `json:"synced_to_chain"`
	BlockHeight    int64    `json:"block_height"`
}

// URI returns the first advertised pubkey@host:port, or the bare pubkey when
// the node advertises none.
func (n *NodeInfo) URI() string {
	if len(n.URIs) > 0 {
		return n.URIs[0]
	}
	return n.IdentityPubkey
}

type Invoice struct {
	PaymentRequest string `json:"payment_request"`
	PaymentHash    string `json:"payment_hash"` // hex
}

type DecodedInvoice struct {
	PaymentHash string `json:"payment_hash"`
	AmountSat   int64  `json:"amount_sat"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry"`
}

type InvoiceStatus struct {
	Settled bool   `json:"settled"`
	State   string `json:"state"` // OPEN, SETTLED, CANCELED, ACCEPTED
}
