// Package chain is a minimal JSON-RPC client for the chain node, used for health reporting.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

type Client interface {
	GetBlockCount(ctx context.Context) (int64, error)
}

// RPCClient speaks JSON-RPC 2.0 with HTTP basic auth (bitcoind style).
type RPCClient struct {
	url      string
	user     string
	password string
	http     *http.Client
	nextID   atomic.Int64
}

func NewRPCClient(url, user, password string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		url:      url,
		user:     user,
		password: password,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RPCClient) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	if err := c.call(ctx, "getblockcount", []any{}, &height); err != nil {
		return 0, err
	}
	return height, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	buf, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chain rpc unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	// bitcoind answers RPC errors with a 500 and a JSON body
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("chain rpc %s failed: status=%d", method, resp.StatusCode)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chain rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain rpc %s failed: status=%d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("chain rpc returned empty result")
	}
	return json.Unmarshal(rpcResp.Result, out)
}
