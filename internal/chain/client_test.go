package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetBlockCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rpc" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			JSONRPC string `json:"jsonrpc"`
			ID      int64  `json:"id"`
			Method  string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.JSONRPC != "2.0" || req.Method != "getblockcount" || req.ID == 0 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":840123}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, "rpc", "secret", time.Second)
	height, err := c.GetBlockCount(context.Background())
	if err != nil {
		t.Fatalf("GetBlockCount: %v", err)
	}
	if height != 840123 {
		t.Errorf("height = %d", height)
	}
}

func TestRPCErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"rpc error on 500", http.StatusInternalServerError, `{"result":null,"error":{"code":-28,"message":"Loading block index..."},"id":1}`, "Loading block index"},
		{"unauthorized", http.StatusUnauthorized, ``, "status=401"},
		{"null result", http.StatusOK, `{"result":null,"error":null,"id":1}`, "empty result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRPCClient(srv.URL, "", "", time.Second).GetBlockCount(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	c := NewRPCClient("http://127.0.0.1:1", "", "", 200*time.Millisecond)
	if _, err := c.GetBlockCount(context.Background()); err == nil {
		t.Fatal("expected error for unreachable node")
	}
}
