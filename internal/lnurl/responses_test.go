package lnurl

import (
	"encoding/json"
	"testing"
)

func TestStatusEnvelope(t *testing.T) {
	tests := []struct {
		name string
		in   Status
		want string
	}{
		{"ok", OK(), `{"status":"OK"}`},
		{"error", Error("Invalid k1"), `{"status":"ERROR","reason":"Invalid k1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("got %s, want %s", b, tt.want)
			}
		})
	}
}
