package nearrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockDecodesHeaderFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "block", req.Method)

		resp := rpcResponse{Result: json.RawMessage(`{
			"header": {
				"hash": "0x` + hex32("01") + `",
				"prev_hash": "0x` + hex32("02") + `",
				"height": 100,
				"epoch_id": "0x` + hex32("03") + `",
				"next_epoch_id": "0x` + hex32("04") + `",
				"next_bp_hash": "0x` + hex32("05") + `",
				"last_ds_final_block": "0x` + hex32("06") + `",
				"last_final_block": "0x` + hex32("07") + `",
				"approvals_after_next": ["0x` + hex64("08") + `", null]
			}
		}`)}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL)
	header, err := c.Block(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, uint64(100), *header.Height)
	require.Len(t, header.Hash, 32)
	require.Len(t, header.Approvals, 2)
}

func hex32(b string) string {
	out := ""
	for i := 0; i < 32; i++ {
		out += b
	}
	return out
}

func hex64(b string) string {
	out := ""
	for i := 0; i < 64; i++ {
		out += b
	}
	return out
}
