package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetTransaction(t *testing.T) {
	mockResponse := `{
		"jsonrpc": "2.0",
		"result": {
			"slot": 12345,
			"transaction": {
				"message": {
					"accountKeys": ["buyer1", "pool1", "venueProgram"],
					"instructions": [
						{"programIdIndex": 2, "accounts": [0, 1]}
					]
				}
			},
			"meta": {
				"preBalances": [2000000000, 0, 0],
				"postBalances": [1500000000, 0, 0],
				"preTokenBalances": [],
				"postTokenBalances": [
					{"accountIndex": 1, "mint": "mint1", "owner": "buyer1", "uiTokenAmount": {"uiAmount": 500.0}}
				]
			}
		},
		"id": 1
	}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, mockResponse)
	}))
	defer ts.Close()

	client := NewRPCClient(ts.URL, ts.URL, "")
	detail, err := client.GetTransaction(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}

	if detail.Slot != 12345 {
		t.Errorf("expected slot 12345, got %d", detail.Slot)
	}
	if len(detail.AccountKeys) != 3 || detail.AccountKeys[0] != "buyer1" {
		t.Errorf("unexpected account keys: %v", detail.AccountKeys)
	}
	if len(detail.Instructions) != 1 || detail.Instructions[0].ProgramIDIndex != 2 {
		t.Errorf("unexpected instructions: %+v", detail.Instructions)
	}
	if len(detail.PostTokenBalances) != 1 || detail.PostTokenBalances[0].Mint != "mint1" {
		t.Errorf("unexpected post token balances: %+v", detail.PostTokenBalances)
	}
}

type fakeLatencySink struct {
	calls []string
}

func (f *fakeLatencySink) Observe(endpoint string, ms float64) {
	f.calls = append(f.calls, endpoint)
}

func TestRPCClientRecordsLatency(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"value":{"blockhash":"abc","lastValidBlockHeight":1}},"id":1}`)
	}))
	defer ts.Close()

	client := NewRPCClient(ts.URL, ts.URL, "")
	sink := &fakeLatencySink{}
	client.SetLatencySink(sink)

	if _, err := client.GetLatestBlockhash(context.Background()); err != nil {
		t.Fatalf("GetLatestBlockhash failed: %v", err)
	}

	if len(sink.calls) != 1 || sink.calls[0] != "primary" {
		t.Fatalf("expected one primary-endpoint latency sample, got %v", sink.calls)
	}
}
