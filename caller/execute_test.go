package caller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/aggregator"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/requests"
)

func testEndpoint() config.Endpoint {
	return config.Endpoint{
		Name:      "convertToUSD",
		Operation: config.Operation{Method: "GET", Path: "/convert"},
		FixedOperationParameters: []config.FixedOperationParameter{
			{Name: "to", Value: "USD"},
		},
		ReservedParameters: []config.ReservedParameter{
			{Name: "_type", Fixed: "int256"},
			{Name: "_path", Fixed: "result"},
		},
	}
}

func executeConfig(serverURL string) config.Config {
	return config.Config{
		Triggers: config.Triggers{Requests: []config.Trigger{
			{EndpointID: common.HexToHash("0x1").Hex(), OISTitle: "currency-converter", EndpointName: "convertToUSD"},
		}},
		OIS: []config.OIS{{
			Title: "currency-converter",
			APISpecifications: config.APISpecifications{
				Servers: []config.Server{{URL: serverURL}},
			},
			Endpoints: []config.Endpoint{testEndpoint()},
		}},
	}
}

// TestExecute runs aggregated calls against a mock API: one succeeding, one failing. The failure must not touch the
// succeeding call.
func TestExecute(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") == "ETH" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result": 441}`))

			return
		}

		http.Error(w, "no such pair", http.StatusBadRequest)
	}))
	defer mock.Close()

	cfg := executeConfig(mock.URL)
	trigger := cfg.Triggers.Requests[0]

	okID := common.HexToHash("0xa1")
	badID := common.HexToHash("0xa2")

	aggregated := map[common.Hash]*aggregator.AggregatedAPICall{
		okID: {ID: okID, EndpointID: common.HexToHash("0x1"), Trigger: trigger,
			Parameters: map[string]string{"from": "ETH"}},
		badID: {ID: badID, EndpointID: common.HexToHash("0x1"), Trigger: trigger,
			Parameters: map[string]string{"from": "NOPE"}},
	}

	logs, out := Execute(context.Background(), NewHTTPCaller(), cfg, aggregated)

	if len(out) != 2 {
		t.Fatalf("expected 2 aggregated calls back, got %d", len(out))
	}

	okCall := out[okID]
	if okCall.ErrorCode != requests.CodeNone || len(okCall.ResponseValue) != 32 {
		t.Errorf("expected an encoded response value, got code:%s value:0x%x",
			okCall.ErrorCode, okCall.ResponseValue)
	}

	badCall := out[badID]
	if badCall.ErrorCode != requests.CodeApiCallFailed || badCall.ResponseValue != nil {
		t.Errorf("expected ApiCallFailed, got code:%s value:0x%x", badCall.ErrorCode, badCall.ResponseValue)
	}

	var errorLogs int
	for _, l := range logs {
		if l.Level == "ERROR" {
			errorLogs++
		}
	}

	if errorLogs != 1 {
		t.Errorf("expected exactly one ERROR log, got %d in %+v", errorLogs, logs)
	}

	// the input snapshot is untouched
	if aggregated[okID].ResponseValue != nil {
		t.Errorf("Execute mutated its input")
	}
}

// TestCallSendsFixedAndSkipsReserved checks fixed operation parameters always reach the API and reserved
// parameters never do.
func TestCallSendsFixedAndSkipsReserved(t *testing.T) {
	var seen map[string][]string

	mock := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		w.Write([]byte(`{"result": 1}`))
	}))
	defer mock.Close()

	cfg := executeConfig(mock.URL)

	_, _, err := NewHTTPCaller().Call(context.Background(), cfg.OIS[0], cfg.OIS[0].Endpoints[0],
		map[string]string{"from": "ETH", "to": "overridden", "_type": "int256"})
	if err != nil {
		t.Fatalf("unexpected error:%v", err)
	}

	if got := seen["to"]; len(got) != 1 || got[0] != "USD" {
		t.Errorf("fixed operation parameter must win, got %v", got)
	}
	if got := seen["from"]; len(got) != 1 || got[0] != "ETH" {
		t.Errorf("request parameter was not sent, got %v", got)
	}
	if _, ok := seen["_type"]; ok {
		t.Errorf("reserved parameters must not be sent to the API")
	}
}
