package aggregator

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/requests"
)

var (
	endpointID = common.HexToHash("0x3c8e59646e688707ddd3b1f07c4dbc5ab55a0257362a18569ac2644ccf6faddb")
	response   = common.FromHex("0x00000000000000000000000000000000000000000000000000000000000001b9")
)

func testConfig() config.Config {
	return config.Config{
		Triggers: config.Triggers{Requests: []config.Trigger{
			{EndpointID: endpointID.Hex(), OISTitle: "currency-converter", EndpointName: "convertToUSD"},
		}},
	}
}

func pendingCall(id string, params map[string]string) requests.APICall {
	return requests.APICall{
		ID:         common.HexToHash(id),
		Status:     requests.StatusPending,
		EndpointID: endpointID,
		Parameters: params,
	}
}

// TestAggregateSharedRequestID checks the same request id observed on three providers collapses into exactly one
// aggregated call and disaggregation restores the response value on all three.
func TestAggregateSharedRequestID(t *testing.T) {
	params := map[string]string{"from": "ETH"}
	groups := [][]requests.APICall{
		{pendingCall("0xa1", params)},
		{pendingCall("0xa1", params)},
		{pendingCall("0xa1", params)},
	}

	_, aggregated, groups := Aggregate(testConfig(), groups)

	if len(aggregated) != 1 {
		t.Fatalf("expected 1 aggregated call, got %d", len(aggregated))
	}

	agg, ok := aggregated[common.HexToHash("0xa1")]
	if !ok {
		t.Fatalf("aggregated call id must reuse the request id")
	}

	agg.ResponseValue = response

	logs, groups := Disaggregate(groups, aggregated)

	if len(logs) != 0 {
		t.Errorf("expected no error logs, got %+v", logs)
	}

	for i, g := range groups {
		if string(g[0].ResponseValue) != string(response) {
			t.Errorf("provider %d did not receive the response value", i)
		}
		if g[0].Status != requests.StatusPending {
			t.Errorf("provider %d: expected Pending, got %s", i, g[0].Status)
		}
	}
}

// TestDisaggregateNoMatch checks a request without a matching aggregated call is blocked with an ERROR log while
// its peers are untouched.
func TestDisaggregateNoMatch(t *testing.T) {
	ethCall := pendingCall("0xe1", map[string]string{"from": "ETH"})
	btcCall := pendingCall("0xb1", map[string]string{"from": "BTC"})
	btcCall.AggregatedID = btcCall.ID

	aggregated := map[common.Hash]*AggregatedAPICall{
		btcCall.ID: {
			ID:            btcCall.ID,
			EndpointID:    endpointID,
			Parameters:    map[string]string{"from": "BTC"},
			ResponseValue: common.FromHex("0x123"),
		},
	}

	logs, groups := Disaggregate([][]requests.APICall{{ethCall}, {btcCall}}, aggregated)

	if groups[0][0].Status != requests.StatusBlocked ||
		groups[0][0].ErrorCode != requests.CodeNoMatchingAggregatedCall {
		t.Errorf("expected Blocked/NoMatchingAggregatedCall, got %s/%s",
			groups[0][0].Status, groups[0][0].ErrorCode)
	}

	if len(logs) != 1 || logs[0].Level != "ERROR" ||
		!strings.Contains(logs[0].Message, "Unable to find matching aggregated API calls for Request:") {
		t.Errorf("expected one ERROR log, got %+v", logs)
	}

	if groups[1][0].Status != requests.StatusPending ||
		string(groups[1][0].ResponseValue) != string(common.FromHex("0x123")) {
		t.Errorf("matched request lost its response: %+v", groups[1][0])
	}
}

// TestDisaggregateParameterMismatch checks a provider request whose parameters differ from the aggregated call's
// is treated as not found.
func TestDisaggregateParameterMismatch(t *testing.T) {
	call := pendingCall("0xa1", map[string]string{"from": "ETH"})
	call.AggregatedID = call.ID

	aggregated := map[common.Hash]*AggregatedAPICall{
		call.ID: {ID: call.ID, EndpointID: endpointID,
			Parameters: map[string]string{"from": "BTC"}, ResponseValue: response},
	}

	_, groups := Disaggregate([][]requests.APICall{{call}}, aggregated)

	if groups[0][0].Status != requests.StatusBlocked ||
		groups[0][0].ErrorCode != requests.CodeNoMatchingAggregatedCall {
		t.Errorf("expected Blocked/NoMatchingAggregatedCall, got %s/%s",
			groups[0][0].Status, groups[0][0].ErrorCode)
	}
}

// TestDisaggregateError checks an aggregated call error becomes Errored/ApiCallFailed on the request.
func TestDisaggregateError(t *testing.T) {
	call := pendingCall("0xa1", map[string]string{"from": "ETH"})
	call.AggregatedID = call.ID

	aggregated := map[common.Hash]*AggregatedAPICall{
		call.ID: {ID: call.ID, EndpointID: endpointID,
			Parameters: map[string]string{"from": "ETH"}, ErrorCode: requests.CodeApiCallFailed},
	}

	_, groups := Disaggregate([][]requests.APICall{{call}}, aggregated)

	if groups[0][0].Status != requests.StatusErrored ||
		groups[0][0].ErrorCode != requests.CodeApiCallFailed {
		t.Errorf("expected Errored/ApiCallFailed, got %s/%s", groups[0][0].Status, groups[0][0].ErrorCode)
	}
}

// TestAggregatePurity checks aggregation is deterministic: identical inputs produce identical outputs, and
// different parameter sets never share an aggregated call.
func TestAggregatePurity(t *testing.T) {
	build := func() [][]requests.APICall {
		return [][]requests.APICall{
			{pendingCall("0xa1", map[string]string{"from": "ETH"}),
				pendingCall("0xa2", map[string]string{"from": "BTC"})},
			{pendingCall("0xa3", map[string]string{"from": "ETH"})},
		}
	}

	_, agg1, out1 := Aggregate(testConfig(), build())
	_, agg2, out2 := Aggregate(testConfig(), build())

	if !reflect.DeepEqual(agg1, agg2) || !reflect.DeepEqual(out1, out2) {
		t.Errorf("aggregation is not deterministic")
	}

	if len(agg1) != 2 {
		t.Errorf("expected 2 aggregated calls, got %d", len(agg1))
	}

	// the ETH calls of both providers share one aggregated id chosen in provider order
	if out1[0][0].AggregatedID != common.HexToHash("0xa1") ||
		out1[1][0].AggregatedID != common.HexToHash("0xa1") {
		t.Errorf("shared fingerprint must aggregate under the first request id")
	}
	if out1[0][1].AggregatedID != common.HexToHash("0xa2") {
		t.Errorf("distinct fingerprint must keep its own aggregated id")
	}
}

// TestAggregateSkipsNonPending checks only Pending requests enter aggregation.
func TestAggregateSkipsNonPending(t *testing.T) {
	done := pendingCall("0xa1", map[string]string{"from": "ETH"})
	done.Status = requests.StatusFulfilled

	_, aggregated, _ := Aggregate(testConfig(), [][]requests.APICall{{done}})

	if len(aggregated) != 0 {
		t.Errorf("non-Pending requests must not aggregate, got %d calls", len(aggregated))
	}
}
