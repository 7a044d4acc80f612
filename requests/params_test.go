package requests

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// TestParameterRoundTrip checks decode(encode(p)) = p for every supported value type.
func TestParameterRoundTrip(t *testing.T) {
	cases := []map[string]string{
		{},
		{"from": "ETH", "to": "USD"},
		{"amount": "1000000000000000000"},
		{"delta": "-42"},
		{"flag": "true", "other": "false"},
		{"wallet": "0x8f8b1972eeeb9e4bbd8cc61b7c5f8a6db9b4b8b2"},
		{"hash": "0x25e2e6cfc2f49ef320c652d91a7bea99a2d115d29ea832631e5f11911a463158"},
		{"blob": "0xdeadbeef", "empty": "0x"},
		{"note": "a longer string value that spans more than one 32 byte word for sure"},
		{"from": "ETH", "times": "100000", "hash": "0x25e2e6cfc2f49ef320c652d91a7bea99a2d115d29ea832631e5f11911a463158"},
	}

	for i, params := range cases {
		blob, err := EncodeParameters(params)
		if err != nil {
			t.Errorf("case %d: encode error:%v", i, err)
			continue
		}

		decoded, err := DecodeParameters(blob)
		if err != nil {
			t.Errorf("case %d: decode error:%v", i, err)
			continue
		}

		if !reflect.DeepEqual(params, decoded) {
			t.Errorf("case %d: round trip mismatch: sent %v got %v", i, params, decoded)
		}
	}
}

// TestEncodeDeterministic checks equal mappings encode to equal blobs.
func TestEncodeDeterministic(t *testing.T) {
	a, err := EncodeParameters(map[string]string{"b": "2", "a": "1", "c": "3"})
	if err != nil {
		t.Fatalf("encode error:%v", err)
	}

	b, err := EncodeParameters(map[string]string{"c": "3", "a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("encode error:%v", err)
	}

	if string(a) != string(b) {
		t.Errorf("encoding is not deterministic: 0x%x vs 0x%x", a, b)
	}
}

func TestDecodeParametersErrors(t *testing.T) {
	cases := []struct {
		name string
		blob []byte
		want error
	}{
		{"not word aligned", []byte("0xincorrectparameters"), ErrBadBlob},
		{"truncated entry", make([]byte, 32), ErrBadBlob},
		{"unknown type tag", append(padRight([]byte("name")), padRight([]byte("uint999"))...), ErrUnknownParamType},
	}

	for _, c := range cases {
		if _, err := DecodeParameters(c.blob); !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v got %v", c.name, c.want, err)
		}
	}
}

// TestApplyParameters checks a decode failure becomes a terminal request error with one ERROR log and leaves the
// other fields intact, and that an empty blob is a no-op.
func TestApplyParameters(t *testing.T) {
	call := APICall{
		ID:                common.HexToHash("0x1"),
		Status:            StatusPending,
		EncodedParameters: []byte("0xincorrectparameters"),
	}

	logs, out := ApplyParameters(call)

	if out.Status != StatusErrored || out.ErrorCode != CodeRequestParameterDecodingFailed {
		t.Errorf("expected Errored/RequestParameterDecodingFailed, got %s/%s", out.Status, out.ErrorCode)
	}
	if out.ID != call.ID {
		t.Errorf("request id was not preserved")
	}
	if len(logs) != 1 || logs[0].Level != "ERROR" {
		t.Errorf("expected one ERROR log, got %+v", logs)
	}

	empty := APICall{ID: common.HexToHash("0x2"), Status: StatusPending}

	logs, out = ApplyParameters(empty)
	if len(logs) != 0 || out.Status != StatusPending || len(out.Parameters) != 0 {
		t.Errorf("empty blob should decode to an empty mapping, got %+v %+v", logs, out)
	}
}

func TestMergeParameters(t *testing.T) {
	merged := MergeParameters(
		map[string]string{"from": "EUR", "to": "USD"},
		map[string]string{"from": "ETH"},
	)

	if merged["from"] != "ETH" || merged["to"] != "USD" {
		t.Errorf("client parameters must override template parameters, got %v", merged)
	}
}
