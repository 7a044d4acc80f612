package caller

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Errors returned converting API responses.
var (
	ErrBadResponse  = errors.New("API response is not valid JSON")
	ErrPathNotFound = errors.New("response path not found")
	ErrBadValue     = errors.New("response value cannot be cast to the requested type")
)

var wordModulus = new(big.Int).Lsh(big.NewInt(1), 256)

// ExtractResponseValue walks the JSON response along _path, applies _times and encodes the result per _type:
// int256, uint256, bool, bytes32 and address values become one 32-byte ABI word; bytes and string values are
// returned as their raw bytes, without ABI offset or length words. The returned bytes are submitted verbatim as the
// data argument of the fulfill transaction.
func ExtractResponseValue(data []byte, rsv Reserved) ([]byte, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrBadResponse
	}

	value, err := walk(doc, rsv.Path)
	if err != nil {
		return nil, err
	}

	switch rsv.Type {
	case "int256", "uint256":
		return encodeNumber(value, rsv)
	case "bool":
		return encodeBool(value)
	case "bytes32":
		return encodeFixedHex(value, 32)
	case "address":
		return encodeAddress(value)
	case "bytes":
		return encodeBytes(value)
	case "string":
		return encodeString(value)
	}

	return nil, ErrBadValue
}

func walk(doc interface{}, path string) (interface{}, error) {
	if path == "" {
		return doc, nil
	}

	current := doc

	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
			}
			current = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
	}

	return current, nil
}

func encodeNumber(value interface{}, rsv Reserved) ([]byte, error) {
	var text string

	switch v := value.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = v
	default:
		return nil, ErrBadValue
	}

	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, ErrBadValue
	}

	if rsv.Times != nil {
		r.Mul(r, new(big.Rat).SetInt(rsv.Times))
	}

	// truncate toward zero once scaled
	n := new(big.Int).Quo(r.Num(), r.Denom())

	if rsv.Type == "uint256" && n.Sign() < 0 {
		return nil, ErrBadValue
	}

	if n.BitLen() > 255 && !(rsv.Type == "uint256" && n.BitLen() == 256) {
		return nil, ErrBadValue
	}

	out := make([]byte, 32)
	new(big.Int).Mod(n, wordModulus).FillBytes(out)

	return out, nil
}

func encodeBool(value interface{}) ([]byte, error) {
	out := make([]byte, 32)

	switch v := value.(type) {
	case bool:
		if v {
			out[31] = 1
		}
	case string:
		if v == "true" {
			out[31] = 1
		} else if v != "false" {
			return nil, ErrBadValue
		}
	default:
		return nil, ErrBadValue
	}

	return out, nil
}

func encodeFixedHex(value interface{}, size int) ([]byte, error) {
	s, ok := value.(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return nil, ErrBadValue
	}

	raw, err := hex.DecodeString(s[2:])
	if err != nil || len(raw) != size {
		return nil, ErrBadValue
	}

	return raw, nil
}

func encodeAddress(value interface{}) ([]byte, error) {
	raw, err := encodeFixedHex(value, 20)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 32)
	copy(out[12:], raw)

	return out, nil
}

func encodeBytes(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return nil, ErrBadValue
	}

	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, ErrBadValue
	}

	return raw, nil
}

func encodeString(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case json.Number:
		return []byte(v.String()), nil
	default:
		return nil, ErrBadValue
	}
}
