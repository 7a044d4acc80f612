package requests

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/util"
)

// Errors returned by the parameter codec.
var (
	ErrBadBlob          = errors.New("parameter blob is truncated or not word-aligned")
	ErrNameTooLong      = errors.New("parameter name exceeds 32 bytes")
	ErrUnknownParamType = errors.New("unknown parameter type tag")
	ErrBadParamValue    = errors.New("parameter value does not match its type tag")
	ErrBoolWord         = errors.New("bool parameter word is not 0 or 1")
)

// Parameter type tags carried in the encoded blob.
const (
	ParamBytes32 = "bytes32"
	ParamAddress = "address"
	ParamUint256 = "uint256"
	ParamInt256  = "int256"
	ParamBool    = "bool"
	ParamBytes   = "bytes"
	ParamString  = "string"
)

const word = 32

var (
	hexBytes32 = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	hexAddress = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	hexBytes   = regexp.MustCompile(`^0x([0-9a-f]{2})*$`)
	decUint    = regexp.MustCompile(`^[0-9]+$`)
	decInt     = regexp.MustCompile(`^-[0-9]+$`)
)

var maxWord = new(big.Int).Lsh(big.NewInt(1), 256) // 2^256, modulus of the word arithmetic

// EncodeParameters encodes a parameter mapping into the tagged blob format: for every entry, a 32-byte name word, a
// 32-byte type word and the value encoded per its type; bytes and string values carry a length word and are
// right-padded to word boundaries. Entries are encoded in lexicographic name order so equal mappings produce equal
// blobs. Value types are inferred from the canonical string form (see DecodeParameters).
func EncodeParameters(params map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	for _, name := range util.SortedKeys(params) {
		if len(name) > word {
			return nil, ErrNameTooLong
		}

		value := params[name]
		typ := inferType(value)

		buf.Write(padRight([]byte(name)))
		buf.Write(padRight([]byte(typ)))

		switch typ {
		case ParamBytes32:
			raw, _ := hex.DecodeString(value[2:])
			buf.Write(raw)
		case ParamAddress:
			raw, _ := hex.DecodeString(value[2:])
			buf.Write(padLeft(raw))
		case ParamUint256:
			n, ok := new(big.Int).SetString(value, 10)
			if !ok || n.BitLen() > 256 {
				return nil, ErrBadParamValue
			}
			buf.Write(toWord(n))
		case ParamInt256:
			n, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return nil, ErrBadParamValue
			}
			buf.Write(toWord(new(big.Int).Mod(n, maxWord)))
		case ParamBool:
			w := make([]byte, word)
			if value == "true" {
				w[word-1] = 1
			}
			buf.Write(w)
		case ParamBytes:
			raw, _ := hex.DecodeString(value[2:])
			buf.Write(toWord(big.NewInt(int64(len(raw)))))
			buf.Write(padRight(raw))
		case ParamString:
			buf.Write(toWord(big.NewInt(int64(len(value)))))
			buf.Write(padRight([]byte(value)))
		}
	}

	return buf.Bytes(), nil
}

// DecodeParameters decodes a tagged blob back into a parameter mapping. Values come back in canonical string form:
// lowercase 0x hex for bytes32, address and bytes, decimal for the integer types, true/false for bool.
func DecodeParameters(blob []byte) (map[string]string, error) {
	params := make(map[string]string)

	if len(blob)%word != 0 {
		return nil, ErrBadBlob
	}

	for off := 0; off < len(blob); {
		if len(blob)-off < 2*word {
			return nil, ErrBadBlob
		}

		name := string(bytes.TrimRight(blob[off:off+word], "\x00"))
		typ := string(bytes.TrimRight(blob[off+word:off+2*word], "\x00"))
		off += 2 * word

		switch typ {
		case ParamBytes32, ParamAddress, ParamUint256, ParamInt256, ParamBool:
			if len(blob)-off < word {
				return nil, ErrBadBlob
			}

			w := blob[off : off+word]
			off += word

			switch typ {
			case ParamBytes32:
				params[name] = "0x" + hex.EncodeToString(w)
			case ParamAddress:
				params[name] = "0x" + hex.EncodeToString(w[word-20:])
			case ParamUint256:
				params[name] = new(big.Int).SetBytes(w).String()
			case ParamInt256:
				n := new(big.Int).SetBytes(w)
				if w[0]&0x80 != 0 {
					n.Sub(n, maxWord)
				}
				params[name] = n.String()
			case ParamBool:
				switch w[word-1] {
				case 0:
					params[name] = "false"
				case 1:
					params[name] = "true"
				default:
					return nil, ErrBoolWord
				}
				if !allZero(w[:word-1]) {
					return nil, ErrBoolWord
				}
			}
		case ParamBytes, ParamString:
			if len(blob)-off < word {
				return nil, ErrBadBlob
			}

			length := new(big.Int).SetBytes(blob[off : off+word])
			off += word

			if !length.IsInt64() || int64(len(blob)-off) < length.Int64() {
				return nil, ErrBadBlob
			}

			n := int(length.Int64())
			data := blob[off : off+n]
			off += padded(n)

			if off > len(blob) {
				return nil, ErrBadBlob
			}

			if typ == ParamBytes {
				params[name] = "0x" + hex.EncodeToString(data)
			} else {
				params[name] = string(data)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownParamType, typ)
		}
	}

	return params, nil
}

// ApplyParameters decodes the request's encoded parameter blob. A decode failure is terminal for the request and
// reported both in the request status and as an ERROR log; the other request fields stay intact.
func ApplyParameters(call APICall) ([]logger.Log, APICall) {
	if len(call.EncodedParameters) == 0 {
		call.Parameters = map[string]string{}

		return nil, call
	}

	params, err := DecodeParameters(call.EncodedParameters)
	if err != nil {
		call.Status = StatusErrored
		call.ErrorCode = CodeRequestParameterDecodingFailed

		return []logger.Log{logger.PendErr(logger.ERROR,
			fmt.Sprintf("Request ID:%s submitted with invalid parameters: 0x%x",
				call.ID.Hex(), call.EncodedParameters), err)}, call
	}

	call.Parameters = params

	return nil, call
}

// MergeParameters merges client parameters over template parameters; client-supplied names win.
func MergeParameters(template, client map[string]string) map[string]string {
	merged := make(map[string]string, len(template)+len(client))
	for k, v := range template {
		merged[k] = v
	}
	for k, v := range client {
		merged[k] = v
	}

	return merged
}

func inferType(value string) string {
	v := strings.ToLower(value)

	switch {
	case hexBytes32.MatchString(v):
		return ParamBytes32
	case hexAddress.MatchString(v):
		return ParamAddress
	case value == "true" || value == "false":
		return ParamBool
	case decUint.MatchString(value):
		return ParamUint256
	case decInt.MatchString(value):
		return ParamInt256
	case hexBytes.MatchString(v):
		return ParamBytes
	default:
		return ParamString
	}
}

func padded(n int) int {
	if n%word == 0 {
		return n
	}
	return n + word - n%word
}

func padRight(b []byte) []byte {
	out := make([]byte, padded(len(b)))
	copy(out, b)
	return out
}

func padLeft(b []byte) []byte {
	out := make([]byte, word)
	copy(out[word-len(b):], b)
	return out
}

func toWord(n *big.Int) []byte {
	out := make([]byte, word)
	n.FillBytes(out)
	return out
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
