// Package caller executes aggregated API calls against the configured external APIs and converts responses into the
// ABI-encoded values submitted on chain. The Caller interface keeps the HTTP transport swappable; everything above
// it is pure.
package caller

import (
	"errors"
	"math/big"
	"strings"

	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/util"
)

// Reserved parameter names.
const (
	ReservedType  = "_type"
	ReservedPath  = "_path"
	ReservedTimes = "_times"
)

// Errors returned handling reserved parameters.
var (
	ErrMissingType = errors.New("reserved parameter _type is missing")
	ErrBadType     = errors.New("reserved parameter _type is not a supported type")
	ErrBadTimes    = errors.New("reserved parameter _times is not a positive integer")
	ErrTimesType   = errors.New("reserved parameter _times requires a numeric _type")
)

// Response value types accepted in _type.
var supportedTypes = []string{"int256", "uint256", "bool", "bytes32", "address", "bytes", "string"}

// Reserved holds the validated reserved parameters controlling response handling.
type Reserved struct {
	Type  string
	Path  string
	Times *big.Int
}

// ExtractReserved resolves _type, _path and _times for a request against the endpoint declaration. A fixed value in
// the endpoint wins over whatever the requester supplied; an endpoint default applies when the requester supplied
// nothing. Malformed values are a permanent request error.
func ExtractReserved(endpoint config.Endpoint, params map[string]string) (Reserved, error) {
	rsv := Reserved{
		Type: resolve(endpoint, params, ReservedType),
		Path: resolve(endpoint, params, ReservedPath),
	}

	if rsv.Type == "" {
		return Reserved{}, ErrMissingType
	}

	if !util.In(supportedTypes, rsv.Type) {
		return Reserved{}, ErrBadType
	}

	if times := resolve(endpoint, params, ReservedTimes); times != "" {
		n, ok := new(big.Int).SetString(times, 10)
		if !ok || n.Sign() <= 0 {
			return Reserved{}, ErrBadTimes
		}

		if rsv.Type != "int256" && rsv.Type != "uint256" {
			return Reserved{}, ErrTimesType
		}

		rsv.Times = n
	}

	return rsv, nil
}

// IsReserved reports whether the parameter name is reserved for response handling.
func IsReserved(name string) bool {
	return strings.HasPrefix(name, "_")
}

func resolve(endpoint config.Endpoint, params map[string]string, name string) string {
	if decl, ok := endpoint.Reserved(name); ok && decl.Fixed != "" {
		return decl.Fixed
	}

	if v, ok := params[name]; ok {
		return v
	}

	if decl, ok := endpoint.Reserved(name); ok {
		return decl.Default
	}

	return ""
}
