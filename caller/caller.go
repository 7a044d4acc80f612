package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tarancss/airnode/lib/config"
)

// Errors returned invoking APIs.
var (
	ErrNoServer   = errors.New("OIS declares no API server")
	ErrHTTPStatus = errors.New("API responded with an error status")
)

const callTimeout = 10 * time.Second

// Caller invokes one external API endpoint with the given request parameters, returning the raw response body and
// HTTP status.
type Caller interface {
	Call(ctx context.Context, ois config.OIS, endpoint config.Endpoint, params map[string]string) ([]byte, int, error)
}

// HTTPCaller is the default Caller over net/http.
type HTTPCaller struct {
	c *http.Client
}

// NewHTTPCaller returns a Caller with sane timeouts.
func NewHTTPCaller() *HTTPCaller {
	return &HTTPCaller{c: &http.Client{Timeout: callTimeout}}
}

// Call builds the HTTP operation from the OIS: base URL from the first API server, operation method and path from
// the endpoint, request parameters as query values for GET or a JSON body otherwise. Fixed operation parameters
// always win over request parameters; reserved parameters are never sent to the API.
func (h *HTTPCaller) Call(ctx context.Context, ois config.OIS, endpoint config.Endpoint,
	params map[string]string) ([]byte, int, error) {
	if len(ois.APISpecifications.Servers) == 0 {
		return nil, 0, ErrNoServer
	}

	sent := make(map[string]string, len(params))

	for k, v := range params {
		if !IsReserved(k) {
			sent[k] = v
		}
	}

	for _, fixed := range endpoint.FixedOperationParameters {
		sent[fixed.Name] = fixed.Value
	}

	method := strings.ToUpper(endpoint.Operation.Method)
	if method == "" {
		method = http.MethodGet
	}

	target := strings.TrimRight(ois.APISpecifications.Servers[0].URL, "/") + endpoint.Operation.Path

	var body io.Reader

	if method == http.MethodGet {
		q := url.Values{}
		for k, v := range sent {
			q.Set(k, v)
		}

		if len(q) > 0 {
			target += "?" + q.Encode()
		}
	} else {
		doc, err := json.Marshal(sent)
		if err != nil {
			return nil, 0, err
		}

		body = bytes.NewReader(doc)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := h.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return data, res.StatusCode, fmt.Errorf("%w: %d", ErrHTTPStatus, res.StatusCode)
	}

	return data, res.StatusCode, nil
}
