package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/google/uuid"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Request describes one API call. Path is relative to APIPath.
//
// Params go to the query string when InQuery is set and to a JSON body
// otherwise, never both. In the query string nil and empty values are
// dropped and lists are comma joined.
type Request struct {
	Method  string
	Path    string
	Params  map[string]any
	InQuery bool
}

// Do sends req and decodes the response into out (which may be nil).
// Any failure is returned as a *core.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return core.Classify(0, nil, fmt.Errorf("rate limiter: %w", err))
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, body, err := c.buildTarget(req)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return core.Classify(0, nil, fmt.Errorf("build request: %w", err))
	}

	requestID := uuid.NewString()
	httpReq.SetBasicAuth(c.username, c.password)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("OCS-APIRequest", "true")
	httpReq.Header.Set("X-Request-ID", requestID)

	c.observer.request(ctx, RequestEvent{
		RequestID: requestID,
		Method:    method,
		URL:       target,
		Body:      truncateBody(body),
	})

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		cerr := core.Classify(0, nil, err)
		c.observer.error(ctx, ErrorEvent{RequestID: requestID, Method: method, URL: target, Duration: time.Since(start), Err: cerr})
		return cerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		cerr := core.Classify(resp.StatusCode, nil, fmt.Errorf("read response: %w", err))
		c.observer.error(ctx, ErrorEvent{RequestID: requestID, Method: method, URL: target, Status: resp.StatusCode, Duration: elapsed, Err: cerr})
		return cerr
	}

	c.observer.response(ctx, ResponseEvent{
		RequestID: requestID,
		Method:    method,
		URL:       target,
		Status:    resp.StatusCode,
		Duration:  elapsed,
		Body:      truncateBody(raw),
	})

	if resp.StatusCode >= http.StatusBadRequest {
		cerr := core.Classify(resp.StatusCode, raw, nil)
		c.observer.error(ctx, ErrorEvent{RequestID: requestID, Method: method, URL: target, Status: resp.StatusCode, Duration: elapsed, Err: cerr})
		return cerr
	}

	if err := decodeResponse(raw, resp.StatusCode, out); err != nil {
		c.observer.error(ctx, ErrorEvent{RequestID: requestID, Method: method, URL: target, Status: resp.StatusCode, Duration: elapsed, Err: err})
		return err
	}
	return nil
}

// buildTarget returns the absolute URL and, for body requests, the encoded
// JSON body.
func (c *Client) buildTarget(req Request) (string, []byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + APIPath + "/" + strings.TrimLeft(req.Path, "/")
	u.RawQuery = ""

	if req.InQuery {
		u.RawQuery = encodeQuery(req.Params)
		return u.String(), nil, nil
	}

	if req.Params == nil {
		return u.String(), nil, nil
	}
	body, err := json.Marshal(req.Params)
	if err != nil {
		return "", nil, core.NewValidationError("body", "", "request body is not JSON serializable: %v", err)
	}
	return u.String(), body, nil
}

// encodeQuery serializes params in key order, skipping unset values.
func encodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		s, ok := queryValue(params[k])
		if !ok || s == "" {
			continue
		}
		q.Set(k, s)
	}
	return q.Encode()
}

func queryValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case *int:
		if x == nil {
			return "", false
		}
		return strconv.Itoa(*x), true
	case *float64:
		if x == nil {
			return "", false
		}
		return strconv.FormatFloat(*x, 'f', -1, 64), true
	case []string:
		return strings.Join(x, ","), true
	case []int64:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ","), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := queryValue(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	}
	return fmt.Sprint(v), true
}

// ocsEnvelope is the wrapper OCS endpoints put around their payload.
type ocsEnvelope struct {
	OCS *struct {
		Meta struct {
			Status     string `json:"status"`
			StatusCode int    `json:"statuscode"`
			Message    string `json:"message"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

// ocsStatus maps OCS v1 meta status codes to their HTTP equivalents.
var ocsStatus = map[int]int{
	997: http.StatusUnauthorized,
	998: http.StatusNotFound,
	999: http.StatusInternalServerError,
}

// decodeResponse unwraps an OCS envelope if present and decodes the payload
// into out. An envelope reporting failure is classified like an HTTP error.
func decodeResponse(raw []byte, status int, out any) error {
	payload := raw
	if bytes.Contains(raw, []byte(`"ocs"`)) {
		var env ocsEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.OCS != nil {
			meta := env.OCS.Meta
			if meta.Status == "failure" || (meta.StatusCode >= 400 && meta.StatusCode != 100) {
				code := meta.StatusCode
				if mapped, ok := ocsStatus[code]; ok {
					code = mapped
				}
				if code < 400 || code > 599 {
					code = 0
				}
				return core.Classify(code, raw, nil)
			}
			payload = env.OCS.Data
		}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &core.Error{
			Kind:    core.KindUnknown,
			Status:  status,
			Message: "unexpected response from the tables service",
			Cause:   err,
		}
	}
	return nil
}
