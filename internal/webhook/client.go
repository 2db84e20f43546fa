// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package webhook posts shaped messages to a Discord execute-webhook
// endpoint and classifies the response.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	// ContentType is sent with every webhook request.
	ContentType = "application/json; charset=utf-8"

	// DefaultTimeout bounds a single request when no client is supplied.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 64 << 10
	nullBody     = "null body"
)

// Outcome classifies a webhook response.
type Outcome int

const (
	// OutcomeDelivered means Discord accepted the message (status < 300).
	OutcomeDelivered Outcome = iota
	// OutcomeRateLimited means Discord answered 429 and the message should be retried.
	OutcomeRateLimited
	// OutcomeFailed means any other status; the message is not retried.
	OutcomeFailed
)

// String returns the metric label for o.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes one completed request.
type Result struct {
	Outcome    Outcome
	StatusCode int
	// Header and Body are only captured for OutcomeFailed.
	Header    http.Header
	Body      string
	RateLimit RateLimit
}

// Detail renders the status, headers and body of a failed response for
// error reports.
func (r Result) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request returned %d %s", r.StatusCode, http.StatusText(r.StatusCode))
	for _, key := range slices.Sorted(maps.Keys(r.Header)) {
		fmt.Fprintf(&b, "\n%s: %s", key, strings.Join(r.Header[key], ", "))
	}
	body := r.Body
	if body == "" {
		body = nullBody
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// TransportError reports a request that never produced a response, such as
// a DNS, connection or I/O failure. Webhook tokens are redacted from the
// wrapped error.
type TransportError struct {
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return "webhook transport: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client issues single execute-webhook requests. It is safe for concurrent
// use, although the delivery worker only ever has one request in flight.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient wraps httpClient. A nil client gets a dedicated http.Client with
// DefaultTimeout.
func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{httpClient: httpClient, userAgent: userAgent}
}

// Post sends payload to webhookURL once. HTTP statuses never produce an
// error; only transport failures (*TransportError) and cancellation of ctx
// (the context error) do. The response body is always drained and closed.
func (c *Client) Post(ctx context.Context, webhookURL string, payload Payload) (Result, error) {
	body, err := payload.Encode()
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, &TransportError{Err: redactError(err)}
	}
	req.Header.Set("Content-Type", ContentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &TransportError{Err: redactError(err)}
	}
	defer resp.Body.Close()

	res := Result{
		StatusCode: resp.StatusCode,
		RateLimit:  ParseRateLimit(resp.Header),
	}

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		res.Outcome = OutcomeDelivered
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	case resp.StatusCode == http.StatusTooManyRequests:
		res.Outcome = OutcomeRateLimited
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	default:
		res.Outcome = OutcomeFailed
		res.Header = resp.Header.Clone()
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		res.Body = string(data)
		if readErr != nil {
			res.Body += fmt.Sprintf(" (read body: %v)", readErr)
		}
	}

	return res, nil
}

// RedactURL hides the token segment of a webhook URL
// (https://discord.com/api/webhooks/<id>/<token>) and drops the query so
// the URL is safe to print.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid webhook url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "webhooks" && i+2 < len(segments) {
			segments[i+2] = "REDACTED"
			break
		}
	}
	u.Path = "/" + strings.Join(segments, "/")
	u.RawPath = ""
	return u.String()
}

// redactError rewrites the URL carried by a *url.Error.
func redactError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	return err
}
