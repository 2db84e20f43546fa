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

// Package discordtest provides an in-process fake of a Discord webhook
// endpoint for tests.
//
// A [Server] records every request it receives and replies with scripted
// responses, falling back to [NoContent] once the script is exhausted.
//
//	srv := discordtest.NewServer(t)
//	srv.Enqueue(discordtest.RateLimited(time.Now().Add(time.Second)))
//	h, _ := slogdiscord.NewHandler(slogdiscord.WithWebhookURI(srv.WebhookURL()))
//	...
//	req := srv.WaitForRequests(t, 2, time.Second)[1]
package discordtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pjscruggs/slogdiscord/internal/webhook"
)

// WebhookPath is the path served by [Server.WebhookURL].
const WebhookPath = "/api/webhooks/123456789/test-token"

// Response is one scripted reply.
type Response struct {
	Status int
	Header http.Header
	Body   string
}

// NoContent is the reply Discord sends for a successful post, with four
// requests left in a bucket that resets in two seconds.
func NoContent() Response {
	return Response{
		Status: http.StatusNoContent,
		Header: RateLimitHeader(4, time.Now().Add(2*time.Second)),
	}
}

// RateLimited is a 429 reply with an exhausted bucket that resets at reset.
func RateLimited(reset time.Time) Response {
	return Response{
		Status: http.StatusTooManyRequests,
		Header: RateLimitHeader(0, reset),
		Body:   `{"message": "You are being rate limited.", "retry_after": 1, "global": false}`,
	}
}

// RateLimitHeader builds X-RateLimit-Remaining and X-RateLimit-Reset values,
// with the reset expressed in fractional epoch seconds as Discord sends it.
func RateLimitHeader(remaining int, reset time.Time) http.Header {
	h := http.Header{}
	h.Set(webhook.HeaderRateLimitRemaining, strconv.Itoa(remaining))
	h.Set(webhook.HeaderRateLimitReset, strconv.FormatFloat(float64(reset.UnixMilli())/1000, 'f', 3, 64))
	return h
}

// Payload is the decoded JSON body of a webhook post. Username and
// AvatarURL are nil when the field was null or absent.
type Payload struct {
	Content   string  `json:"content"`
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// Request is one recorded request.
type Request struct {
	Method   string
	Path     string
	Header   http.Header
	Body     string
	Payload  Payload
	Received time.Time
}

// Server is a fake webhook endpoint backed by [httptest.Server].
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	script   []Response
	requests []Request
	notify   chan struct{}
}

// NewServer starts a Server that is closed when the test finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{notify: make(chan struct{}, 1)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// WebhookURL returns a webhook URL on the server.
func (s *Server) WebhookURL() string {
	return s.srv.URL + WebhookPath
}

// Enqueue appends responses to the script.
func (s *Server) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, responses...)
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Contents returns the content field of every request received so far.
func (s *Server) Contents() []string {
	reqs := s.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Payload.Content
	}
	return out
}

// WaitForRequests blocks until at least n requests arrived and returns them.
// The test fails if that takes longer than timeout.
func (s *Server) WaitForRequests(t testing.TB, n int, timeout time.Duration) []Request {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if reqs := s.Requests(); len(reqs) >= n {
			return reqs
		}
		select {
		case <-s.notify:
		case <-deadline.C:
			t.Fatalf("discordtest: got %d requests, want %d within %v", len(s.Requests()), n, timeout)
			return nil
		}
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		Header:   r.Header.Clone(),
		Body:     string(body),
		Received: time.Now(),
	}
	_ = json.Unmarshal(body, &rec.Payload)

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	resp := NoContent()
	if len(s.script) > 0 {
		resp = s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
	if resp.Body != "" && status != http.StatusNoContent {
		_, _ = io.WriteString(w, resp.Body)
	}
}
