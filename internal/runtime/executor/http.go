// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// statusErr is returned when a backend answers with a non-2xx status.
type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("status %d", e.code)
}

// StatusCode exposes the upstream HTTP status.
func (e statusErr) StatusCode() int { return e.code }

// post sends body to url and returns the response body and content type.
// Non-2xx answers become a statusErr whose message is the upstream body, or
// "Error <label> (<status>)" when the body is empty.
func post(ctx context.Context, client *http.Client, label, url, contentType string, body []byte, header http.Header) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s request: %w", label, err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	log.Debugf("%s request: POST %s (%d bytes)", label, url, len(body))
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s request failed: %w", label, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("%s: close response body error: %v", label, errClose)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s response: %w", label, err)
	}
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(summarizeErrorBody(ct, data))
		if msg == "" {
			msg = fmt.Sprintf("Error %s (%d)", label, resp.StatusCode)
		}
		return nil, "", statusErr{code: resp.StatusCode, msg: msg}
	}
	return data, ct, nil
}

func summarizeErrorBody(contentType string, body []byte) string {
	isHTML := strings.Contains(strings.ToLower(contentType), "text/html")
	if !isHTML {
		trimmed := bytes.TrimSpace(bytes.ToLower(body))
		if bytes.HasPrefix(trimmed, []byte("<!doctype html")) || bytes.HasPrefix(trimmed, []byte("<html")) {
			isHTML = true
		}
	}
	if isHTML {
		if title := extractHTMLTitle(body); title != "" {
			return title
		}
		return "[html body omitted]"
	}
	return string(body)
}

func extractHTMLTitle(body []byte) string {
	lower := bytes.ToLower(body)
	start := bytes.Index(lower, []byte("<title"))
	if start == -1 {
		return ""
	}
	gt := bytes.IndexByte(lower[start:], '>')
	if gt == -1 {
		return ""
	}
	start += gt + 1
	end := bytes.Index(lower[start:], []byte("</title>"))
	if end == -1 {
		return ""
	}
	title := html.UnescapeString(string(body[start : start+end]))
	return strings.Join(strings.Fields(title), " ")
}

// mediaType strips parameters from a Content-Type value, returning fallback
// when nothing usable remains.
func mediaType(ct, fallback string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	if ct == "" || ct == "application/octet-stream" {
		return fallback
	}
	return ct
}
