// Copyright Apache-2.0.

// transfer_test.go — request serialization and handle validation.
package engine

import (
	"strings"
	"testing"
	"time"
)

func TestTransfer_RequestLineAndHost(t *testing.T) {
	tr, err := NewTransfer("get", "http://example.org/things?q=1", nil, time.Second)
	if err != nil {
		t.Fatalf("NewTransfer: %v", err)
	}
	req := string(tr.requestBytes())
	if !strings.HasPrefix(req, "GET /things?q=1 HTTP/1.1\r\n") {
		t.Errorf("request line wrong: %q", req)
	}
	if !strings.Contains(req, "Host: example.org\r\n") {
		t.Errorf("missing Host header: %q", req)
	}
	if !strings.Contains(req, "Connection: close\r\n") {
		t.Errorf("missing Connection: close: %q", req)
	}
	if !strings.HasSuffix(req, "\r\n\r\n") {
		t.Errorf("missing blank line: %q", req)
	}
}

func TestTransfer_UserHeadersKept(t *testing.T) {
	headers := []string{"Accept: application/json", "X-Req-Id: 42"}
	tr, _ := NewTransfer("GET", "http://example.org/", headers, time.Second)
	req := string(tr.requestBytes())
	for _, h := range headers {
		if !strings.Contains(req, h+"\r\n") {
			t.Errorf("user header %q dropped: %q", h, req)
		}
	}
}

func TestTransfer_UserConnectionHeaderNotDuplicated(t *testing.T) {
	tr, _ := NewTransfer("GET", "http://example.org/", []string{"Connection: keep-alive"}, time.Second)
	req := string(tr.requestBytes())
	if strings.Count(strings.ToLower(req), "connection:") != 1 {
		t.Errorf("Connection header duplicated: %q", req)
	}
}

func TestTransfer_ContentLengthForBody(t *testing.T) {
	tr, _ := NewTransfer("POST", "http://example.org/submit", nil, time.Second)
	tr.SetBody([]byte("hello"))
	req := string(tr.requestBytes())
	if !strings.Contains(req, "Content-Length: 5\r\n") {
		t.Errorf("missing Content-Length: %q", req)
	}
	if !strings.HasSuffix(req, "\r\n\r\nhello") {
		t.Errorf("body not appended: %q", req)
	}
}

func TestTransfer_EmptyPostStillHasContentLength(t *testing.T) {
	tr, _ := NewTransfer("POST", "http://example.org/submit", nil, time.Second)
	req := string(tr.requestBytes())
	if !strings.Contains(req, "Content-Length: 0\r\n") {
		t.Errorf("empty POST lacks Content-Length: %q", req)
	}
}

func TestTransfer_RootPathDefaulted(t *testing.T) {
	tr, _ := NewTransfer("GET", "http://example.org", nil, time.Second)
	req := string(tr.requestBytes())
	if !strings.HasPrefix(req, "GET / HTTP/1.1\r\n") {
		t.Errorf("empty path not defaulted to /: %q", req)
	}
}

func TestTransfer_ConstructionErrors(t *testing.T) {
	if _, err := NewTransfer("", "http://example.org/", nil, time.Second); err == nil {
		t.Error("empty method accepted")
	}
	if _, err := NewTransfer("GET", "http://", nil, time.Second); err == nil {
		t.Error("hostless uri accepted")
	}
	if _, err := NewTransfer("GET", "://bad", nil, time.Second); err == nil {
		t.Error("unparsable uri accepted")
	}
}
