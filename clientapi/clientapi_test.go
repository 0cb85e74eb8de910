package clientapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakegate implements just enough of the server API to drive the client.
type fakegate struct {
	token   string
	content string
	code    string
}

func (f *fakegate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == "POST" && r.URL.Path == "/upload":
		if r.Header.Get("X-Api-Key") != f.token {
			w.WriteHeader(401)
			return
		}
		if r.Header.Get("X-Upload-Name") == "" {
			w.WriteHeader(400)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.content = string(body)
		fmt.Fprintf(w, `{"id":"xyz","code":%q,"size":%d,"mime_type":"text/plain","dl_link":"http://x/RD/xyz"}`,
			f.code, len(body))
	case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/dl/"):
		if r.URL.Query().Get("code") != f.code {
			w.WriteHeader(403)
			return
		}
		io.WriteString(w, f.content)
	case r.Method == "POST" && r.URL.Path == "/bulk/commit":
		if r.Header.Get("X-Api-Key") != f.token {
			w.WriteHeader(401)
			return
		}
		io.WriteString(w, `{"bundle_id":"b123","link":"http://x/bulk/b123"}`)
	case r.URL.Path == "/bulk" || r.URL.Path == "/bulk/name":
		w.WriteHeader(409)
	default:
		w.WriteHeader(404)
	}
}

func TestUploadDownload(t *testing.T) {
	gate := &fakegate{token: "secret", code: "c0de"}
	ts := httptest.NewServer(gate)
	defer ts.Close()

	c := &Connection{HostURL: ts.URL, Token: "secret"}
	info, err := c.Upload("hello.txt", "text/plain", strings.NewReader("hello, world"))
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != "xyz" || info.Code != "c0de" || info.Size != 12 {
		t.Errorf("Received %+v", info)
	}

	var buf bytes.Buffer
	if err := c.Download(&buf, info.ID, info.Code); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello, world" {
		t.Errorf("Received %q", buf.String())
	}

	if err := c.Download(io.Discard, info.ID, "wrong"); err != ErrBadCode {
		t.Errorf("Received %v, expected ErrBadCode", err)
	}
}

func TestUploadNeedsToken(t *testing.T) {
	gate := &fakegate{token: "secret"}
	ts := httptest.NewServer(gate)
	defer ts.Close()

	c := &Connection{HostURL: ts.URL}
	_, err := c.Upload("hello.txt", "", strings.NewReader("x"))
	if err != ErrNotAuthorized {
		t.Errorf("Received %v, expected ErrNotAuthorized", err)
	}
}

func TestBulkErrors(t *testing.T) {
	gate := &fakegate{token: "secret"}
	ts := httptest.NewServer(gate)
	defer ts.Close()

	c := &Connection{HostURL: ts.URL, Token: "secret"}
	if err := c.StartBulk(); err != ErrWrongState {
		t.Errorf("Received %v, expected ErrWrongState", err)
	}
	if err := c.SetBulkName("n"); err != ErrWrongState {
		t.Errorf("Received %v, expected ErrWrongState", err)
	}
	bid, link, err := c.CommitBulk()
	if err != nil {
		t.Fatal(err)
	}
	if bid != "b123" || link != "http://x/bulk/b123" {
		t.Errorf("Received %q %q", bid, link)
	}
	if _, err := c.Bundle("nope"); err != ErrNotFound {
		t.Errorf("Received %v, expected ErrNotFound", err)
	}
}
