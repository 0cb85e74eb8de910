package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/filegate/filegate/access"
	"github.com/filegate/filegate/bulk"
	"github.com/filegate/filegate/objects"
	"github.com/filegate/filegate/redirect"
	"github.com/filegate/filegate/store"
)

const testToken = "deadbeef"

func newTestServer(t *testing.T) (*RESTServer, *httptest.Server) {
	validator, err := NewListDecoder(strings.NewReader("tester write " + testToken))
	if err != nil {
		t.Fatal(err)
	}
	s := &RESTServer{
		Objects:      objects.New(store.NewMemory()),
		Gate:         &access.Gate{Codes: access.NewMemoryCodes()},
		Aggregator:   bulk.NewAggregator(bulk.NewMemorySessions(), bulk.NewMemoryBundles()),
		Redirect:     &redirect.Gate{},
		Validator:    validator,
		DeepLinkBase: "https://t.me/examplebot",
	}
	ts := httptest.NewServer(s.addRoutes())
	s.BaseURL = ts.URL
	t.Cleanup(ts.Close)
	return s, ts
}

func request(t *testing.T, method, url string, body []byte, hdr map[string]string) *http.Response {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func checkStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("%s: status %d, expected %d", resp.Request.URL, resp.StatusCode, expected)
	}
}

func getbody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func uploadFile(t *testing.T, ts *httptest.Server, name, mime string, content []byte) uploadReply {
	t.Helper()
	resp := request(t, "POST", ts.URL+"/upload", content, map[string]string{
		"X-Api-Key":     testToken,
		"X-Upload-Name": name,
		"Content-Type":  mime,
	})
	checkStatus(t, resp, 200)
	var reply uploadReply
	if err := json.Unmarshal(getbody(t, resp), &reply); err != nil {
		t.Fatal(err)
	}
	return reply
}

func testContent(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestUploadNeedsToken(t *testing.T) {
	_, ts := newTestServer(t)
	resp := request(t, "POST", ts.URL+"/upload", []byte("x"), map[string]string{
		"X-Upload-Name": "f.bin",
	})
	checkStatus(t, resp, 401)
	getbody(t, resp)

	resp = request(t, "POST", ts.URL+"/upload", []byte("x"), map[string]string{
		"X-Api-Key":     "wrongtoken",
		"X-Upload-Name": "f.bin",
	})
	checkStatus(t, resp, 401)
	getbody(t, resp)
}

func TestUploadAndDownload(t *testing.T) {
	_, ts := newTestServer(t)
	content := testContent(100)
	reply := uploadFile(t, ts, "notes.txt", "text/plain", content)
	if reply.Code == "" || reply.ID == "" {
		t.Fatalf("incomplete reply %+v", reply)
	}
	if reply.TgLink == "" {
		t.Error("expected a tg_link for a non-media file")
	}

	resp := request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code="+reply.Code, nil, nil)
	checkStatus(t, resp, 200)
	if got := resp.Header.Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="notes.txt"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := resp.Header.Get("Content-Range"); got != "" {
		t.Errorf("unexpected Content-Range %q on a full response", got)
	}
	if body := getbody(t, resp); !bytes.Equal(body, content) {
		t.Errorf("body mismatch: %d bytes", len(body))
	}
}

func TestDownloadAccess(t *testing.T) {
	_, ts := newTestServer(t)
	reply := uploadFile(t, ts, "f.bin", "application/octet-stream", testContent(10))

	resp := request(t, "GET", ts.URL+"/dl/"+reply.ID, nil, nil)
	checkStatus(t, resp, 401)
	getbody(t, resp)

	resp = request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code=notthecode", nil, nil)
	checkStatus(t, resp, 403)
	getbody(t, resp)

	resp = request(t, "GET", ts.URL+"/dl/unknown?code="+reply.Code, nil, nil)
	checkStatus(t, resp, 404)
	getbody(t, resp)
}

func TestRangedDownload(t *testing.T) {
	_, ts := newTestServer(t)
	content := testContent(3000000)
	reply := uploadFile(t, ts, "big.bin", "application/octet-stream", content)

	// the worked example range spanning two chunks
	resp := request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code="+reply.Code, nil, map[string]string{
		"Range": "bytes=500000-2000000",
	})
	checkStatus(t, resp, 206)
	if got := resp.Header.Get("Content-Range"); got != "bytes 500000-2000000/3000000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "1500001" {
		t.Errorf("Content-Length = %q", got)
	}
	body := getbody(t, resp)
	if !bytes.Equal(body, content[500000:2000001]) {
		t.Errorf("range body mismatch: %d bytes", len(body))
	}

	// open-ended range
	resp = request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code="+reply.Code, nil, map[string]string{
		"Range": "bytes=2999990-",
	})
	checkStatus(t, resp, 206)
	body = getbody(t, resp)
	if !bytes.Equal(body, content[2999990:]) {
		t.Errorf("open-ended range mismatch: %d bytes", len(body))
	}

	// range ending on a chunk boundary byte
	resp = request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code="+reply.Code, nil, map[string]string{
		"Range": "bytes=0-1048576",
	})
	checkStatus(t, resp, 206)
	body = getbody(t, resp)
	if !bytes.Equal(body, content[:1048577]) {
		t.Errorf("boundary range mismatch: %d bytes", len(body))
	}
}

func TestRangeRejection(t *testing.T) {
	_, ts := newTestServer(t)
	reply := uploadFile(t, ts, "f.bin", "application/octet-stream", testContent(1000))

	for _, header := range []string{
		"bytes=0-1000",  // until == size
		"bytes=0-5000",  // until > size
		"bytes=500-400", // until < from
		"bytes=junk",
	} {
		resp := request(t, "GET", ts.URL+"/dl/"+reply.ID+"?code="+reply.Code, nil, map[string]string{
			"Range": header,
		})
		checkStatus(t, resp, 416)
		getbody(t, resp)
	}
}

func TestEntryRedirect(t *testing.T) {
	s, ts := newTestServer(t)
	reply := uploadFile(t, ts, "f.bin", "application/octet-stream", testContent(10))

	// disabled: serves the bytes directly
	resp := request(t, "GET", ts.URL+"/RD/"+reply.ID+"?code="+reply.Code, nil, nil)
	checkStatus(t, resp, 200)
	getbody(t, resp)

	// enabled: bounces through the interstitial with the dl URL embedded
	s.Redirect.Enabled = true
	s.Redirect.BaseURLs = []string{"https://interstitial.example"}
	resp = request(t, "GET", ts.URL+"/RD/"+reply.ID+"?code="+reply.Code, nil, nil)
	checkStatus(t, resp, 302)
	getbody(t, resp)
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "https://interstitial.example?target=") {
		t.Errorf("Location = %q", loc)
	}
	if !strings.Contains(loc, "%2Fdl%2F"+reply.ID) {
		t.Errorf("Location does not embed the dl URL: %q", loc)
	}

	resp = request(t, "GET", ts.URL+"/RD/"+reply.ID, nil, nil)
	checkStatus(t, resp, 401)
	getbody(t, resp)
}

func TestDeepLink(t *testing.T) {
	_, ts := newTestServer(t)
	reply := uploadFile(t, ts, "f.bin", "application/octet-stream", testContent(10))

	resp := request(t, "GET", ts.URL+"/file/"+reply.ID+"?code="+reply.Code, nil, nil)
	checkStatus(t, resp, 302)
	getbody(t, resp)
	loc := resp.Header.Get("Location")
	expected := "https://t.me/examplebot?start=file_" + reply.ID + "_" + reply.Code
	if loc != expected {
		t.Errorf("Location = %q, expected %q", loc, expected)
	}

	resp = request(t, "GET", ts.URL+"/file/"+reply.ID, nil, nil)
	checkStatus(t, resp, 401)
	getbody(t, resp)
}

func TestBulkOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	auth := map[string]string{"X-Api-Key": testToken}

	// commands before starting a session are state errors
	resp := request(t, "POST", ts.URL+"/bulk/commit", nil, auth)
	checkStatus(t, resp, 409)
	getbody(t, resp)

	resp = request(t, "POST", ts.URL+"/bulk", nil, auth)
	checkStatus(t, resp, 200)
	getbody(t, resp)

	for i, name := range []string{"one.txt", "two.txt"} {
		resp = request(t, "POST", ts.URL+"/bulk/files", testContent(50+i), map[string]string{
			"X-Api-Key":     testToken,
			"X-Upload-Name": name,
			"Content-Type":  "text/plain",
		})
		checkStatus(t, resp, 200)
		var reply struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(getbody(t, resp), &reply); err != nil {
			t.Fatal(err)
		}
		if reply.Count != i+1 {
			t.Errorf("count = %d, expected %d", reply.Count, i+1)
		}
	}

	// commit without name and text is refused and changes nothing
	resp = request(t, "POST", ts.URL+"/bulk/commit", nil, auth)
	checkStatus(t, resp, 409)
	getbody(t, resp)

	resp = request(t, "PUT", ts.URL+"/bulk/name", []byte("My Files"), auth)
	checkStatus(t, resp, 200)
	getbody(t, resp)
	resp = request(t, "PUT", ts.URL+"/bulk/text", []byte("a description"), auth)
	checkStatus(t, resp, 200)
	getbody(t, resp)

	resp = request(t, "POST", ts.URL+"/bulk/commit", nil, auth)
	checkStatus(t, resp, 200)
	var commit struct {
		BundleID string `json:"bundle_id"`
		Link     string `json:"link"`
	}
	if err := json.Unmarshal(getbody(t, resp), &commit); err != nil {
		t.Fatal(err)
	}
	if commit.BundleID == "" || !strings.HasSuffix(commit.Link, "/bulk/"+commit.BundleID) {
		t.Fatalf("commit reply %+v", commit)
	}

	// the bundle page exists, as HTML and as JSON
	resp = request(t, "GET", ts.URL+"/bulk/"+commit.BundleID, nil, nil)
	checkStatus(t, resp, 200)
	if !strings.Contains(string(getbody(t, resp)), "My Files") {
		t.Error("bundle page is missing the name")
	}
	resp = request(t, "GET", ts.URL+"/bulk/"+commit.BundleID, nil, map[string]string{
		"Accept-Encoding": "application/json",
	})
	checkStatus(t, resp, 200)
	var view bundleView
	if err := json.Unmarshal(getbody(t, resp), &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Files) != 2 {
		t.Errorf("bundle has %d files, expected 2", len(view.Files))
	}

	// the session is gone now
	resp = request(t, "POST", ts.URL+"/bulk/commit", nil, auth)
	checkStatus(t, resp, 409)
	getbody(t, resp)

	resp = request(t, "GET", ts.URL+"/bulk/doesnotexist", nil, nil)
	checkStatus(t, resp, 404)
	getbody(t, resp)
}

func TestBulkAbandonOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	auth := map[string]string{"X-Api-Key": testToken}

	resp := request(t, "POST", ts.URL+"/bulk", []byte(`{"name":"n","text":"t"}`), auth)
	checkStatus(t, resp, 200)
	getbody(t, resp)

	resp = request(t, "DELETE", ts.URL+"/bulk", nil, auth)
	checkStatus(t, resp, 200)
	getbody(t, resp)

	resp = request(t, "POST", ts.URL+"/bulk/commit", nil, auth)
	checkStatus(t, resp, 409)
	getbody(t, resp)
}

func TestWelcome(t *testing.T) {
	_, ts := newTestServer(t)
	resp := request(t, "GET", ts.URL+"/", nil, nil)
	checkStatus(t, resp, 200)
	if !strings.Contains(string(getbody(t, resp)), "Filegate") {
		t.Error("welcome text missing")
	}
}
