package clientapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/antonholmquist/jason"
)

// A Connection represents a connection to a filegate server.
// It can be shared between multiple goroutines.
type Connection struct {
	// The server this connection is to, e.g. "http://localhost:14000"
	HostURL string

	// Token is sent as the X-Api-Key header when not empty.
	Token string

	client *http.Client
}

// Exported errors
var (
	ErrNotFound       = errors.New("not found on server")
	ErrNotAuthorized  = errors.New("access denied")
	ErrBadCode        = errors.New("wrong capability code")
	ErrWrongState     = errors.New("command out of order")
	ErrUnexpectedResp = errors.New("unexpected response code")
)

// UploadInfo is the server's answer to an upload: the new object id, its
// capability code, and the shareable links.
type UploadInfo struct {
	ID       string
	Code     string
	Size     int64
	MimeType string
	DlLink   string
	TgLink   string
}

// Upload stores the contents of r as a new object under the given display
// name and returns the id and capability code the server assigned.
func (c *Connection) Upload(name, mimeType string, r io.Reader) (UploadInfo, error) {
	var result UploadInfo
	req, err := http.NewRequest("POST", c.HostURL+"/upload", r)
	if err != nil {
		return result, err
	}
	req.Header.Set("X-Upload-Name", name)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	v, err := c.doJason(req)
	if err != nil {
		return result, err
	}
	result.ID, _ = v.GetString("id")
	result.Code, _ = v.GetString("code")
	result.Size, _ = v.GetInt64("size")
	result.MimeType, _ = v.GetString("mime_type")
	result.DlLink, _ = v.GetString("dl_link")
	result.TgLink, _ = v.GetString("tg_link")
	return result, nil
}

// Download copies the object with the given id from the server to w. The
// capability code must be the one issued at upload time.
func (c *Connection) Download(w io.Writer, id, code string) error {
	return c.download(w, id, code, "")
}

// DownloadRange copies the byte range [from, until] of the given object
// to w. Both endpoints are inclusive.
func (c *Connection) DownloadRange(w io.Writer, id, code string, from, until int64) error {
	return c.download(w, id, code, fmt.Sprintf("bytes=%d-%d", from, until))
}

func (c *Connection) download(w io.Writer, id, code, byterange string) error {
	path := c.HostURL + "/dl/" + id + "?code=" + code
	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		return err
	}
	if byterange != "" {
		req.Header.Set("Range", byterange)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200, 206:
		break
	case 404:
		return ErrNotFound
	case 401:
		return ErrNotAuthorized
	case 403:
		return ErrBadCode
	default:
		return fmt.Errorf("received status %d from server", resp.StatusCode)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Bundle returns the file list of a finalized bundle.
func (c *Connection) Bundle(bid string) (*jason.Object, error) {
	return c.doJasonGet("/bulk/" + bid)
}

// do performs an http request using our client with a timeout. The
// timeout is arbitrary, and is just there so we don't hang indefinitely
// should the server never close the connection.
func (c *Connection) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Add("X-Api-Key", c.Token)
	}
	if c.client == nil {
		c.client = &http.Client{
			Timeout: 10 * time.Minute, // arbitrary
		}
	}
	return c.client.Do(req)
}

func (c *Connection) doJasonGet(path string) (*jason.Object, error) {
	req, err := http.NewRequest("GET", c.HostURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "application/json")
	return c.doJason(req)
}

// doJason performs the request and decodes the JSON reply.
func (c *Connection) doJason(req *http.Request) (*jason.Object, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return jason.NewObjectFromReader(resp.Body)
	case 404:
		return nil, ErrNotFound
	case 401:
		return nil, ErrNotAuthorized
	case 409:
		return nil, ErrWrongState
	default:
		return nil, fmt.Errorf("received status %d from server", resp.StatusCode)
	}
}
