package clientapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// The bulk calls drive the server's session state machine: start, name,
// text, files, then commit. They all act on the session belonging to the
// connection's token.

func (c *Connection) StartBulk() error {
	return c.doSimple("POST", "/bulk", nil)
}

func (c *Connection) SetBulkName(name string) error {
	return c.doSimple("PUT", "/bulk/name", strings.NewReader(name))
}

func (c *Connection) SetBulkText(text string) error {
	return c.doSimple("PUT", "/bulk/text", strings.NewReader(text))
}

// AddBulkFile uploads the contents of r into the current session and
// returns the running file count.
func (c *Connection) AddBulkFile(name, mimeType string, r io.Reader) (int64, error) {
	req, err := http.NewRequest("POST", c.HostURL+"/bulk/files", r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Upload-Name", name)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	v, err := c.doJason(req)
	if err != nil {
		return 0, err
	}
	count, _ := v.GetInt64("count")
	return count, nil
}

// CommitBulk finalizes the session and returns the bundle id and its
// permanent link.
func (c *Connection) CommitBulk() (string, string, error) {
	req, err := http.NewRequest("POST", c.HostURL+"/bulk/commit", nil)
	if err != nil {
		return "", "", err
	}
	v, err := c.doJason(req)
	if err != nil {
		return "", "", err
	}
	bid, _ := v.GetString("bundle_id")
	link, _ := v.GetString("link")
	return bid, link, nil
}

func (c *Connection) AbandonBulk() error {
	return c.doSimple("DELETE", "/bulk", nil)
}

func (c *Connection) doSimple(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, c.HostURL+path, body)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return nil
	case 401:
		return ErrNotAuthorized
	case 409:
		return ErrWrongState
	default:
		return fmt.Errorf("received status %d from server", resp.StatusCode)
	}
}
