package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/filegate/filegate/bulk"
)

// The bulk command handlers mirror the chat commands of the original bot:
// start, set name, set text, add file, finish, abandon. The session owner
// is the authenticated user, taken from the token allow list.

func owner(ps httprouter.Params) string {
	return ps.ByName("username")
}

// writeBulkError reports a command issued in the wrong session state as a
// recoverable, user-visible message.
func writeBulkError(w http.ResponseWriter, err error) {
	if _, ok := err.(*bulk.StateError); ok {
		w.WriteHeader(409)
	} else {
		w.WriteHeader(500)
	}
	fmt.Fprintln(w, err.Error())
}

// StartBulkHandler begins a bulk session for the calling user. The body may
// carry optional inline JSON {"name": ..., "text": ...}; both may equally
// be set later with the dedicated routes.
func (s *RESTServer) StartBulkHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var inline struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if r.Body != nil {
		// an empty or absent body is fine
		json.NewDecoder(r.Body).Decode(&inline)
		r.Body.Close()
	}
	err := s.Aggregator.Start(owner(ps), inline.Name, inline.Text)
	if err != nil {
		writeBulkError(w, err)
		return
	}
	fmt.Fprintln(w, "bulk session started; add files and then commit")
}

// SetBulkNameHandler sets the session name to the request body.
func (s *RESTServer) SetBulkNameHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.setBulkField(w, r, ps, s.Aggregator.SetName)
}

// SetBulkTextHandler sets the session text to the request body.
func (s *RESTServer) SetBulkTextHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.setBulkField(w, r, ps, s.Aggregator.SetText)
}

func (s *RESTServer) setBulkField(w http.ResponseWriter, r *http.Request, ps httprouter.Params, set func(string, string) error) {
	value, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	if len(value) == 0 {
		w.WriteHeader(400)
		fmt.Fprintln(w, "provide a value in the request body")
		return
	}
	if err := set(owner(ps), string(value)); err != nil {
		writeBulkError(w, err)
		return
	}
	w.WriteHeader(200)
}

// AddBulkFileHandler uploads the request body as a new object, issues its
// code, and appends it to the caller's session. It answers with the running
// file count.
func (s *RESTServer) AddBulkFileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := r.Header.Get("X-Upload-Name")
	if name == "" {
		w.WriteHeader(400)
		fmt.Fprintln(w, "missing X-Upload-Name header")
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	info, err := s.Objects.Upload(name, mimeType, r.Body)
	r.Body.Close()
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	code, err := s.Gate.Issue(info.ID)
	if err != nil {
		s.Objects.Delete(info.ID)
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	count, err := s.Aggregator.AddFile(owner(ps), bulk.FileRef{
		ID:   info.ID,
		Size: info.Size,
		Code: code,
	})
	if err != nil {
		// the object stays uploaded but unreferenced; the session was
		// not in a state to take it
		s.Objects.Delete(info.ID)
		writeBulkError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    info.ID,
		"count": count,
	})
}

// CommitBulkHandler finalizes the caller's session into a bundle and
// answers with the permanent link.
func (s *RESTServer) CommitBulkHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := s.Aggregator.Finalize(owner(ps))
	if err != nil {
		writeBulkError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{
		"bundle_id": id,
		"link":      fmt.Sprintf("%s/bulk/%s", s.BaseURL, id),
	})
}

// AbandonBulkHandler discards the caller's session.
func (s *RESTServer) AbandonBulkHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.Aggregator.Abandon(owner(ps)); err != nil {
		writeBulkError(w, err)
		return
	}
	fmt.Fprintln(w, "bulk session discarded")
}

// bundleView is what the bundle page template renders.
type bundleView struct {
	Name  string
	Text  string
	Files []bundleFileView
}

type bundleFileView struct {
	Link string
	Size int64
}

var bundleTemplate = template.Must(template.New("bundle").Parse(`<html>
<h1>{{ .Name }}</h1>
<p>{{ .Text }}</p>
<ol>
{{ range .Files }}
	<li><a href="{{ .Link }}">Download</a> ({{ .Size }} bytes)</li>
{{ else }}
	<li>No Files</li>
{{ end }}
</ol>
</html>`))

// BundleHandler renders a finalized bundle's file list as a page, or as
// JSON when requested.
func (s *RESTServer) BundleHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	b, err := s.Aggregator.Bundles.Lookup(ps.ByName("bid"))
	if err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, err)
		return
	}
	view := bundleView{Name: b.Name, Text: b.Text}
	for _, f := range b.Files {
		view.Files = append(view.Files, bundleFileView{
			Link: fmt.Sprintf("%s/RD/%s?code=%s", s.BaseURL, f.ID, f.Code),
			Size: f.Size,
		})
	}
	writeHTMLorJSON(w, r, bundleTemplate, view)
}

// writeHTMLorJSON returns val as JSON or rendered through the given
// template, depending on the request header "Accept-Encoding".
func writeHTMLorJSON(w http.ResponseWriter,
	r *http.Request,
	tmpl *template.Template,
	val interface{}) {

	if r.Header.Get("Accept-Encoding") == "application/json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(val)
		return
	}
	tmpl.Execute(w, val)
}
