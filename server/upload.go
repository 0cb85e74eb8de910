package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/filegate/filegate/objects"
)

// uploadReply is the JSON answer to a successful upload. The capability
// code appears here and nowhere else; this reply is the only surface that
// pairs it with the object id.
type uploadReply struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Size     int64  `json:"size"`
	DlLink   string `json:"dl_link"`
	TgLink   string `json:"tg_link,omitempty"`
	MimeType string `json:"mime_type"`
}

// UploadHandler stores the request body as a new object, issues a
// capability code for it, and answers with the shareable links. The display
// name comes from the X-Upload-Name header and the content type from
// Content-Type.
func (s *RESTServer) UploadHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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
	if r.Body == nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "no body")
		return
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
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(s.uploadReply(info, code))
}

func (s *RESTServer) uploadReply(info objects.Info, code string) uploadReply {
	reply := uploadReply{
		ID:       info.ID,
		Code:     code,
		Size:     info.Size,
		MimeType: info.MimeType,
		DlLink:   fmt.Sprintf("%s/RD/%s?code=%s", s.BaseURL, info.ID, code),
	}
	// media players fetch the direct link themselves; everything else
	// also gets the in-client deep link
	if !mediaMime(info) && s.DeepLinkBase != "" {
		reply.TgLink = fmt.Sprintf("%s/file/%s?code=%s", s.BaseURL, info.ID, code)
	}
	return reply
}
