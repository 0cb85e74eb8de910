package server

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/filegate/filegate/objects"
)

// chunkSize is the fixed unit in which object content is fetched from the
// backing store. Byte ranges are translated into a run of these chunks and
// the first and last chunks are sliced to the exact bytes requested.
const chunkSize = 1 << 20

// A rangePlan maps one byte range [from, until] onto the chunk fetches
// needed to produce it.
type rangePlan struct {
	from  int64
	until int64

	offset    int64 // chunk-aligned fetch start
	firstCut  int64 // bytes to skip in the first chunk
	lastCut   int64 // bytes to keep of the last chunk
	partCount int64 // number of chunks to fetch
	length    int64 // total bytes delivered
}

// planRange computes the chunk arithmetic for a validated range. Both
// bounds are inclusive.
func planRange(from, until int64) rangePlan {
	offset := from - (from % chunkSize)
	return rangePlan{
		from:     from,
		until:    until,
		offset:   offset,
		firstCut: from - offset,
		lastCut:  until%chunkSize + 1,
		// one chunk per chunk boundary crossed, inclusive of the first
		partCount: until/chunkSize - offset/chunkSize + 1,
		length:    until - from + 1,
	}
}

// parseRange parses a header of the form "bytes=<from>-[<until>]". An empty
// until means the end of the object. Returns ok=false on anything
// malformed; bounds are not checked against the object size here.
func parseRange(header string, size int64) (from, until int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	first, rest, found := strings.Cut(spec, "-")
	if !found || strings.Contains(rest, ",") {
		return 0, 0, false
	}
	from, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if rest == "" {
		return from, size - 1, true
	}
	until, err = strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return from, until, true
}

// EntryHandler is the shared-link entry point. With the interstitial
// redirect enabled it bounces the client through an external page that
// carries the real download URL; otherwise it serves the download directly.
func (s *RESTServer) EntryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(401)
		fmt.Fprintln(w, "missing code")
		return
	}
	if s.Redirect.Enabled {
		id := ps.ByName("id")
		final := fmt.Sprintf("%s/dl/%s?code=%s", s.BaseURL, id, code)
		w.Header().Set("Location", s.Redirect.Wrap(final))
		w.WriteHeader(302)
		return
	}
	s.DownloadHandler(w, r, ps)
}

// DownloadHandler serves object content with HTTP range semantics on top of
// the chunk-at-a-time object store.
func (s *RESTServer) DownloadHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(401)
		fmt.Fprintln(w, "missing code")
		return
	}
	info, err := s.Objects.Stat(id)
	if err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, err)
		return
	}
	if !s.Gate.Verify(id, code) {
		w.WriteHeader(403)
		fmt.Fprintln(w, "wrong code")
		return
	}

	rangeHeader := r.Header.Get("Range")
	from, until := int64(0), info.Size-1
	status := 200
	if rangeHeader != "" {
		var ok bool
		from, until, ok = parseRange(rangeHeader, info.Size)
		if !ok {
			w.WriteHeader(416)
			fmt.Fprintln(w, "invalid range")
			return
		}
		status = 206
	}
	// bounds are checked before touching the object store at all
	if from < 0 || until < from || until > info.Size-1 {
		w.WriteHeader(416)
		fmt.Fprintln(w, "invalid range")
		return
	}

	plan := planRange(from, until)
	w.Header().Set("Content-Type", info.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(plan.length, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	w.Header().Set("Accept-Ranges", "bytes")
	if status == 206 {
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", plan.from, plan.until, info.Size))
	}
	w.WriteHeader(status)
	if r.Method == "HEAD" {
		return
	}

	if s.downloads != nil {
		s.downloads.Enter()
		defer s.downloads.Leave()
	}
	err = s.stream(w, r, id, plan)
	if err != nil {
		// headers are gone already, all we can do is cut the
		// connection short and let the client notice
		log.Println("stream", id, err)
	}
}

// stream pulls chunks one at a time and writes the sliced range to the
// client. Chunks are only fetched as the transport accepts more bytes, and
// iteration stops promptly if the client goes away.
func (s *RESTServer) stream(w http.ResponseWriter, r *http.Request, id string, plan rangePlan) error {
	it, err := s.Objects.Iterate(id, plan.offset, chunkSize)
	if err != nil {
		return err
	}
	defer it.Close()

	ctx := r.Context()
	var delivered int64
	for part := int64(1); part <= plan.partCount; part++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk, err := it.Next()
		if err == io.EOF {
			// underlying sequence exhausted early; the short count
			// below is the client's signal
			break
		}
		if err != nil {
			return err
		}
		switch {
		case plan.partCount == 1:
			chunk = chunk[plan.firstCut:plan.lastCut]
		case part == 1:
			chunk = chunk[plan.firstCut:]
		case part == plan.partCount:
			if plan.lastCut < int64(len(chunk)) {
				chunk = chunk[:plan.lastCut]
			}
		}
		n, err := w.Write(chunk)
		delivered += int64(n)
		deliveredBytes.Add(float64(n))
		if err != nil {
			return err
		}
	}
	if delivered < plan.length {
		return fmt.Errorf("delivered %d of %d bytes", delivered, plan.length)
	}
	return nil
}

// DeepLinkHandler redirects into the messaging client with the object id
// and code embedded, so the file can be fetched there instead.
func (s *RESTServer) DeepLinkHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := r.URL.Query().Get("code")
	if code == "" {
		w.WriteHeader(401)
		fmt.Fprintln(w, "missing code")
		return
	}
	if s.DeepLinkBase == "" {
		w.WriteHeader(404)
		fmt.Fprintln(w, "deep links not configured")
		return
	}
	w.Header().Set("Location",
		fmt.Sprintf("%s?start=file_%s_%s", s.DeepLinkBase, ps.ByName("id"), code))
	w.WriteHeader(302)
}

// mediaMime reports whether the object should be treated as streamable
// media, which only gets a direct download link.
func mediaMime(info objects.Info) bool {
	return strings.HasPrefix(info.MimeType, "video/")
}
