package server

import (
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // for pprof server
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/facebookgo/httpdown"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filegate/filegate/access"
	"github.com/filegate/filegate/bulk"
	"github.com/filegate/filegate/objects"
	"github.com/filegate/filegate/redirect"
	"github.com/filegate/filegate/store"
	"github.com/filegate/filegate/util"
)

// RESTServer holds the configuration for a filegate API server.
//
// Set the public fields and then call Run. Run listens on the given port and
// handles requests until Stop is called. Do not change any fields after
// calling Run.
//
// It should be enough to set DataDir and BaseURL. The remaining fields allow
// the stores and gates to be swapped out.
type RESTServer struct {
	// Port number to listen on. Defaults to 8080.
	PortNumber string
	PProfPort  string

	// BaseURL is the externally visible URL of this server, without a
	// trailing slash. Used when minting download and bundle links.
	BaseURL string

	// DeepLinkBase is the URL prefix used by the /file route to hand a
	// download off to the originating messaging client. Empty disables
	// the route (it answers 404).
	DeepLinkBase string

	// DataDir is where everything is persisted. It accepts a plain
	// path, "file:path", or "s3://host/bucket/prefix". If empty all
	// state is kept in memory and lost on exit.
	DataDir string

	// Pass in a dial string to keep sessions, bundles, and capability
	// codes in a MySQL database instead of DataDir records.
	// e.g. "user:password@tcp(localhost:3306)/dbname"
	MySQL string

	// CodeLength is the number of random bytes per capability code.
	// Zero means the access package default.
	CodeLength int

	// MaxDownloads bounds the number of downloads streaming at once.
	// Zero means no limit.
	MaxDownloads int

	// --- The following fields are filled in by Run if nil. ---

	// Objects stores the uploaded content.
	Objects *objects.Store

	// Gate issues and verifies capability codes.
	Gate *access.Gate

	// Aggregator drives bulk sessions.
	Aggregator *bulk.Aggregator

	// Redirect optionally wraps download links in an interstitial hop.
	Redirect *redirect.Gate

	// Validator authenticates API tokens on the mutating routes. If nil
	// every request is treated as an admin named "nobody".
	Validator TokenDecoder

	server    httpdown.Server // open listening socket
	downloads util.Gate       // bounds concurrent streams, nil means unlimited
}

// Run initializes any unset stores, binds the routes, and blocks serving
// HTTP requests.
func (s *RESTServer) Run() error {
	log.Println("==========")
	log.Printf("Starting filegate server version %s", Version)
	log.Printf("DataDir = %s", s.DataDir)
	log.Printf("BaseURL = %s", s.BaseURL)

	if s.PortNumber == "" {
		s.PortNumber = "8080"
	}
	if s.Validator == nil {
		log.Println("No Validator given, all requests are nobody/admin")
		s.Validator = NewNobodyDecoder()
	}
	if s.Redirect == nil {
		s.Redirect = &redirect.Gate{}
	}
	if s.Objects == nil {
		s.Objects = objects.New(s.getstore("objects"))
	}
	if s.MaxDownloads > 0 {
		s.downloads = util.NewGate(s.MaxDownloads)
	}

	var codes access.CodeStore
	var sessions bulk.SessionStore
	var bundles bulk.BundleStore
	if s.MySQL != "" {
		log.Printf("Using MySQL for sessions, bundles, and codes")
		db, err := NewMysqlStore(s.MySQL)
		if err != nil {
			return err
		}
		codes, sessions, bundles = db, db, db
	} else if strings.HasPrefix(s.DataDir, "s3:") {
		// the embedded database needs a local file, so on S3 the
		// sessions and bundles live as records next to the objects
		log.Println("Using record stores on S3")
		codes = access.NewRecordCodes(s.getstore("codes"))
		sessions = bulk.NewRecordSessions(s.getstore("sessions"))
		bundles = bulk.NewRecordBundles(s.getstore("bundles"))
	} else if s.DataDir != "" {
		path := filepath.Join(strings.TrimPrefix(s.DataDir, "file:"), "filegate.ql")
		log.Printf("Using internal database at %s", path)
		db, err := NewQlStore(path)
		if err != nil {
			return err
		}
		codes, sessions, bundles = db, db, db
	} else {
		log.Println("Using in-memory session and bundle stores")
		codes = access.NewMemoryCodes()
		sessions = bulk.NewMemorySessions()
		bundles = bulk.NewMemoryBundles()
	}
	if s.Gate == nil {
		s.Gate = &access.Gate{Codes: codes, Length: s.CodeLength}
	}
	if s.Aggregator == nil {
		s.Aggregator = bulk.NewAggregator(sessions, bundles)
	}

	if s.PProfPort != "" {
		log.Println("Starting PProf on port", s.PProfPort)
		go func() {
			log.Println(http.ListenAndServe(":"+s.PProfPort, nil))
		}()
	}
	log.Println("Listening on", s.PortNumber)

	h := httpdown.HTTP{}
	var err error
	s.server, err = h.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: s.addRoutes(),
	})
	if err != nil {
		log.Println(err)
		return err
	}
	return s.server.Wait()
}

// Stop closes the listening socket and returns once in-flight requests have
// drained.
func (s *RESTServer) Stop() error {
	return s.server.Stop()
}

// getstore resolves the DataDir location into a store, placing each concern
// in its own namespace. Locations have the forms "", "path", "file:path",
// or "s3://host/bucket/prefix".
func (s *RESTServer) getstore(name string) store.Store {
	loc := s.DataDir
	switch {
	case loc == "":
		return store.NewMemory()
	case strings.HasPrefix(loc, "s3:"):
		u, err := url.Parse(loc)
		if err != nil {
			log.Println("getstore:", err)
			return store.NewMemory()
		}
		var config aws.Config
		if u.Host != "" {
			config.Endpoint = aws.String(u.Host)
			config.S3ForcePathStyle = aws.Bool(true)
		}
		pieces := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		bucket := pieces[0]
		prefix := ""
		if len(pieces) == 2 {
			prefix = pieces[1]
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		sess := session.Must(session.NewSession(&config))
		return store.NewS3(bucket, prefix+name+"/", sess)
	default:
		path := strings.TrimPrefix(loc, "file:")
		path = filepath.Join(path, name)
		os.MkdirAll(path, 0755)
		return store.NewFileSystem(path)
	}
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		role    Role // RoleUnknown means no API key is needed
		handler httprouter.Handle
	}{
		// delivery routes are gated by capability code, not API key
		{"GET", "/RD/:id", RoleUnknown, s.EntryHandler},
		{"GET", "/dl/:id", RoleUnknown, s.DownloadHandler},
		{"HEAD", "/dl/:id", RoleUnknown, s.DownloadHandler},
		{"GET", "/file/:id", RoleUnknown, s.DeepLinkHandler},
		{"GET", "/bulk/:bid", RoleUnknown, s.BundleHandler},

		// upload and bulk commands need a token from the allow list
		{"POST", "/upload", RoleWrite, s.UploadHandler},
		{"POST", "/bulk", RoleWrite, s.StartBulkHandler},
		{"PUT", "/bulk/name", RoleWrite, s.SetBulkNameHandler},
		{"PUT", "/bulk/text", RoleWrite, s.SetBulkTextHandler},
		{"POST", "/bulk/files", RoleWrite, s.AddBulkFileHandler},
		{"POST", "/bulk/commit", RoleWrite, s.CommitBulkHandler},
		{"DELETE", "/bulk", RoleWrite, s.AbandonBulkHandler},

		// other
		{"GET", "/", RoleUnknown, WelcomeHandler},
		{"GET", "/metrics", RoleUnknown, MetricsHandler},
		{"GET", "/debug/vars", RoleUnknown, VarHandler},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			logWrapper(metricsWrapper(route.route, s.authzWrapper(route.handler, route.role))))
	}
	return r
}

// VarHandler adapts the expvar default handler to the httprouter three
// parameter handler.
func VarHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// this code is taken from the stdlib expvar package.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	fmt.Fprintf(w, "{\n")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprintf(w, ",\n")
		}
		first = false
		fmt.Fprintf(w, "%q: %s", kv.Key, kv.Value)
	})
	fmt.Fprintf(w, "\n}\n")
}

// MetricsHandler serves the prometheus registry.
func MetricsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	promhttp.Handler().ServeHTTP(w, r)
}

// authzWrapper returns a Handler which first verifies the user token as
// having at least the given Role. The user name is added as the parameter
// "username"; bulk commands use it as the session owner.
func (s *RESTServer) authzWrapper(handler httprouter.Handle, leastRole Role) httprouter.Handle {
	if leastRole == RoleUnknown {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := r.Header.Get("X-Api-Key")
		user, role, err := s.Validator.TokenDecode(token)
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintln(w, err.Error())
			return
		}
		if role < leastRole {
			w.WriteHeader(401)
			fmt.Fprintln(w, "Forbidden")
			return
		}
		ps = append(ps, httprouter.Param{Key: "username", Value: user})
		handler(w, r, ps)
	}
}

// logWrapper takes a handler and returns a handler which does the same
// thing, after first logging the request URL. The capability code must
// never appear in the log next to its object id, so the code parameter is
// redacted.
func logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		u := *r.URL
		if q := u.Query(); q.Get("code") != "" {
			q.Set("code", "REDACTED")
			u.RawQuery = q.Encode()
		}
		log.Println(r.Method, &u)
		handler(w, r, ps)
	}
}
