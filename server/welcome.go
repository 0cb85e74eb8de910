package server

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Version is the version string reported by the welcome route.
var Version = "devel"

// WelcomeHandler answers the root route with a liveness line.
func WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fmt.Fprintf(w, "Filegate (%s)\n", Version)
}
