package kiosk

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"

	"github.com/gorilla/mux"

	logx "boothqr/pkg/logx"
)

const debugPrefix = "/debug/pprof"

// mountDebug exposes net/http/pprof under /debug/pprof/ behind a bearer
// token. It is only mounted when a token is configured.
func (s *Server) mountDebug(r *mux.Router, token string) {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return
	}
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(tok, h) }

	sub := r.PathPrefix(debugPrefix).Subrouter()
	sub.HandleFunc("/cmdline", wrap(hpprof.Cmdline))
	sub.HandleFunc("/profile", wrap(hpprof.Profile))
	sub.HandleFunc("/symbol", wrap(hpprof.Symbol))
	sub.HandleFunc("/trace", wrap(hpprof.Trace))
	// Index also serves the named profiles (heap, goroutine, ...).
	sub.PathPrefix("/").HandlerFunc(wrap(hpprof.Index))
	s.log.Info("kiosk debug endpoints enabled", logx.String("prefix", debugPrefix+"/"))
}

// withToken accepts "Authorization: Bearer <token>" or ?token=<token>.
func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) {
				got = strings.TrimSpace(strings.TrimPrefix(ah, p))
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}
