package ws

import (
	"net/http"
	"strings"
)

// originChecker builds the upgrader's CheckOrigin policy. An empty list
// falls back to gorilla's default same-host policy; "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}

	allowAll := false
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(strings.ToLower(o))
		if o == "*" {
			allowAll = true
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			// Non-browser clients (probe tool, tests) send no Origin.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
