package params

import (
	"net/http"
	"slices"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/leadfusion/internal/httputil"
)

// Keys lists the parameters the fusion loop reads.
var Keys = []string{EnableRadarTracks, EnableCornerRadar, RadarReactionFactor}

// AttachAdminRoutes registers /debug/params. GET lists the known keys and
// their stored values; POST with key and value form fields sets one.
func AttachAdminRoutes(mux *http.ServeMux, s Store) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("params", "runtime fusion parameters", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			key, value := r.FormValue("key"), r.FormValue("value")
			if !slices.Contains(Keys, key) {
				httputil.BadRequest(w, "unknown param "+strconv.Quote(key))
				return
			}
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				httputil.BadRequest(w, "value must be numeric")
				return
			}
			if err := s.Set(r.Context(), key, value); err != nil {
				httputil.InternalServerError(w, err.Error())
				return
			}
			logf("%s set to %s", key, value)
		default:
			httputil.MethodNotAllowed(w)
			return
		}

		out := make(map[string]*string, len(Keys))
		for _, k := range Keys {
			if v, err := s.Get(r.Context(), k); err == nil {
				out[k] = &v
			} else {
				out[k] = nil
			}
		}
		httputil.WriteJSONOK(w, out)
	})
}
