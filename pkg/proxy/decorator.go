package proxy

import (
	"io"
	"net/http"

	"github.com/financialdata-online/edge-cache/pkg/origin"
)

// Identity headers attached to every response.
const (
	HeaderVersion     = "X-Worker-Version"
	HeaderEnvironment = "X-Worker-Environment"
)

// Decorate attaches the process identity and the wildcard CORS origin to
// resp, whichever route produced it.
func (h *Handler) Decorate(resp *http.Response) *http.Response {
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(HeaderVersion, h.version)
	resp.Header.Set(HeaderEnvironment, h.environment)
	resp.Header.Set(origin.HeaderAllowOrigin, "*")
	return resp
}

// writeResponse copies resp onto w and closes its body. Copy errors mean the
// client went away and are only logged.
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	defer resp.Body.Close()

	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append([]string(nil), vv...)
	}
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		loggerFrom(r.Context(), h.logger).Debug().Err(err).Msg("Response copy aborted")
	}
}
