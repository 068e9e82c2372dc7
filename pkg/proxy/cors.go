package proxy

import (
	"net/http"

	"github.com/financialdata-online/edge-cache/pkg/origin"
)

// CORS preflight headers. All three are answered with "*".
const (
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
)

// preflight answers any OPTIONS request without consulting cache or origin.
func preflight() *http.Response {
	header := make(http.Header)
	header.Set(origin.HeaderAllowOrigin, "*")
	header.Set(HeaderAllowMethods, "*")
	header.Set(HeaderAllowHeaders, "*")
	return newResponse(http.StatusOK, header, nil)
}
