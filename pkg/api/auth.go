package api

import "github.com/gin-gonic/gin"

// anonymousReviewer is attributed when no auth proxy header is present.
const anonymousReviewer = "api-client"

// identityHeaders in priority order: oauth2-proxy sets the first two,
// kube-rbac-proxy the third.
var identityHeaders = [...]string{
	"X-Forwarded-User",
	"X-Forwarded-Email",
	"X-Remote-User",
}

// extractReviewer resolves the acting identity from the proxy headers.
// The API itself does no authentication; it trusts whatever the
// deployment's auth proxy forwards.
func extractReviewer(c *gin.Context) string {
	for _, h := range identityHeaders {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	return anonymousReviewer
}
