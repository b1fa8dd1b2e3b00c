package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireBodyType rejects writes whose Content-Type is not one of allowed.
// Parameters such as charset are ignored.
func RequireBodyType(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if _, ok := set[mediaType]; err != nil || !ok {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": "Content-Type must be JSON or form encoded",
					"code":  "unsupported_media_type",
				})
				return
			}
		}
		c.Next()
	}
}
