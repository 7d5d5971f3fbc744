package middleware

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/service"
)

const publicCachePrefix = "public:"

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

// CachePublic serves public GET responses from the content cache and fills
// it on the way out. Only successful JSON responses are cached.
func CachePublic(cache *service.ContentCacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || !cache.Enabled() || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := publicCachePrefix + c.Request.URL.RequestURI()

		var cached cachedResponse
		if hit, err := cache.Get(c.Request.Context(), key, &cached); err == nil && hit {
			c.Data(cached.Status, cached.ContentType, cached.Body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() != http.StatusOK {
			return
		}
		_ = cache.Set(c.Request.Context(), key, cachedResponse{
			Status:      writer.Status(),
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.buf.Bytes(),
		}, 0)
	}
}

// InvalidatePublicCache drops the cached public responses after any
// successful mutating admin request.
func InvalidatePublicCache(cache *service.ContentCacheService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if cache == nil || !cache.Enabled() || c.Request.Method == http.MethodGet {
			return
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		_ = cache.Invalidate(c.Request.Context(), publicCachePrefix+"*")
	}
}
