package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_started_at"

	metaCacheHit       = "cache_hit"
	metaProcessingTime = "processing_time_ms"
)

// WithResponseMeta gives each request a metadata map that handlers fill in and
// response.JSON emits under "meta".
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit marks whether the plan was served from the result cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, metaCacheHit, hit)
}

// SetMeta stores one metadata value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta := metaMap(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta[key] = value
}

// ExtractMeta returns the metadata map stored on the context, or nil. Call it right
// before writing the response: it stamps the time spent on the request so far.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaMap(c)
	if meta == nil {
		return nil
	}
	if started, ok := c.Get(requestStartKey); ok {
		if at, ok := started.(time.Time); ok {
			meta[metaProcessingTime] = time.Since(at).Milliseconds()
		}
	}
	return meta
}

func metaMap(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	return meta
}
