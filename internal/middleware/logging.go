package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"juris-rag-go/pkg/log"
)

// maxLoggedBody bounds how much of a request or response body is logged.
const maxLoggedBody = 2048

// bodyLogWriter tees the response body into a buffer.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs one structured line per request. Bodies of paths in
// redactBody are logged by size only.
func RequestLogger(redactBody ...string) gin.HandlerFunc {
	redacted := make(map[string]bool, len(redactBody))
	for _, p := range redactBody {
		redacted[p] = true
	}
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		loggedBody := string(requestBody)
		if redacted[c.Request.URL.Path] {
			loggedBody = ""
		} else if len(loggedBody) > maxLoggedBody {
			loggedBody = loggedBody[:maxLoggedBody] + "..."
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestSize", len(requestBody),
			"requestBody", loggedBody,
			"responseBody", blw.body.String(),
		)
	}
}
