package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/taxmate/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. The span is renamed after
// routing so unmatched paths collapse into one name.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("taxmate/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		}
		reqCtx := c.Request.Context()
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if _, ok := obscontext.UserIDFromContext(reqCtx); ok {
			attrs = append(attrs, attribute.Bool("user.identified", true))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}
