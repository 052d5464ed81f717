package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// spanStatus maps the statuses this API answers with. Anything else falls
// back by class in httpStatusToSpanStatus.
var spanStatus = map[int]sentry.SpanStatus{
	http.StatusBadRequest:            sentry.SpanStatusInvalidArgument,
	http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
	http.StatusForbidden:             sentry.SpanStatusPermissionDenied,
	http.StatusNotFound:              sentry.SpanStatusNotFound,
	http.StatusConflict:              sentry.SpanStatusAlreadyExists,
	http.StatusRequestEntityTooLarge: sentry.SpanStatusResourceExhausted,
	http.StatusTooManyRequests:       sentry.SpanStatusResourceExhausted,
	http.StatusNotImplemented:        sentry.SpanStatusUnimplemented,
	http.StatusBadGateway:            sentry.SpanStatusUnavailable,
	http.StatusServiceUnavailable:    sentry.SpanStatusUnavailable,
	http.StatusGatewayTimeout:        sentry.SpanStatusDeadlineExceeded,
}

// SentryMiddleware runs each request in its own transaction on a cloned hub,
// tagged with the request id and the knowledge base it targets. Panics are
// reported and re-raised; 5xx responses are captured as messages.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceRoute),
		}
		if trace := r.Header.Get("sentry-trace"); trace != "" {
			options = append(options, sentry.ContinueFromHeaders(trace, r.Header.Get("baggage")))
		}

		transaction := sentry.StartTransaction(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path), options...)
		defer transaction.Finish()

		r = r.WithContext(sentry.SetHubOnContext(transaction.Context(), hub))
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.Status()
		transaction.Name = fmt.Sprintf("%s %s", r.Method, routeOf(r))
		transaction.Status = httpStatusToSpanStatus(status)
		transaction.SetData("http.response.status_code", status)
		if kb := knowledgeBaseOf(r); kb != "" {
			transaction.SetTag("knowledge_base", kb)
			hub.Scope().SetTag("knowledge_base", kb)
		}

		if status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d on %s", status, transaction.Name))
		}
	})
}

func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	if s, ok := spanStatus[status]; ok {
		return s
	}
	switch {
	case status < 400:
		return sentry.SpanStatusOK
	case status < 500:
		return sentry.SpanStatusInvalidArgument
	default:
		return sentry.SpanStatusInternalError
	}
}
