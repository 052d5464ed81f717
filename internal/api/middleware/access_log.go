package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// accessLogEntry is one JSON log line. Questions are logged by length only.
type accessLogEntry struct {
	Method        string `json:"method"`
	Route         string `json:"route"`
	Status        int    `json:"status"`
	Bytes         int    `json:"bytes"`
	DurationMS    int64  `json:"duration_ms"`
	RequestID     string `json:"request_id,omitempty"`
	KnowledgeBase string `json:"kb,omitempty"`
	QuestionChars int    `json:"question_chars,omitempty"`
	Auth          bool   `json:"auth,omitempty"`
	RemoteAddr    string `json:"remote_addr,omitempty"`
}

// authFlag is set by BearerAuth, which runs inside AccessLog.
type authFlag struct{ ok bool }

const authFlagKey contextKey = "access_log_auth"

func markAuthenticated(ctx context.Context) {
	if flag, ok := ctx.Value(authFlagKey).(*authFlag); ok {
		flag.ok = true
	}
}

// AccessLog writes one JSON line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		flag := &authFlag{}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), authFlagKey, flag)))

		payload, err := json.Marshal(newAccessLogEntry(r, rec, flag.ok, time.Since(start)))
		if err != nil {
			log.Printf("access_log_marshal_error: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

func newAccessLogEntry(r *http.Request, rec *statusRecorder, authenticated bool, elapsed time.Duration) accessLogEntry {
	return accessLogEntry{
		Method:        r.Method,
		Route:         routeOf(r),
		Status:        rec.Status(),
		Bytes:         rec.bytes,
		DurationMS:    elapsed.Milliseconds(),
		RequestID:     GetRequestID(r.Context()),
		KnowledgeBase: knowledgeBaseOf(r),
		QuestionChars: utf8.RuneCountInString(strings.TrimSpace(r.URL.Query().Get("question"))),
		Auth:          authenticated,
		RemoteAddr:    clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
