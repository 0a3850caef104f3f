package sandbox

import (
	"bytes"
	"compress/gzip"
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"github.com/nimburion/providerdesk/pkg/observability/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// requestID preserves an incoming X-Request-ID or generates one, echoes it
// and stores it on the request context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// recoverer turns a handler panic into a 500 JSON response.
func recoverer(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithContext(r.Context()).Error("panic recovered",
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.size += n
	return n, err
}

// accessLog writes one entry per request.
func accessLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithContext(r.Context())
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.size,
				"duration_ms", time.Since(started).Milliseconds(),
			}
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("request completed", args...)
			case status >= http.StatusBadRequest:
				entry.Warn("request completed", args...)
			default:
				entry.Info("request completed", args...)
			}
		})
	}
}

// bearer requires "Authorization: Bearer <token>" when token is set.
func bearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") ||
				subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sandbox"`)
				writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bufferedWriter holds the whole response so compress can decide on the
// final content type and size.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// compress encodes JSON and text responses with brotli or gzip, preferring
// the encoding with the higher Accept-Encoding quality and brotli on ties.
func compress(minSize int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedWriter{header: w.Header()}
			next.ServeHTTP(buf, r)
			if buf.status == 0 {
				buf.status = http.StatusOK
			}

			w.Header().Add("Vary", "Accept-Encoding")
			if buf.body.Len() < minSize || !compressible(w.Header().Get("Content-Type")) ||
				w.Header().Get("Content-Encoding") != "" {
				w.WriteHeader(buf.status)
				_, _ = w.Write(buf.body.Bytes())
				return
			}

			var out bytes.Buffer
			switch encoding {
			case encodingBrotli:
				bw := brotli.NewWriterLevel(&out, 4)
				_, _ = bw.Write(buf.body.Bytes())
				_ = bw.Close()
			default:
				gw := gzip.NewWriter(&out)
				_, _ = gw.Write(buf.body.Bytes())
				_ = gw.Close()
			}
			w.Header().Set("Content-Encoding", encoding)
			w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
			w.WriteHeader(buf.status)
			_, _ = w.Write(out.Bytes())
		})
	}
}

func compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/")
}

func negotiateEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	qBr, hasBr := qualityFor(acceptEncoding, encodingBrotli)
	qGzip, hasGzip := qualityFor(acceptEncoding, encodingGzip)
	if qAny, hasAny := qualityFor(acceptEncoding, "*"); hasAny {
		if !hasBr {
			qBr, hasBr = qAny, true
		}
		if !hasGzip {
			qGzip, hasGzip = qAny, true
		}
	}

	best, bestQ := "", 0.0
	if hasBr && qBr > 0 {
		best, bestQ = encodingBrotli, qBr
	}
	if hasGzip && qGzip > bestQ {
		best = encodingGzip
	}
	return best
}

func qualityFor(acceptEncoding, encoding string) (float64, bool) {
	for _, part := range strings.Split(acceptEncoding, ",") {
		sections := strings.Split(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(sections[0]), encoding) {
			continue
		}
		q := 1.0
		for _, section := range sections[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(section), "=")
			if !ok || !strings.EqualFold(key, "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(value, 64); err == nil {
				q = parsed
			}
		}
		return q, true
	}
	return 0, false
}
