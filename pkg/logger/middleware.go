package logger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/screwyprof/airdrop/pkg/httpkit"
)

type annotationsKey struct{}

// annotations collects attributes handlers add to their request's log line
type annotations struct {
	attrs []slog.Attr
}

// Annotate adds attrs to the log line of the request served under ctx.
// Outside NewMiddleware it does nothing.
func Annotate(ctx context.Context, attrs ...slog.Attr) {
	if a, ok := ctx.Value(annotationsKey{}).(*annotations); ok {
		a.attrs = append(a.attrs, attrs...)
	}
}

// statusRecorder captures the status code and response size
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

// NewMiddleware logs one line per request: transport details, the calling
// account, whatever the handler annotated and the error it tracked
func NewMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			notes := &annotations{}
			ctx := context.WithValue(httpkit.WithErrorTracking(r.Context()), annotationsKey{}, notes)
			r = r.WithContext(ctx)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(started)),
				slog.Int("bytes_in", max(0, int(r.ContentLength))),
				slog.Int("bytes_out", rec.written),
			}
			if caller := r.Header.Get(httpkit.CallerHeader); caller != "" {
				attrs = append(attrs, slog.String("caller", caller))
			}
			attrs = append(attrs, notes.attrs...)
			if err := httpkit.Error(ctx); err != nil {
				attrs = append(attrs, slog.String("error", errorMessage(err)))
			}

			logger.LogAttrs(ctx, levelFor(rec.status), "HTTP", attrs...)
		})
	}
}

// levelFor escalates server faults to error and throttled callers to warn
func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// errorMessage prefers the detailed cause over the client-facing message
func errorMessage(err error) string {
	if httpErr, ok := err.(httpkit.HTTPError); ok {
		return httpErr.Cause().Error()
	}
	return err.Error()
}
