package restapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/satori/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

const (
	requestTimeout = 30 * time.Second

	// access log keeps only the head of large bodies, i.e. raw recipient text
	maxLoggedBody = 4096

	campaignPrefix = "/api/v1/campaign/"
)

// toSimpleMap flattens multi value header for access log.
func toSimpleMap(h http.Header) map[string]string {
	out := map[string]string{}
	for k, v := range h {
		out[k] = strings.Join(v, " ")
	}

	return out
}

// logBody returns the json object when body is json, otherwise the (truncated) text.
func logBody(body []byte) (obj interface{}, str string, err error) {
	if len(body) == 0 {
		return nil, "", nil
	}

	if len(body) > maxLoggedBody {
		return nil, fmt.Sprintf("%s... (%d bytes)", body[:maxLoggedBody], len(body)), nil
	}

	if err = json.Unmarshal(body, &obj); err != nil {
		return nil, string(body), fmt.Errorf("body is not json: %w", err)
	}

	return obj, "", nil
}

// readRequestBody drains the body and puts a replayable copy back into the request.
func readRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	closeErr := r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, multierr.Combine(err, closeErr)
}

// withTracer injects log and response tracer sharing the same trace id.
func withTracer(ctx context.Context, r *http.Request) (context.Context, error) {
	traceID := uuid.NewV4().String()

	logTracer, err := ylog.NewTracer(tracer.LogData{
		RemoteAddr: r.RemoteAddr,
		TraceID:    traceID,
	}, ylog.WithTag("tracer"))
	if err != nil {
		err = fmt.Errorf("error prepare log tracer data: %w", err)
	}

	ctx = ylog.Inject(ctx, logTracer)
	ctx = respbuilder.Inject(ctx, respbuilder.Tracer{
		RemoteAddr: r.RemoteAddr,
		AppTraceID: traceID,
	})

	return ctx, err
}

func requestLogger(skipFunc func(r *http.Request) bool, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if skipFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now().UTC()

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		var logErr error
		ctx, err := withTracer(ctx, r)
		logErr = multierr.Append(logErr, err)
		r = r.WithContext(ctx)

		reqBody, err := readRequestBody(r)
		if err != nil {
			logErr = multierr.Append(logErr, fmt.Errorf("error read request body: %w", err))
		}

		// handler writes into recorder so the response can be logged before it is flushed
		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, r)

		respBody := rec.Body.Bytes()
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}

		w.WriteHeader(rec.Code)
		if _, err = w.Write(respBody); err != nil {
			logErr = multierr.Append(logErr, fmt.Errorf("error write response body: %w", err))
		}

		reqObj, reqStr, err := logBody(reqBody)
		logErr = multierr.Append(logErr, err)
		respObj, respStr, err := logBody(respBody)
		logErr = multierr.Append(logErr, err)

		errStr := ""
		if logErr != nil {
			errStr = logErr.Error()
		}

		elapsed := time.Since(start)
		ylog.Access(ctx, ylog.AccessLogData{
			Path: r.Method + " " + r.RequestURI,
			Request: ylog.HTTPData{
				Header:     toSimpleMap(r.Header),
				DataObject: reqObj,
				DataString: reqStr,
			},
			Response: ylog.HTTPData{
				Header:     toSimpleMap(rec.Header()),
				DataObject: respObj,
				DataString: respStr,
			},
			Error:       errStr,
			ElapsedTime: elapsed.Milliseconds(),
		})

		// start and stop get their own line
		if strings.HasPrefix(r.URL.Path, campaignPrefix) && r.Method != http.MethodGet {
			ylog.Info(ctx, "campaign control",
				ylog.KV("action", strings.TrimPrefix(r.URL.Path, campaignPrefix)),
				ylog.KV("status", rec.Code),
				ylog.KV("remote_addr", r.RemoteAddr),
			)
		}

		if rec.Code >= http.StatusInternalServerError {
			ylog.Warn(ctx, "request failed",
				ylog.KV("path", r.URL.Path),
				ylog.KV("status", rec.Code),
				ylog.KV("elapsed_ms", elapsed.Milliseconds()),
			)
		}
	}
}
