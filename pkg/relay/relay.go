package relay

import (
	"io"
	"net/http"
)

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
}

// writeBuffered reads the whole upstream body and emits a single response
// with the upstream status, upstream content type and CORS headers. The
// relayed body is returned so error paths can log a snippet of it.
func writeBuffered(w http.ResponseWriter, resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	setCORSHeaders(w.Header())
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, err = w.Write(body)
	return body, err
}

// snippet trims a body for log lines.
func snippet(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// writeStream relays the upstream body chunk by chunk as server-sent events.
// Each chunk is copied exactly once and flushed immediately; a write error
// (caller gone) stops the copy, and closing resp.Body releases the upstream
// connection. Backpressure from the caller throttles the upstream read.
func writeStream(w http.ResponseWriter, resp *http.Response) (int64, error) {
	setCORSHeaders(w.Header())
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
