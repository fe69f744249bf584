package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/i18n"
)

// relayStream copies the backend response to the client chunk by chunk,
// preserving status code and content type. Chunks are flushed as they
// arrive; a client disconnect or upstream failure just ends the relay.
func relayStream(w http.ResponseWriter, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// genericForward relays a request that bypasses the intelligence pipeline
// to the backend as-is, streaming the response back.
func (h *Handler) genericForward(w http.ResponseWriter, r *http.Request, subpath string, body []byte, log *logrus.Entry) {
	targetURL := h.ai.BaseURL() + "/" + subpath
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}
	log.WithField("target", targetURL).Info("Generic forward")

	req, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)

	resp, err := h.forwardClient.Do(req)
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	relayStream(w, resp)
}

// forwardBuffered relays a non-streamed chat request and returns the
// backend's body fully buffered, as the client asked for.
func (h *Handler) forwardBuffered(w http.ResponseWriter, r *http.Request, subpath string, body []byte, log *logrus.Entry) {
	targetURL := h.ai.BaseURL() + "/" + subpath
	log.WithField("target", targetURL).Info("Non-streamed forward")

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)

	resp, err := h.forwardClient.Do(req)
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, log, ErrForwarding, h.msg(i18n.MsgForwardingError, err), http.StatusBadGateway)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(content)
}

// copyHeaders copies request headers, dropping hop-specific ones.
func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if http.CanonicalHeaderKey(key) == "Host" {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
