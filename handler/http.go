package handler

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const (
	// maxPayloadBytes matches the API Gateway request payload limit so the
	// local server refuses what the deployed gateway would refuse.
	maxPayloadBytes = 10 << 20

	msgPayloadTooLarge = "Request Entity Too Large"
)

// ServeHTTP lets the Lambda handler run behind a plain net/http server by
// translating the request into an API Gateway proxy event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		writeResponse(w, failure(http.StatusBadRequest, msgInvalidBody))
		return
	}
	if len(body) > maxPayloadBytes {
		writeResponse(w, failure(http.StatusRequestEntityTooLarge, msgPayloadTooLarge))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		headers[k] = strings.Join(vs, ",")
	}

	event := events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		event.RequestContext.Identity.SourceIP = host
	}

	resp, err := h.Handle(r.Context(), event)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
