package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"contact-intake/internal/cors"
	"contact-intake/internal/domain"
	"contact-intake/internal/logging"
	"contact-intake/internal/usecase"
)

const (
	ContactPath     = "/api/v1/contact-us/"
	HealthCheckPath = "/api/v1/health-check/"

	headerCorrelationID = "X-Correlation-Id"
	headerClientIP      = "CF-Connecting-IP"
	headerOrigin        = "Origin"
	unknownClientIP     = "unknown"
)

// Messages returned to callers. Diagnostics stay in the logs.
const (
	msgSuccess          = "success"
	msgForbidden        = "Forbidden"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Internal Server Error"
	msgVerification     = "Request validation failed"
	msgSaveFailed       = "Failed to save message"
	msgNotFound         = "Not Found"
	msgMethodNotAllowed = "Method Not Allowed"
)

type Submitter interface {
	Submit(ctx context.Context, in usecase.SubmitInput) error
}

type Handler struct {
	submitter Submitter
	policy    *cors.Policy

	// trustCFConnectingIP is set only when a Cloudflare proxy in front of
	// the gateway overwrites CF-Connecting-IP.
	trustCFConnectingIP bool
}

type Option func(*Handler)

// WithTrustedCFConnectingIP makes the CF-Connecting-IP header take precedence
// over the gateway source IP.
func WithTrustedCFConnectingIP(trust bool) Option {
	return func(h *Handler) {
		h.trustCFConnectingIP = trust
	}
}

// envelope is the body of every JSON response.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// submitRequest is the POST body. Required keys are pointers so a missing key
// can be told apart from an empty string.
type submitRequest struct {
	Token    *string           `json:"token"`
	Category *string           `json:"category"`
	Email    *string           `json:"email"`
	Name     *string           `json:"name"`
	Message  *string           `json:"message"`
	Data     map[string]string `json:"data"`
}

func NewHandler(s Submitter, policy *cors.Policy, opts ...Option) (*Handler, error) {
	if s == nil {
		return nil, errors.New("handler: submitter must not be nil")
	}
	if policy == nil {
		policy = cors.NewPolicy(nil)
	}
	h := &Handler{submitter: s, policy: policy}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes an API Gateway proxy event. Every outcome, failures included,
// is reported through the response, so the returned error is always nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	slog.InfoContext(ctx, "handling request", "method", req.HTTPMethod, "path", req.Path)

	var resp events.APIGatewayProxyResponse
	switch normalizePath(req.Path) {
	case ContactPath:
		switch req.HTTPMethod {
		case http.MethodPost:
			resp = h.submit(ctx, req)
		case http.MethodOptions:
			resp = h.preflight(req)
		default:
			resp = failure(http.StatusMethodNotAllowed, msgMethodNotAllowed)
		}
	case HealthCheckPath:
		if req.HTTPMethod == http.MethodGet {
			resp = success()
		} else {
			resp = failure(http.StatusMethodNotAllowed, msgMethodNotAllowed)
		}
	default:
		resp = failure(http.StatusNotFound, msgNotFound)
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[headerCorrelationID] = correlationID
	return resp, nil
}

func (h *Handler) submit(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	origin := headerValue(req, headerOrigin)
	if !h.policy.IsAllowed(origin) {
		slog.WarnContext(ctx, "blocked origin", "origin", origin)
		return h.decorate(failure(http.StatusForbidden, msgForbidden), origin)
	}

	in, err := decodeSubmitRequest(req)
	if err != nil {
		slog.WarnContext(ctx, "failed to parse request body", "err", err)
		return h.decorate(failure(http.StatusBadRequest, msgInvalidBody), origin)
	}
	in.ClientIP = h.clientIP(req)

	if err := h.submitter.Submit(ctx, in); err != nil {
		status, message := mapError(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "contact submission failed", "status", status, "err", err)
		} else {
			slog.WarnContext(ctx, "contact submission rejected", "status", status, "err", err)
		}
		return h.decorate(failure(status, message), origin)
	}

	slog.InfoContext(ctx, "contact message created")
	return h.decorate(success(), origin)
}

func (h *Handler) preflight(req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    h.policy.Preflight(headerValue(req, headerOrigin)),
	}
}

func (h *Handler) decorate(resp events.APIGatewayProxyResponse, origin string) events.APIGatewayProxyResponse {
	h.policy.Decorate(resp.Headers, origin)
	return resp
}

func mapError(err error) (int, string) {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, msgInternal
	}
	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, validationMessage(err)
	case usecase.ErrorUnauthorised:
		return http.StatusUnauthorized, msgVerification
	default:
		if usecaseErr.Reason == usecase.ReasonStoreWrite {
			return http.StatusInternalServerError, msgSaveFailed
		}
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage returns the caller-safe reason behind a validation error.
func validationMessage(err error) string {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) && vErr.Reason != "" {
		return vErr.Reason
	}
	return msgInvalidBody
}

func decodeSubmitRequest(req events.APIGatewayProxyRequest) (usecase.SubmitInput, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return usecase.SubmitInput{}, fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	}

	var sr submitRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&sr); err != nil {
		return usecase.SubmitInput{}, fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return usecase.SubmitInput{}, errors.New("decode body: trailing data")
	}

	var missing []string
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"token", sr.Token},
		{"category", sr.Category},
		{"email", sr.Email},
		{"name", sr.Name},
		{"message", sr.Message},
	} {
		if f.val == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return usecase.SubmitInput{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	return usecase.SubmitInput{
		Token:    *sr.Token,
		Category: *sr.Category,
		Email:    *sr.Email,
		Name:     *sr.Name,
		Message:  *sr.Message,
		Data:     sr.Data,
	}, nil
}

// clientIP returns the address forwarded to the verifier. CF-Connecting-IP is
// caller-controlled unless a Cloudflare proxy sets it, so it is only read
// when trusted.
func (h *Handler) clientIP(req events.APIGatewayProxyRequest) string {
	if h.trustCFConnectingIP {
		if ip := strings.TrimSpace(headerValue(req, headerClientIP)); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(req.RequestContext.Identity.SourceIP); ip != "" {
		return ip
	}
	return unknownClientIP
}

// headerValue looks a header up case-insensitively in both header maps.
func headerValue(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, vs := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

func normalizePath(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

func success() events.APIGatewayProxyResponse {
	return jsonResponse(envelope{Status: http.StatusOK, Message: msgSuccess, Data: true})
}

func failure(status int, message string) events.APIGatewayProxyResponse {
	return jsonResponse(envelope{Status: status, Message: message})
}

func jsonResponse(body envelope) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		// envelope only holds strings, ints and bools.
		buf = []byte(`{"status":500,"message":"Internal Server Error"}`)
		body.Status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: body.Status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(buf),
	}
}
