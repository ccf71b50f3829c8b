package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/token"
)

// Response is the transport-level result of one attempt.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// TransportFunc performs one wire attempt. The authorization header value
// is empty when no token manager is configured. Implementations return an
// error only for failures below HTTP; an HTTP error status is a Response.
type TransportFunc func(ctx context.Context, authHeader string) (*Response, error)

// Request describes one logical API call.
type Request struct {
	// Service and Operation name the call for hooks and health reporting.
	Service   string
	Operation string

	// Key and Scopes select the credential. Ignored when the
	// orchestrator has no token manager.
	Key    token.Key
	Scopes []string

	// CorrelationID is attached to every classified error the call
	// produces.
	CorrelationID string

	// Do performs the wire attempt.
	Do TransportFunc
}

// ErrorDecoder extracts the machine error code and message from an error
// response body. It returns ok=false when the response is not an error,
// which lets provider-specific decoders flag error envelopes carried in
// 200 responses.
type ErrorDecoder func(resp *Response) (serverCode, message string, ok bool)

// OrchestratorConfig configures the orchestrator. All resilience layers
// are optional; a zero config degrades to classify-and-retry.
type OrchestratorConfig struct {
	// Breaker short-circuits calls when the upstream is unhealthy.
	Breaker *CircuitBreaker

	// Limiter gates admission before each attempt.
	Limiter *Limiter

	// Tokens supplies the authorization header per attempt, so a retry
	// after a refresh always carries the fresh token.
	Tokens *token.Manager

	// Retry drives the attempt loop.
	// Default: NewExecutor(Policy{}).
	Retry *Executor

	// Classifier maps failures onto the error taxonomy.
	// Default: apierr.NewClassifier().
	Classifier *apierr.Classifier

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration

	// DecodeError recognizes error responses.
	// Default: DefaultErrorDecoder.
	DecodeError ErrorDecoder

	// OnResult is called after every attempt with the classified error,
	// or nil on success. Used for observability; must not block.
	OnResult func(req Request, status int, err *apierr.Error)
}

// Orchestrator composes the resilience layers around a transport in a
// fixed order: circuit check, then per attempt admission, token,
// transport, classification, breaker recording, retry decision.
type Orchestrator struct {
	config OrchestratorConfig
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(config OrchestratorConfig) *Orchestrator {
	// Apply defaults
	if config.Retry == nil {
		config.Retry = NewExecutor(Policy{})
	}
	if config.Classifier == nil {
		config.Classifier = apierr.NewClassifier()
	}
	if config.DecodeError == nil {
		config.DecodeError = DefaultErrorDecoder
	}
	return &Orchestrator{config: config}
}

// Execute runs the request through the full resilience stack. On failure
// the returned error is the classified error of the last attempt, except
// for circuit rejection (ErrCircuitOpen) and context errors, which are
// returned as-is.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Do == nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest, false,
			"request has no transport")
	}

	// The circuit is consulted once per logical call. Retries of a call
	// that was admitted may proceed even if their own failures open the
	// circuit mid-loop; the next call sees the open state.
	if o.config.Breaker != nil {
		if err := o.config.Breaker.Allow(); err != nil {
			return nil, err
		}
	}

	var resp *Response
	err := o.config.Retry.Execute(ctx, func(ctx context.Context) error {
		r, err := o.attempt(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one admission-token-transport-classify cycle.
func (o *Orchestrator) attempt(ctx context.Context, req Request) (*Response, error) {
	if o.config.Limiter != nil {
		permit, err := o.config.Limiter.Acquire(ctx)
		if err != nil {
			return nil, o.admissionError(req, err)
		}
		defer permit.Release()
	}

	authHeader := ""
	if o.config.Tokens != nil {
		tok, err := o.config.Tokens.Token(ctx, req.Key, req.Scopes)
		if err != nil {
			// Token refresh talks to a different upstream than the
			// request itself, so its failures do not feed the breaker.
			return nil, o.finish(req, 0, err)
		}
		authHeader = tok.AuthHeader()
	}

	var resp *Response
	err := WithAttemptTimeout(ctx, o.config.AttemptTimeout, func(ctx context.Context) error {
		var err error
		resp, err = req.Do(ctx, authHeader)
		return err
	})
	if err != nil {
		ce := o.classifyTransportErr(err)
		o.recordFailure(ce)
		return nil, o.finish(req, 0, ce)
	}

	// Server-reported quota state reconciles on every response, success
	// or failure, so local budgets track reality.
	if o.config.Limiter != nil {
		if info, ok := apierr.ParseRateLimitHeaders(resp.Headers, time.Now()); ok {
			o.config.Limiter.ReconcileHeaders(info)
		}
	}

	if code, msg, isErr := o.config.DecodeError(resp); isErr {
		ce := o.config.Classifier.Classify(apierr.Raw{
			Status:     resp.Status,
			ServerCode: code,
			Message:    msg,
			Headers:    resp.Headers,
		})
		o.recordFailure(ce)
		return nil, o.finish(req, resp.Status, ce)
	}

	if o.config.Breaker != nil {
		o.config.Breaker.RecordSuccess()
	}
	if o.config.OnResult != nil {
		o.config.OnResult(req, resp.Status, nil)
	}
	return resp, nil
}

// admissionError converts limiter failures into classified errors. The
// caller's own context ending passes through unchanged.
func (o *Orchestrator) admissionError(req Request, err error) error {
	switch {
	case errors.Is(err, ErrAcquireTimeout):
		ce := apierr.New(apierr.KindNetwork, apierr.CodeTimeout, true,
			"rate limit admission timed out")
		return o.finish(req, 0, ce)
	case errors.Is(err, ErrRateLimited):
		ce := apierr.New(apierr.KindQuota, apierr.CodeUserRateLimit, true,
			"local rate limit exhausted")
		return o.finish(req, 0, ce)
	default:
		return err
	}
}

// classifyTransportErr maps a wire error to a classified error, passing
// through errors that are already classified (including ErrTimeout from
// the attempt budget).
func (o *Orchestrator) classifyTransportErr(err error) *apierr.Error {
	if ce := apierr.FromError(err); ce != nil {
		return ce
	}
	if errors.Is(err, ErrTimeout) {
		return apierr.New(apierr.KindNetwork, apierr.CodeTimeout, true, "attempt timed out")
	}
	return o.config.Classifier.Classify(apierr.Raw{
		Transport: apierr.TransportKindOf(err),
		Message:   err.Error(),
	})
}

func (o *Orchestrator) recordFailure(ce *apierr.Error) {
	if o.config.Breaker != nil {
		o.config.Breaker.RecordFailure(ce)
	}
}

// finish stamps correlation and fires the result hook.
func (o *Orchestrator) finish(req Request, status int, err error) error {
	ce := apierr.FromError(err)
	if ce != nil && req.CorrelationID != "" {
		ce = ce.WithCorrelation(req.CorrelationID)
		err = ce
	}
	if o.config.OnResult != nil {
		o.config.OnResult(req, status, ce)
	}
	return err
}

// errorEnvelope matches the common provider error body shapes.
type errorEnvelope struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

type errorObject struct {
	Code    json.RawMessage `json:"code"`
	Type    string          `json:"type"`
	Reason  string          `json:"reason"`
	Message string          `json:"message"`
	Errors  []struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"errors"`
}

// DefaultErrorDecoder treats any status of 400 or above as an error and
// extracts the machine code from the common envelope shapes: the OAuth
// flat form, the nested object form with code/type/reason fields, and
// the detail-list form. Unparseable bodies fall back to status-only
// classification.
func DefaultErrorDecoder(resp *Response) (string, string, bool) {
	if resp.Status < 400 {
		return "", "", false
	}

	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || len(env.Error) == 0 {
		return "", "", true
	}

	// OAuth style: "error" is a bare string code.
	var flat string
	if json.Unmarshal(env.Error, &flat) == nil {
		return flat, env.ErrorDescription, true
	}

	var obj errorObject
	if json.Unmarshal(env.Error, &obj) != nil {
		return "", "", true
	}

	code := ""
	switch {
	case len(obj.Errors) > 0 && obj.Errors[0].Reason != "":
		code = obj.Errors[0].Reason
	case obj.Type != "":
		code = obj.Type
	case obj.Reason != "":
		code = obj.Reason
	default:
		// code may be a string; numeric codes duplicate the status.
		var s string
		if json.Unmarshal(obj.Code, &s) == nil {
			code = s
		}
	}

	msg := obj.Message
	if msg == "" && len(obj.Errors) > 0 {
		msg = obj.Errors[0].Message
	}
	return code, msg, true
}
