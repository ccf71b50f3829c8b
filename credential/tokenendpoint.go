package credential

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/driftworks/apiward/apierr"
	"github.com/driftworks/apiward/secret"
	"github.com/driftworks/apiward/token"
)

// classifier maps token endpoint failures onto the taxonomy. The default
// table already carries the OAuth error codes, so one shared instance
// serves every provider.
var classifier = apierr.NewClassifier()

const defaultTimeout = 10 * time.Second

// tokenResponse is the RFC 6749 token endpoint success body. ExpiresIn
// is a json.Number because Azure IMDS returns it as a string.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
	ExpiresOn    json.Number `json:"expires_on"`
	RefreshToken string      `json:"refresh_token"`
	Scope        string      `json:"scope"`
}

// tokenErrorBody is the RFC 6749 token endpoint error body.
type tokenErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// toToken converts a parsed response into the engine's token form.
// Scopes defaults to the requested set when the server echoed nothing.
func (r *tokenResponse) toToken(requested []string, now time.Time) (*token.Token, error) {
	if r.AccessToken == "" {
		return nil, apierr.New(apierr.KindResponse, apierr.CodeDeserialization, false,
			"token endpoint returned no access_token")
	}

	scopes := requested
	if r.Scope != "" {
		scopes = strings.Fields(r.Scope)
	}

	t := &token.Token{
		Value:  secret.New(r.AccessToken),
		Type:   r.TokenType,
		Scopes: scopes,
	}
	if r.RefreshToken != "" {
		t.RefreshSecret = secret.New(r.RefreshToken)
	}

	// expires_on is an absolute epoch; expires_in is relative. Prefer
	// the absolute form when both are present.
	if on, err := r.ExpiresOn.Int64(); err == nil && on > 0 {
		t.ExpiresAt = time.Unix(on, 0)
	} else if in, err := r.ExpiresIn.Int64(); err == nil && in > 0 {
		t.ExpiresAt = now.Add(time.Duration(in) * time.Second)
	}
	return t, nil
}

// postForm performs a token endpoint request and returns the issued
// token or a classified error.
func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, requested []string) (*token.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierr.New(apierr.KindConfiguration, apierr.CodeInvalidRequest,
			false, "build token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyErrorBody(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, apierr.New(apierr.KindResponse, apierr.CodeDeserialization, false,
			"decode token response: %v", err)
	}
	return tr.toToken(requested, time.Now())
}

// classifyErrorBody maps a token endpoint error response to a classified
// error. Refresh endpoints are authentication infrastructure, so
// unrecognized 4xx codes surface as refresh failures rather than
// generic request errors.
func classifyErrorBody(status int, body []byte) *apierr.Error {
	var eb tokenErrorBody
	_ = json.Unmarshal(body, &eb)

	return asRefreshFailure(classifier.Classify(apierr.Raw{
		Status:     status,
		ServerCode: eb.Error,
		Message:    eb.ErrorDescription,
	}))
}

// asRefreshFailure remaps generic request errors from a token endpoint
// onto the refresh-failure code. Classified errors are immutable, so the
// remap works on a copy.
func asRefreshFailure(ce *apierr.Error) *apierr.Error {
	if ce.Kind != apierr.KindRequest {
		return ce
	}
	remapped := *ce
	remapped.Kind = apierr.KindAuthentication
	remapped.Code = apierr.CodeRefreshFailed
	return &remapped
}

// classifyTransport maps wire errors from the token endpoint.
func classifyTransport(err error) *apierr.Error {
	return classifier.Classify(apierr.Raw{
		Transport: apierr.TransportKindOf(err),
		Message:   err.Error(),
	})
}

// classifyOAuth2Error maps failures from the x/oauth2 token sources,
// which wrap the endpoint's status and error code in a RetrieveError.
func classifyOAuth2Error(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if re.ErrorCode != "" || status != 0 {
			return asRefreshFailure(classifier.Classify(apierr.Raw{
				Status:     status,
				ServerCode: re.ErrorCode,
				Message:    re.ErrorDescription,
			}))
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return classifyTransport(err)
}

// withHTTPClient routes x/oauth2 through the configured client.
func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
