// Package apierr defines the uniform error taxonomy for outbound API calls
// and the classifier that maps raw provider failures onto it.
//
// Providers disagree wildly about how they report failure: Google Drive puts
// machine codes like "userRateLimitExceeded" inside a 403 envelope, Azure AD
// returns OAuth codes like "invalid_grant" with a 400, and Anthropic uses
// typed errors such as "overloaded_error". The Classifier consults a fixed
// (status, code) table first and falls back to generic status-class rules, so
// callers only ever see an *Error with a Kind, a retryability verdict and an
// optional server-suggested retry delay.
//
// # Usage
//
//	c := apierr.NewClassifier()
//	e := c.Classify(apierr.Raw{
//	    Status:  429,
//	    Headers: map[string]string{"Retry-After": "120"},
//	})
//	// e.Kind == apierr.KindQuota, e.Retryable == true, e.RetryAfter == 2m
package apierr
