package wanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

func (cr *Credentials) validate() error {
	var missing []string
	if cr.URL == "" {
		missing = append(missing, "url")
	}
	if cr.Username == "" {
		missing = append(missing, "username")
	}
	if cr.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return errors.NewValidationError("credentials miss: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// bearerToken returns the token to send, fetching a new one from the
// session endpoint when credentials are configured and the cached token
// is missing or expired.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.accessKey != "" || c.credentials == nil {
		return c.accessKey, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.tokenExpiry.IsZero() || c.clock.Now().Before(c.tokenExpiry)) {
		return c.token, nil
	}

	token, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenExpiry = tokenExpiry(token)
	return token, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	sessionURL := strings.TrimSuffix(c.credentials.URL, "/") + SessionPath
	form := url.Values{}
	form.Set("username", c.credentials.Username)
	form.Set("password", c.credentials.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.NewConnectionError(fmt.Sprintf("could not build session request for %q", sessionURL), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debugf("POST REQUEST\n\tURL: %s\n\tusername: %s", sessionURL, c.credentials.Username)
	resp, err := c.do(req)
	if err != nil {
		c.logger.Debugf("POST %s failed: %v", sessionURL, err)
		return "", errors.NewConnectionError(fmt.Sprintf("error connecting to %q", sessionURL), err)
	}
	c.logger.Debugf("POST RESPONSE\n\tURL: %s\n\thttp status: %d", sessionURL, resp.StatusCode)

	if !resp.OK() {
		return "", errors.NewAuthError(
			fmt.Sprintf("could not authenticate against Trento: status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))), nil)
	}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &session); err != nil {
		return "", errors.NewAuthError("could not retrieve access key from Trento", err)
	}
	if session.AccessToken == "" {
		return "", errors.NewAuthError("could not retrieve access key from Trento: no access_token in response", nil)
	}
	return session.AccessToken, nil
}

// tokenExpiry reads the exp claim without verifying the signature.
// Opaque tokens and tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
