package ostrom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/icodeforyou/ostrom-go/metrics"
	"github.com/icodeforyou/ostrom-go/types"
)

const (
	requestTimeout      = 10 * time.Second
	tokenExpirySkew     = 120 * time.Second
	defaultTokenExpires = 3600

	resourceToken       = "/oauth2/token"
	resourceMe          = "/me"
	resourceContracts   = "/contracts"
	resourceConsumption = "/contracts/%s/energy-consumption"
	resourceSpotPrices  = "/spot-prices"

	// isoLayout matches what the API expects for startDate and endDate.
	isoLayout = "2006-01-02T15:04:05-07:00"
)

type Resolution string

const (
	ResolutionHour  Resolution = "HOUR"
	ResolutionDay   Resolution = "DAY"
	ResolutionMonth Resolution = "MONTH"
)

// Endpoints are the base URLs of the authentication and the data server.
type Endpoints struct {
	Auth string
	Data string
}

var (
	ProductionEndpoints = Endpoints{
		Auth: "https://auth.production.ostrom-api.io",
		Data: "https://production.ostrom-api.io",
	}
	SandboxEndpoints = Endpoints{
		Auth: "https://auth.sandbox.ostrom-api.io",
		Data: "https://sandbox.ostrom-api.io",
	}
)

// EndpointsFor returns the preset for "production" or "sandbox".
func EndpointsFor(environment string) (Endpoints, error) {
	switch strings.ToLower(environment) {
	case "", "production":
		return ProductionEndpoints, nil
	case "sandbox":
		return SandboxEndpoints, nil
	}
	return Endpoints{}, fmt.Errorf("unknown ostrom environment %q", environment)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int   `json:"expires_in"`
}

// Client talks to the Ostrom API using the OAuth2 client credentials flow.
// It is safe for concurrent use.
type Client struct {
	logger      *slog.Logger
	credentials string
	endpoints   Endpoints
	httpClient  *http.Client
	now         func() time.Time

	refreshMu sync.Mutex
	mu        sync.RWMutex
	token     string
	expiry    time.Time
}

func NewClient(clientID, clientSecret string, endpoints Endpoints) *Client {
	return &Client{
		logger:      slog.Default().With("module", "ostrom"),
		credentials: basicAuth(clientID, clientSecret),
		endpoints:   endpoints,
		httpClient:  &http.Client{Timeout: requestTimeout},
		now:         time.Now,
	}
}

func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Token returns a valid access token, refreshing it when it is about to expire.
// Concurrent callers share one refresh.
func (c *Client) Token(ctx context.Context, force bool) (string, error) {
	if token, ok := c.validToken(); ok && !force {
		return token, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if token, ok := c.validToken(); ok && !force {
		return token, nil
	}

	c.mu.RLock()
	previous, previousExpiry := c.token, c.expiry
	c.mu.RUnlock()

	token, expiry, err := c.requestToken(ctx)
	if err != nil {
		if previous != "" && c.now().Before(previousExpiry) {
			c.logger.Warn("token refresh failed, using cached token", slog.Any("error", err))
			return previous, nil
		}
		c.Invalidate()
		return "", err
	}

	c.mu.Lock()
	c.token, c.expiry = token, expiry
	c.mu.Unlock()
	c.logger.Debug("access token refreshed", slog.Time("expiry", expiry))
	return token, nil
}

// Invalidate drops the cached token.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token, c.expiry = "", time.Time{}
	c.mu.Unlock()
}

// invalidateIf drops the cached token only while it is still rejected, a
// token refreshed by a concurrent caller is kept.
func (c *Client) invalidateIf(rejected string) {
	c.mu.Lock()
	if c.token == rejected {
		c.token, c.expiry = "", time.Time{}
	}
	c.mu.Unlock()
}

func (c *Client) validToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || c.expiry.IsZero() {
		return "", false
	}
	return c.token, c.now().Add(tokenExpirySkew).Before(c.expiry)
}

func (c *Client) requestToken(ctx context.Context) (string, time.Time, error) {
	endpoint := c.endpoints.Auth + resourceToken
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, &APIError{Endpoint: resourceToken, Message: "token request failed", Err: err}
	}
	defer res.Body.Close()

	if err := checkStatus(res, resourceToken); err != nil {
		return "", time.Time{}, err
	}

	var body tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", time.Time{}, &APIError{StatusCode: res.StatusCode, Endpoint: resourceToken, Message: "invalid token response", Err: err}
	}
	if body.AccessToken == "" {
		return "", time.Time{}, &APIError{StatusCode: res.StatusCode, Endpoint: resourceToken, Message: "token response without access_token"}
	}

	expiresIn := defaultTokenExpires
	if body.ExpiresIn != nil {
		expiresIn = *body.ExpiresIn
	}
	return body.AccessToken, c.now().Add(time.Duration(expiresIn) * time.Second), nil
}

// get performs an authenticated GET. A 401 invalidates the rejected token and
// the request is retried once with a fresh one.
func (c *Client) get(ctx context.Context, resource string, query url.Values) (Document, error) {
	token, err := c.Token(ctx, false)
	if err != nil {
		return nil, err
	}

	res, err := c.send(ctx, resource, query, token)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		res.Body.Close()
		c.logger.Info("request unauthorized, refreshing token", slog.String("endpoint", resource))
		c.invalidateIf(token)
		if token, err = c.Token(ctx, false); err != nil {
			return nil, err
		}
		if res, err = c.send(ctx, resource, query, token); err != nil {
			return nil, err
		}
	}
	defer res.Body.Close()

	if err := checkStatus(res, resource); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &APIError{StatusCode: res.StatusCode, Endpoint: resource, Message: "failed to decode response", Err: err}
	}
	return doc, nil
}

func (c *Client) send(ctx context.Context, resource string, query url.Values, token string) (*http.Response, error) {
	u := c.endpoints.Data + resource
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: resource, Message: "request failed", Err: err}
	}
	return res, nil
}

func (c *Client) GetUser(ctx context.Context) (types.User, error) {
	doc, err := c.get(ctx, resourceMe, nil)
	if err != nil {
		return types.User{}, err
	}
	user, err := ParseUser(doc)
	if err != nil {
		return types.User{}, fmt.Errorf("invalid user response: %w", err)
	}
	return user, nil
}

func (c *Client) GetContracts(ctx context.Context) ([]types.Contract, error) {
	doc, err := c.get(ctx, resourceContracts, nil)
	if err != nil {
		return nil, err
	}
	if _, ok := doc["data"]; !ok {
		return nil, &APIError{StatusCode: http.StatusOK, Endpoint: resourceContracts, Message: "response without data"}
	}
	contracts, rejected := ParseContracts(doc)
	c.logRejected(resourceContracts, rejected)
	return contracts, nil
}

func (c *Client) GetConsumption(ctx context.Context, contractID string, start, end time.Time, resolution Resolution) ([]types.Consumption, error) {
	resource := fmt.Sprintf(resourceConsumption, url.PathEscape(contractID))
	doc, err := c.get(ctx, resource, intervalQuery(start, end, resolution))
	if err != nil {
		return nil, err
	}
	consumptions, rejected := ParseConsumptions(doc)
	c.logRejected(resource, rejected)
	return consumptions, nil
}

func (c *Client) GetSpotPrices(ctx context.Context, zip string, start, end time.Time, resolution Resolution) ([]types.SpotPrice, error) {
	query := intervalQuery(start, end, resolution)
	query.Set("zip", zip)
	doc, err := c.get(ctx, resourceSpotPrices, query)
	if err != nil {
		return nil, err
	}
	prices, rejected := ParseSpotPrices(doc)
	c.logRejected(resourceSpotPrices, rejected)
	return prices, nil
}

func (c *Client) logRejected(resource string, rejected []Rejected) {
	if len(rejected) > 0 {
		metrics.RecordsRejectedTotal.WithLabelValues(resource).Add(float64(len(rejected)))
	}
	for _, r := range rejected {
		c.logger.Warn("skipping invalid record",
			slog.String("endpoint", resource),
			slog.Int("index", r.Index),
			slog.Any("error", r.Err))
	}
}

func intervalQuery(start, end time.Time, resolution Resolution) url.Values {
	return url.Values{
		"startDate":  {start.UTC().Truncate(time.Hour).Format(isoLayout)},
		"endDate":    {end.UTC().Truncate(time.Hour).Format(isoLayout)},
		"resolution": {string(resolution)},
	}
}

func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

func checkStatus(res *http.Response, resource string) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = res.Status
	}
	return &APIError{StatusCode: res.StatusCode, Endpoint: resource, Message: msg}
}
