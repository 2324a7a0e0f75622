package bwt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	loginPath      = "/login"
	deviceDataPath = "/device/ajaxChart"
)

// Config holds the construction-time parameters of a Client. All
// fields are immutable for the life of the instance.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	DeviceKey string // vendor "receipt line key" binding the account to one unit
	Timeout   time.Duration
}

// Client maintains one authenticated session against the vendor
// endpoint and serves normalized device data on demand.
//
// A Client is not safe for concurrent use; the poller serializes calls
// per device, and the cookie set is only ever replaced wholesale by a
// successful login.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	authenticated bool
	cookies       []*http.Cookie
}

type chartResponse struct {
	Dataset *Dataset `json:"dataset"`
}

// NewClient creates a client for one device. It performs no network
// I/O; the first FetchData triggers the login.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Login submits the credentials as a form post and captures the
// session cookies. The vendor's login page answers 200 even on bad
// credentials; a session only counts as established when at least one
// cookie comes back.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("_username", c.cfg.Username)
	form.Set("_password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building login request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The login flow sets cookies on an intermediate redirect response,
	// so the request runs through a throwaway jar and the jar contents
	// become the new session afterwards.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("%w: creating cookie jar: %v", ErrTransport, err)
	}
	loginClient := &http.Client{
		Jar:       jar,
		Timeout:   c.httpClient.Timeout,
		Transport: c.httpClient.Transport,
	}

	resp, err := loginClient.Do(req)
	if err != nil {
		c.authenticated = false
		return fmt.Errorf("%w: login request: %v", ErrTransport, err)
	}
	drainBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.authenticated = false
		return fmt.Errorf("%w: login returned status %d", ErrAuthentication, resp.StatusCode)
	}

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		c.authenticated = false
		return fmt.Errorf("%w: parsing base URL: %v", ErrTransport, err)
	}

	cookies := jar.Cookies(base)
	if len(cookies) == 0 {
		c.authenticated = false
		return fmt.Errorf("%w: no cookies in login response", ErrAuthentication)
	}

	c.cookies = cookies
	c.authenticated = true
	c.logger.Info("logged in to vendor service",
		zap.String("device_key", c.cfg.DeviceKey),
		zap.Int("cookie_count", len(cookies)),
	)
	return nil
}

// FetchData retrieves and normalizes the device dataset. Session
// expiry is detected reactively: a non-200 data response triggers
// exactly one re-login and one retry, after which the failure is
// terminal for this cycle and the next scheduled poll starts over.
//
// A nil snapshot with a nil error means the device has no history yet.
func (c *Client) FetchData(ctx context.Context) (*DeviceSnapshot, error) {
	if !c.authenticated {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.getDeviceData(ctx)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		drainBody(resp)
		c.logger.Warn("data request rejected, re-authenticating",
			zap.Int("status", resp.StatusCode),
		)

		if err := c.Login(ctx); err != nil {
			return nil, err
		}

		resp, err = c.getDeviceData(ctx)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			drainBody(resp)
			c.authenticated = false
			return nil, fmt.Errorf("%w: device data returned status %d after re-login",
				ErrTransport, resp.StatusCode)
		}
	}
	defer resp.Body.Close()

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding device data: %v", ErrMalformedResponse, err)
	}
	if body.Dataset == nil {
		return nil, fmt.Errorf("%w: response has no dataset", ErrMalformedResponse)
	}

	return Normalize(body.Dataset), nil
}

func (c *Client) getDeviceData(ctx context.Context) (*http.Response, error) {
	dataURL := fmt.Sprintf("%s%s?receiptLineKey=%s",
		c.cfg.BaseURL, deviceDataPath, url.QueryEscape(c.cfg.DeviceKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building data request: %v", ErrTransport, err)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: data request: %v", ErrTransport, err)
	}
	return resp, nil
}

// Close releases the underlying connections. The client must not be
// used afterwards.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func drainBody(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
