// Package nef is a small client for the appliance REST API. Requests that
// the appliance runs asynchronously answer 202 and reference a job, which
// jobs.Poller can wait for through Client's jobs.Transport methods.
package nef

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/jobs"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
)

const (
	DefaultPort    = 8443
	DefaultTimeout = 30 * time.Second
)

var validate = validator.New()

// Config holds the API endpoint and credentials. Username and Password are
// either both set or both empty.
type Config struct {
	URL                string        `yaml:"url" json:"url" validate:"required,url"`
	Port               int           `yaml:"port" json:"port" validate:"gte=0,lte=65535"`
	Username           string        `yaml:"username" json:"username" validate:"required_with=Password"`
	Password           string        `yaml:"password" json:"password" validate:"required_with=Username"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify" json:"insecureSkipVerify"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type asyncBody struct {
	Links []link `json:"links"`
}

type jobStatusBody struct {
	Data []struct {
		Progress float64 `json:"progress"`
		Done     bool    `json:"done"`
	} `json:"data"`
}

// Client talks to one appliance. It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker

	mu    sync.RWMutex
	token string
}

var _ jobs.Transport = (*Client)(nil)

// New validates cfg and, when credentials are present, logs in so bad
// credentials fail immediately.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid api config: %w", err)
	}
	base, err := baseURL(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
			},
		},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nef-api",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// only transport failures and 5xx count against the appliance
			IsSuccessful: func(err error) bool {
				var httpErr *HTTPError
				if errors.As(err, &httpErr) {
					return httpErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
		}),
	}

	if cfg.Username != "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func baseURL(cfg Config) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", cfg.URL, err)
	}
	if u.Port() == "" {
		port := cfg.Port
		if port == 0 {
			port = DefaultPort
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u, nil
}

// Login exchanges the configured credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	lg.FromContext(ctx).Debug("logging in", lg.String("user", c.cfg.Username), lg.String("url", c.baseURL.String()))

	payload := map[string]string{"username": c.cfg.Username, "password": c.cfg.Password}
	var body struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "auth/login", nil, payload, &body); err != nil {
		return fmt.Errorf("login as %s failed: %w", c.cfg.Username, err)
	}
	if body.Token == "" {
		return errors.New("login response carries no token")
	}

	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	return nil
}

// Logout drops the session token. It is a no-op when not logged in.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	loggedIn := c.token != ""
	c.mu.RUnlock()
	if !loggedIn {
		return nil
	}
	_, err := c.Post(ctx, "auth/logout", nil)

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

// Get decodes the response body into out. A nil out discards the body.
func (c *Client) Get(ctx context.Context, method string, params url.Values, out any) error {
	_, err := c.do(ctx, http.MethodGet, method, params, nil, out)
	return err
}

// Post returns the id of the job the request started, or "" if the request
// completed synchronously.
func (c *Client) Post(ctx context.Context, method string, payload any) (string, error) {
	return c.send(ctx, http.MethodPost, method, payload)
}

// Submit implements jobs.Transport.
func (c *Client) Submit(ctx context.Context, req jobs.Request) (string, error) {
	return c.send(ctx, strings.ToUpper(req.Method), req.Path, req.Payload)
}

// JobStatus implements jobs.Transport. An empty status list means the job
// no longer exists.
func (c *Client) JobStatus(ctx context.Context, jobID string) (jobs.Status, error) {
	var body jobStatusBody
	if err := c.Get(ctx, "jobStatus", url.Values{"jobId": {jobID}}, &body); err != nil {
		return jobs.Status{}, err
	}
	if len(body.Data) == 0 {
		return jobs.Status{}, jobs.ErrJobNotFound
	}
	return jobs.Status{Progress: body.Data[0].Progress, Done: body.Data[0].Done}, nil
}

func (c *Client) send(ctx context.Context, httpMethod, method string, payload any) (string, error) {
	var body asyncBody
	status, err := c.do(ctx, httpMethod, method, nil, payload, &body)
	if err != nil {
		return "", err
	}
	if status != http.StatusAccepted {
		return "", nil
	}
	if len(body.Links) == 0 || body.Links[0].Href == "" {
		return "", fmt.Errorf("%s %s: accepted without a job link", httpMethod, method)
	}
	return path.Base(strings.TrimRight(body.Links[0].Href, "/")), nil
}

// do performs one request through the circuit breaker and returns the
// status code. Bodies that are not JSON are ignored.
func (c *Client) do(ctx context.Context, httpMethod, method string, params url.Values, payload, out any) (int, error) {
	logger := lg.FromContext(ctx)
	logger.Debug(httpMethod+" "+method, lg.Any("params", params), lg.Any("payload", redact(method, payload)))

	u := c.baseURL.JoinPath(method)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	res, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, httpMethod, u.String(), reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.mu.RLock()
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		c.mu.RUnlock()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &HTTPError{Method: httpMethod, Path: method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				logger.Debug("ignoring non-JSON response body", lg.Err(err))
			}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

func redact(method string, payload any) any {
	if method == "auth/login" {
		return "<redacted>"
	}
	return payload
}
