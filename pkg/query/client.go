// Package query is a client for the sql-infer query service. The service
// exposes two endpoints taking JSON bodies: CheckPath, which type-checks a
// query, and RunPath, which executes it with positional parameters.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sql-infer/devtools/pkg/logging"
)

const (
	// DefaultAddr is where the service listens unless configured otherwise.
	DefaultAddr = "0.0.0.0:8001"

	CheckPath = "/"
	RunPath   = "/run"
)

// ErrInvalidAddr indicates an address that is neither host:port nor an
// http(s) URL.
var ErrInvalidAddr = errors.New("invalid service address")

// Config configures a Client.
type Config struct {
	// Addr is host:port or a base URL. Empty means DefaultAddr.
	Addr string

	// Timeout bounds each request when HTTPClient is nil. Zero means no
	// timeout.
	Timeout time.Duration

	// HTTPClient overrides the client requests are sent with.
	HTTPClient *http.Client

	// Logger receives request logs at debug level. Nil discards them.
	Logger *logrus.Logger
}

// Client sends queries to the service. Each call is a single synchronous
// request with no retries.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Logger
}

type checkRequest struct {
	Query string `json:"query"`
}

type runRequest struct {
	Query  string  `json:"query"`
	Params []Param `json:"params"`
}

// New returns a Client for the service at cfg.Addr.
func New(cfg Config) (*Client, error) {
	base, err := ParseAddr(cfg.Addr)
	if err != nil {
		return nil, err
	}

	c := &Client{base: base, http: cfg.HTTPClient, log: cfg.Logger}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	return c, nil
}

// ParseAddr turns addr into the base URL of the service.
func ParseAddr(addr string) (*url.URL, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddr, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAddr, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidAddr, addr)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Check asks the service to check query.
func (c *Client) Check(ctx context.Context, query string) Result {
	return c.post(ctx, CheckPath, checkRequest{Query: query})
}

// Execute asks the service to run query with params, in order.
func (c *Client) Execute(ctx context.Context, query string, params []Param) Result {
	if params == nil {
		params = []Param{}
	}
	return c.post(ctx, RunPath, runRequest{Query: query, Params: params})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) Result {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return failure(err)
	}

	u := *c.base
	u.Path = u.Path + path
	log := c.log.WithField("url", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(reqBody))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debugf("POST %s", reqBody)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return failure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(err)
	}
	log.WithFields(logrus.Fields{"status": resp.StatusCode, "took": time.Since(start)}).Debug("response received")

	return decode(resp.StatusCode, respBody)
}
