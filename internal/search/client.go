// Package search queries the Pexels photo search API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://api.pexels.com/v1/search"
	DefaultPerPage  = 4
	DefaultTimeout  = 15 * time.Second
)

// Result is one photo returned by a search.
type Result struct {
	ID           int64  `json:"id"`
	Medium       string `json:"medium"`
	Large        string `json:"large"`
	Alt          string `json:"alt"`
	Photographer string `json:"photographer,omitempty"`
	PageURL      string `json:"pageUrl,omitempty"`
}

// Searcher runs a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Client talks to the search API over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	perPage    int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the search URL.
func WithEndpoint(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.endpoint = u
		}
	}
}

// WithPerPage sets the page size. Non-positive values keep the default.
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		apiKey:     apiKey,
		perPage:    DefaultPerPage,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PerPage returns the page size sent with each request.
func (c *Client) PerPage() int { return c.perPage }

type photosResponse struct {
	Photos []struct {
		ID           int64  `json:"id"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		URL          string `json:"url"`
		Src          struct {
			Medium string `json:"medium"`
			Large  string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search issues one GET for query. A blank query fails without any request.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &Error{Kind: KindValidation, Err: ErrEmptyQuery}
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("parse endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(c.perPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logrus.WithError(cerr).Debug("close search response")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &Error{Kind: KindAuth, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimit, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))}
	}

	var payload photosResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	results := make([]Result, 0, len(payload.Photos))
	for _, p := range payload.Photos {
		results = append(results, Result{
			ID:           p.ID,
			Medium:       p.Src.Medium,
			Large:        p.Src.Large,
			Alt:          p.Alt,
			Photographer: p.Photographer,
			PageURL:      p.URL,
		})
	}
	logrus.WithFields(logrus.Fields{"query": query, "results": len(results)}).Debug("search complete")
	return results, nil
}
