package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kestrelhq/respond/internal/log"
)

// Client executes normalized Requests against real upstream providers.
type Client struct {
	http *http.Client
}

func New() *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		},
	}
}

func NewWithClient(c *http.Client) *Client {
	return &Client{http: c}
}

// Do executes a non-streaming request and returns its fully buffered body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	rawReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	rawReq.Header.Set("Accept", "application/json")

	rawResp, err := c.http.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer rawResp.Body.Close()

	body, err := io.ReadAll(rawResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	log.Debug(ctx, "upstream http response",
		log.String("method", rawReq.Method),
		log.String("url", rawReq.URL.String()),
		log.Int("status", rawResp.StatusCode))

	if rawResp.StatusCode >= 400 {
		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	return &Response{StatusCode: rawResp.StatusCode, Headers: rawResp.Header, Body: body}, nil
}

// DoStream executes a streaming request and decodes the body as SSE.
func (c *Client) DoStream(ctx context.Context, req *Request) (StreamDecoder, error) {
	rawReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	rawReq.Header.Set("Accept", "text/event-stream")

	rawResp, err := c.http.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("http stream request failed: %w", err)
	}

	if rawResp.StatusCode >= 400 {
		defer rawResp.Body.Close()

		body, _ := io.ReadAll(rawResp.Body)

		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	return NewSSEDecoder(ctx, rawResp.Body), nil
}

func (c *Client) build(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	rawReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	rawReq.Header = req.Headers.Clone()
	if rawReq.Header == nil {
		rawReq.Header = make(http.Header)
	}

	if req.Query != nil {
		rawReq.URL.RawQuery = req.Query.Encode()
	}

	if req.Auth != nil {
		if err := applyAuth(rawReq.Header, req.Auth); err != nil {
			return nil, err
		}
	}

	return rawReq, nil
}

func applyAuth(headers http.Header, auth *AuthConfig) error {
	switch auth.Type {
	case AuthTypeBearer:
		if auth.APIKey == "" {
			return fmt.Errorf("bearer token is required")
		}

		headers.Set("Authorization", "Bearer "+auth.APIKey)
	case AuthTypeAPIKey:
		if auth.HeaderKey == "" {
			return fmt.Errorf("header key is required for api_key auth")
		}

		headers.Set(auth.HeaderKey, auth.APIKey)
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}

	return nil
}
