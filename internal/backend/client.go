// Package backend is the HTTP client for the voice demo server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/media"
)

// Endpoint labels used for metrics.
const (
	EndpointHello        = "hello"
	EndpointHealth       = "health"
	EndpointTextToSpeech = "text_to_speech"
	EndpointUpload       = "upload"
	EndpointEcho         = "echo"
	EndpointAudio        = "audio"
)

// Observer receives one call per completed request.
type Observer interface {
	ObserveRequest(endpoint, outcome string, d time.Duration)
}

type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
}

// Client talks to the backend. No request is retried.
type Client struct {
	http     *resty.Client
	baseURL  string
	logger   *zap.Logger
	observer Observer
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	rc := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	return &Client{http: rc, baseURL: base, logger: logger, observer: opts.Observer}
}

func (c *Client) Hello(ctx context.Context) (HelloResponse, error) {
	var out HelloResponse
	err := c.do(ctx, EndpointHello, c.http.R().SetContext(ctx), "GET", PathHello, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, EndpointHealth, c.http.R().SetContext(ctx), "GET", PathHealth, &out)
	return out, err
}

func (c *Client) TextToSpeech(ctx context.Context, req TTSRequest) (TTSResponse, error) {
	var out TTSResponse
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req)
	err := c.do(ctx, EndpointTextToSpeech, r, "POST", PathTextToSpeech, &out)
	return out, err
}

// Upload posts the blob as multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, b media.Blob) (UploadResponse, error) {
	var out UploadResponse
	err := c.do(ctx, EndpointUpload, c.multipart(ctx, filename, b), "POST", PathUpload, &out)
	return out, err
}

// Echo posts the blob to the transcribe-and-synthesize endpoint.
func (c *Client) Echo(ctx context.Context, filename string, b media.Blob) (EchoResponse, error) {
	var out EchoResponse
	err := c.do(ctx, EndpointEcho, c.multipart(ctx, filename, b), "POST", PathEcho, &out)
	return out, err
}

// FetchAudio downloads url, which may be relative to the base URL.
func (c *Client) FetchAudio(ctx context.Context, url string) (media.Blob, error) {
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/*").
		Get(c.resolve(url))
	if err == nil && resp.IsError() {
		err = &HTTPError{Status: resp.StatusCode()}
	}
	c.observe(EndpointAudio, err, time.Since(started))
	if err != nil {
		return media.Blob{}, err
	}
	data := resp.Body()
	mimeType := resp.Header().Get("Content-Type")
	if sniffed := media.SniffType(data); sniffed != "" && (mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream")) {
		mimeType = sniffed
	}
	return media.Blob{Data: data, MIMEType: mimeType}, nil
}

func (c *Client) resolve(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return c.baseURL + url
}

func (c *Client) multipart(ctx context.Context, filename string, b media.Blob) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetMultipartField("file", filename, b.MIMEType, bytes.NewReader(b.Data))
}

func (c *Client) do(ctx context.Context, endpoint string, r *resty.Request, method, path string, out any) error {
	started := time.Now()
	resp, err := r.Execute(method, path)
	if err == nil && resp.IsError() {
		err = &HTTPError{Status: resp.StatusCode()}
	}
	if err == nil {
		if decodeErr := json.Unmarshal(resp.Body(), out); decodeErr != nil {
			err = &DecodeError{Endpoint: endpoint, Err: decodeErr}
		}
	}
	elapsed := time.Since(started)
	c.observe(endpoint, err, elapsed)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("endpoint", endpoint),
			zap.String("path", path),
			zap.String("code", ErrorCode(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		if ctx.Err() != nil && StatusCode(err) == 0 {
			return fmt.Errorf("%s: %w", endpoint, ctx.Err())
		}
		return err
	}
	c.logger.Debug("backend request", zap.String("endpoint", endpoint), zap.Duration("elapsed", elapsed))
	return nil
}

func (c *Client) observe(endpoint string, err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(endpoint, ErrorCode(err), d)
}
