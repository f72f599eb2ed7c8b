package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/verte-zerg/fueldash/internal/model"
)

const userAgent = "fueldash"

// Load fetches source (a file path or http(s) URL) and parses it. Every
// failure, including cancellation, is returned as a *LoadError.
func Load(ctx context.Context, source string, opts Options) (model.Dataset, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return model.Dataset{}, loadError(source, fmt.Errorf("source is empty"))
	}
	body, err := open(ctx, source)
	if err != nil {
		return model.Dataset{}, loadError(source, err)
	}
	defer func() {
		_ = body.Close()
	}()

	ds, err := Parse(&ctxReader{ctx: ctx, r: body}, opts)
	if err != nil {
		return model.Dataset{}, loadError(source, err)
	}
	if err := ctx.Err(); err != nil {
		return model.Dataset{}, loadError(source, err)
	}
	ds.Source = source
	return ds, nil
}

func open(ctx context.Context, source string) (io.ReadCloser, error) {
	if isURL(source) {
		return httpGet(ctx, source)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	return f, nil
}

func httpGet(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return resp.Body, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
