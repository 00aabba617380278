package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient uploads images to an external image host.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient constructs a client for the image host at baseURL.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*HTTPClient, error) {
	trimmed := strings.TrimRight(baseURL, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("media url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse media url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload sends r as a multipart "file" field to <base>/upload.
func (c *HTTPClient) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (string, error) {
	if !validFolder(folder) {
		return "", fmt.Errorf("media: unknown folder %q", folder)
	}
	ext, err := Extension(contentType)
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = "upload" + ext
	}

	body, formType, err := encodeMultipart(folder, filename, contentType, r)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: c.baseURL.Path + "/upload"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", formType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var payload uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", fmt.Errorf("decode media response: %w", err)
		}
		if payload.URL == "" {
			return "", fmt.Errorf("media: upstream returned no url")
		}
		return payload.URL, nil
	case http.StatusUnsupportedMediaType:
		return "", ErrUnsupportedType
	default:
		c.logger.Warn().Int("status", resp.StatusCode).Str("folder", folder).Msg("media: unexpected upstream status")
		return "", fmt.Errorf("media: upstream returned %d", resp.StatusCode)
	}
}

func encodeMultipart(folder, filename, contentType string, r io.Reader) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("folder", folder); err != nil {
		return nil, "", err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}
