// Package assets uploads deployment files to the remote asset store through
// its unsigned upload endpoint.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Mayuresh-22/NimbusWave/internal/service/mediatype"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

// ErrUploadFailed indicates the asset store rejected or errored an upload,
// or returned a response without a usable URL.
var ErrUploadFailed = errors.New("assets: upload failed")

// UploadResult is the stable remote identity of a published asset.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	AssetID   string `json:"asset_id"`
}

// Client talks to a Cloudinary-compatible asset store.
type Client struct {
	baseURL      string
	cloudName    string
	uploadPreset string
	rootFolder   string
	httpClient   *http.Client
	logger       *slog.Logger
}

// New returns an asset store client configured from cfg.
func New(cfg config.APIConfig, logger *slog.Logger) *Client {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.CloudinaryBaseURL, "/"),
		cloudName:    cfg.CloudinaryCloudName,
		uploadPreset: cfg.CloudinaryUploadPreset,
		rootFolder:   cfg.CloudinaryRootFolder,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// uploadResponse is the store's reply envelope. The error member is only set
// on rejections.
type uploadResponse struct {
	UploadResult
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload publishes one file under the project's asset folder and returns its
// remote identity. Image files are left unnamed so the store picks a public
// id; every other category is named "base.ext" so the rewriter can predict
// the mapping key.
func (c *Client) Upload(ctx context.Context, content []byte, baseName string, media mediatype.Descriptor, projectID string) (*UploadResult, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	fileName := fmt.Sprintf("%s.%s", baseName, media.Extension)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: build form: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("%w: write form: %v", ErrUploadFailed, err)
	}
	if !media.IsImage() {
		if err := form.WriteField("public_id", fileName); err != nil {
			return nil, fmt.Errorf("%w: write form: %v", ErrUploadFailed, err)
		}
	}
	if err := form.WriteField("asset_folder", fmt.Sprintf("%s/%s", c.rootFolder, projectID)); err != nil {
		return nil, fmt.Errorf("%w: write form: %v", ErrUploadFailed, err)
	}
	if err := form.WriteField("upload_preset", c.uploadPreset); err != nil {
		return nil, fmt.Errorf("%w: write form: %v", ErrUploadFailed, err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("%w: close form: %v", ErrUploadFailed, err)
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/auto/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}

	var decoded uploadResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %v", ErrUploadFailed, resp.StatusCode, err)
	}
	if decoded.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, decoded.Error.Message)
	}
	// A response without a secure URL is a failure, not a partial success.
	if decoded.SecureURL == "" {
		return nil, fmt.Errorf("%w: store returned no secure URL for %q (status %d)", ErrUploadFailed, fileName, resp.StatusCode)
	}

	c.logger.Debug("asset uploaded", "file", fileName, "project_id", projectID, "public_id", decoded.PublicID)
	result := decoded.UploadResult
	return &result, nil
}
