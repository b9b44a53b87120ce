package seaweedfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/utils"
)

// Client stores generated assets on a SeaweedFS cluster. Upload returns the
// file id (fid) the volume server assigned; the fid is what gets persisted
// on content rows.
type Client interface {
	Upload(ctx context.Context, content []byte) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

type client struct {
	log        *logger.Logger
	masterURL  string
	volumeURL  string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	masterURL := strings.TrimRight(utils.GetEnv("SEAWEEDFS_MASTER_URL", "http://localhost:9333", log), "/")
	volumeURL := strings.TrimRight(utils.GetEnv("SEAWEEDFS_VOLUME_URL", "http://localhost:8080", log), "/")

	return &client{
		log:        log.With("service", "SeaweedFSClient"),
		masterURL:  masterURL,
		volumeURL:  volumeURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type assignResponse struct {
	Fid string `json:"fid"`
}

func (c *client) Upload(ctx context.Context, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.masterURL+"/dir/assign", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("seaweedfs assign: %w", err)
	}
	defer resp.Body.Close()

	var assign assignResponse
	if err := json.NewDecoder(resp.Body).Decode(&assign); err != nil {
		return "", fmt.Errorf("seaweedfs assign decode: %w", err)
	}
	if assign.Fid == "" {
		return "", fmt.Errorf("seaweedfs assign returned empty fid")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "uploaded_file")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.volumeURL+"/"+assign.Fid, &buf)
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())

	uploadResp, err := c.httpClient.Do(uploadReq)
	if err != nil {
		return "", fmt.Errorf("seaweedfs upload: %w", err)
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode != http.StatusCreated && uploadResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(uploadResp.Body)
		return "", fmt.Errorf("seaweedfs upload failed: http %d: %s", uploadResp.StatusCode, raw)
	}

	c.log.Debug("uploaded file", "fid", assign.Fid, "size", len(content))
	return assign.Fid, nil
}

func (c *client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %q: http %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
