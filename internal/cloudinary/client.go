// Package cloudinary uploads student photos through the Cloudinary upload API.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// Client talks to one Cloudinary cloud.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client

	now func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   defaultBaseURL,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// UploadResult is the part of the upload response the portal keeps.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Version   int64  `json:"version"`
	Bytes     int    `json:"bytes"`
}

// APIError is a non-2xx answer from the upload API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cloudinary: upload rejected (%d): %s", e.Status, e.Message)
}

// maxPhotoBytes bounds what UploadStudentPhoto accepts.
const maxPhotoBytes = 5 << 20

// UploadStudentPhoto stores a photo under the student's id, replacing any
// previous upload for the same student.
func (c *Client) UploadStudentPhoto(ctx context.Context, studentID string, data []byte, filename string) (*UploadResult, error) {
	if studentID == "" {
		return nil, errors.New("cloudinary: student id is required")
	}
	if len(data) == 0 || len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("cloudinary: photo must be between 1 byte and %d bytes", maxPhotoBytes)
	}
	if kind := http.DetectContentType(data); !strings.HasPrefix(kind, "image/") && kind != "application/octet-stream" {
		return nil, fmt.Errorf("cloudinary: %s is not an image", kind)
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
		"public_id": "student_" + studentID,
		"overwrite": "true",
		"folder":    c.Folder,
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.APIKey

	body, contentType, err := photoForm(params, filename, data)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(c.BaseURL, "/"), c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	defer resp.Body.Close()
	return decodeUpload(resp)
}

func photoForm(params map[string]string, filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if filename == "" {
		filename = "photo"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func decodeUpload(resp *http.Response) (*UploadResult, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cloudinary: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &failure) == nil && failure.Error.Message != "" {
			msg = failure.Error.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("cloudinary: decode response: %w", err)
	}
	if result.SecureURL == "" {
		return nil, errors.New("cloudinary: response has no secure_url")
	}
	return &result, nil
}

// sign hashes the sorted non-empty params (api_key, file and resource_type
// excluded) followed by the secret.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		switch k {
		case "api_key", "file", "resource_type":
			continue
		}
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k + "=" + params[k])
	}
	b.WriteString(c.APISecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(b.String())))
}
