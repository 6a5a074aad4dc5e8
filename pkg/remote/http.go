package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gasgit/gasgit/pkg/errors"
)

// httpClient talks to the remote project store over its JSON API.
//
// The API is a thin file CRUD: GET lists a project's files, PUT upserts one,
// DELETE removes one. Every response carries the full updated file list.
type httpClient struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTP returns a Client backed by the store's JSON API at baseURL. The
// token, if set, is sent as a bearer credential.
func NewHTTP(baseURL, token string) Client {
	return &httpClient{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// List implements Client.
func (c *httpClient) List(ctx context.Context, projectID string) ([]File, error) {
	return c.do(ctx, http.MethodGet, c.fileURL(projectID, ""), nil)
}

// Write implements Client.
func (c *httpClient) Write(ctx context.Context, projectID, name, content string,
	typ FileType) ([]File, error) {

	if err := typ.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(File{Name: name, Type: typ, Content: content})
	if err != nil {
		return nil, errors.WithContext(err, "encode file")
	}
	return c.do(ctx, http.MethodPut, c.fileURL(projectID, name), body)
}

// Delete implements Client.
func (c *httpClient) Delete(ctx context.Context, projectID, name string) ([]File, error) {
	return c.do(ctx, http.MethodDelete, c.fileURL(projectID, name), nil)
}

func (c *httpClient) fileURL(projectID, name string) string {
	u := fmt.Sprintf("%s/projects/%s/files", c.base, url.PathEscape(projectID))
	if name != "" {
		u += "/" + url.PathEscape(name)
	}
	return u
}

func (c *httpClient) do(ctx context.Context, method, target string, body []byte) ([]File, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.WithContext(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithContext(err, "call remote store")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithContext(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(fmt.Sprintf("remote store returned %s: %s",
			resp.Status, strings.TrimSpace(string(payload))))
	}

	var result struct {
		Files []File `json:"files"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.WithContext(err, "decode response")
	}
	return result.Files, nil
}
