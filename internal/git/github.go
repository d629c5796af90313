// Package git - GitHub REST client for repository deployment
// Covers the API surface the deployer needs: repository creation and
// lookup, the contents API, commit listing and Pages enablement.
package git

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound reports a 404 from the GitHub API.
var ErrNotFound = errors.New("github: not found")

// Repo is the subset of repository metadata the deployer needs.
type Repo struct {
	Name          string `json:"name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// Client is a minimal GitHub REST v3 client bound to one account.
type Client struct {
	token      string
	owner      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a GitHub client authenticated as owner.
func NewClient(token, owner string) *Client {
	return &Client{
		token:      token,
		owner:      owner,
		baseURL:    "https://api.github.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Owner returns the account name the client operates as.
func (c *Client) Owner() string {
	return c.owner
}

// PagesURL derives the public Pages address for repo.
func (c *Client) PagesURL(repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, repo)
}

// CreateRepo creates a public repository without an initial commit.
func (c *Client) CreateRepo(ctx context.Context, name, description string) (*Repo, error) {
	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   false,
	}

	resp, err := c.do(ctx, "POST", "/user/repos", payload)
	if err != nil {
		return nil, fmt.Errorf("create repo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub repo creation failed (%d): %s", resp.StatusCode, string(body))
	}

	var repo Repo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, fmt.Errorf("failed to decode repo response: %w", err)
	}
	return &repo, nil
}

// GetRepo fetches repository metadata. A 404 returns ErrNotFound.
func (c *Client) GetRepo(ctx context.Context, name string) (*Repo, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s", c.owner, name), nil)
	if err != nil {
		return nil, fmt.Errorf("get repo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub repo lookup failed (%d): %s", resp.StatusCode, string(body))
	}

	var repo Repo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, fmt.Errorf("failed to decode repo response: %w", err)
	}
	return &repo, nil
}

// escapePath percent-escapes each segment of a repository file path.
// Generated and attachment-supplied names can carry ?, # or % which
// would otherwise corrupt the request URL.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// GetContentSHA returns the blob sha of path on branch, or ErrNotFound
// when the file does not exist yet.
func (c *Client) GetContentSHA(ctx context.Context, repo, path, branch string) (string, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", c.owner, repo, escapePath(path), url.QueryEscape(branch)), nil)
	if err != nil {
		return "", fmt.Errorf("get contents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("GitHub contents lookup failed (%d): %s", resp.StatusCode, string(body))
	}

	var content struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", fmt.Errorf("failed to decode contents response: %w", err)
	}
	return content.SHA, nil
}

// PutFile creates or updates path on branch via the contents API. sha
// must be the current blob sha when updating and empty when creating.
func (c *Client) PutFile(ctx context.Context, repo, path, branch, message string, content []byte, sha string) error {
	payload := map[string]interface{}{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	resp, err := c.do(ctx, "PUT", fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, escapePath(path)), payload)
	if err != nil {
		return fmt.Errorf("put contents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub contents update failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// HeadCommitSHA returns the sha of the newest commit on branch.
func (c *Client) HeadCommitSHA(ctx context.Context, repo, branch string) (string, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/commits?sha=%s&per_page=1", c.owner, repo, branch), nil)
	if err != nil {
		return "", fmt.Errorf("list commits request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("GitHub commits listing failed (%d): %s", resp.StatusCode, string(body))
	}

	var commits []struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return "", fmt.Errorf("failed to decode commits response: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits on branch %s", branch)
	}
	return commits[0].SHA, nil
}

// EnablePages turns on Pages builds from the root of branch. Both 201
// and 409 (already enabled) count as success.
func (c *Client) EnablePages(ctx context.Context, repo, branch string) error {
	payload := map[string]interface{}{
		"source": map[string]string{
			"branch": branch,
			"path":   "/",
		},
	}

	resp, err := c.do(ctx, "POST", fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo), payload)
	if err != nil {
		return fmt.Errorf("pages request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub Pages API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}
