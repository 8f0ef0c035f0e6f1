// Package registry implements the HTTP client for the authoritative
// metadata service: file entries, trash, share records, and the per-user
// marker sets. It satisfies vault.Registry.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/vault-share/internal/errors"
	"github.com/alexjbarnes/vault-share/internal/vault"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024
)

// Client talks to the registry REST API. All calls are JSON POSTs
// authenticated with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents the bearer token from
// leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates a registry client for the given base URL and bearer
// token. If httpClient is nil, a client with a 30-second timeout and
// same-host redirect policy is created.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// apiError is the error body the registry returns, either with a non-200
// status or as a 200 with the error field set.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// post sends a JSON POST request and decodes the response into result.
func (c *Client) post(ctx context.Context, endpoint string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return apperrors.Transient(fmt.Errorf("%w: sending request to %s: %w", apperrors.ErrAPIRequest, endpoint, err))
	}
	defer resp.Body.Close()

	// Cap response reads at 1MB. API responses are small JSON payloads.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response from %s: %w", apperrors.ErrAPIResponse, endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Error != "" {
			return wrapAPIError(endpoint, resp.StatusCode, ae)
		}

		err := fmt.Errorf("%w: %s returned status %d: %s",
			apperrors.ErrAPIResponse, endpoint, resp.StatusCode, sanitizeResponseBody(respBody))
		if isTransientStatus(resp.StatusCode) {
			return apperrors.Transient(err)
		}

		return err
	}

	// The registry reports some errors as a 200 with an error body.
	var ae apiError
	if json.Unmarshal(respBody, &ae) == nil && ae.Error != "" {
		return wrapAPIError(endpoint, resp.StatusCode, ae)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: decoding response from %s: %w", apperrors.ErrAPIResponse, endpoint, err)
		}
	}

	return nil
}

// wrapAPIError maps a decoded registry error onto the domain sentinels so
// callers can branch with errors.Is instead of string matching.
func wrapAPIError(endpoint string, status int, ae apiError) error {
	base := fmt.Errorf("API %s (%d): %s", endpoint, status, ae.Error)

	switch ae.Code {
	case "not_found":
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, base)
	case "already_shared":
		return fmt.Errorf("%w: %w", apperrors.ErrAlreadyShared, base)
	case "not_shared":
		return fmt.Errorf("%w: %w", apperrors.ErrNotShared, base)
	}

	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, base)
	}

	if isTransientStatus(status) || isTransientMessage(ae.Error) {
		return apperrors.Transient(fmt.Errorf("%w: %w", apperrors.ErrAPIRequest, base))
	}

	return fmt.Errorf("%w: %w", apperrors.ErrAPIRequest, base)
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// isTransientMessage checks whether an API error message suggests a
// temporary condition worth retrying after a backoff.
func isTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)

	return strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "try again") ||
		strings.Contains(lower, "temporarily unavailable")
}

// ListOwnedFiles returns the user's live (non-trashed) file entries.
func (c *Client) ListOwnedFiles(ctx context.Context, user string) ([]vault.FileEntry, error) {
	var resp filesListResponse
	if err := c.post(ctx, "/files/list", userRequest{User: user}, &resp); err != nil {
		return nil, fmt.Errorf("listing owned files: %w", err)
	}

	return resp.Files, nil
}

// CreateFile persists a new entry. The submitted ID is provisional; the
// returned entry carries the server-assigned one.
func (c *Client) CreateFile(ctx context.Context, entry vault.FileEntry) (vault.FileEntry, error) {
	var resp fileResponse
	if err := c.post(ctx, "/files/create", fileRequest{File: entry}, &resp); err != nil {
		return vault.FileEntry{}, fmt.Errorf("creating file: %w", err)
	}

	return resp.File, nil
}

// UpdateFile persists name and parent changes for an existing entry.
func (c *Client) UpdateFile(ctx context.Context, entry vault.FileEntry) error {
	if err := c.post(ctx, "/files/update", fileRequest{File: entry}, nil); err != nil {
		return fmt.Errorf("updating file: %w", err)
	}

	return nil
}

// ListTrash returns the user's owner tombstones.
func (c *Client) ListTrash(ctx context.Context, user string) ([]vault.TrashTombstone, error) {
	var resp trashListResponse
	if err := c.post(ctx, "/trash/list", userRequest{User: user}, &resp); err != nil {
		return nil, fmt.Errorf("listing trash: %w", err)
	}

	return resp.Entries, nil
}

// MoveToTrash replaces the listed entries with the given tombstones.
func (c *Client) MoveToTrash(ctx context.Context, user string, tombs []vault.TrashTombstone) error {
	req := trashMoveRequest{User: user, Entries: tombs}
	if err := c.post(ctx, "/trash/move", req, nil); err != nil {
		return fmt.Errorf("moving to trash: %w", err)
	}

	return nil
}

// RestoreFromTrash turns the listed tombstones back into live entries.
func (c *Client) RestoreFromTrash(ctx context.Context, user string, fileIDs []string) error {
	req := trashIDsRequest{User: user, FileIDs: fileIDs}
	if err := c.post(ctx, "/trash/restore", req, nil); err != nil {
		return fmt.Errorf("restoring from trash: %w", err)
	}

	return nil
}

// PermanentlyDelete destroys the listed tombstones and their entries.
func (c *Client) PermanentlyDelete(ctx context.Context, user string, fileIDs []string) error {
	req := trashIDsRequest{User: user, FileIDs: fileIDs}
	if err := c.post(ctx, "/trash/purge", req, nil); err != nil {
		return fmt.Errorf("purging trash: %w", err)
	}

	return nil
}

// ListShares returns every record where user is the owner or recipient.
func (c *Client) ListShares(ctx context.Context, user string) ([]vault.ShareRecord, error) {
	var resp sharesListResponse
	if err := c.post(ctx, "/shares/list", userRequest{User: user}, &resp); err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}

	return resp.Shares, nil
}

// CreateShare persists a new share record.
func (c *Client) CreateShare(ctx context.Context, rec vault.ShareRecord) error {
	if err := c.post(ctx, "/shares/create", shareRequest{Share: rec}, nil); err != nil {
		return fmt.Errorf("creating share: %w", err)
	}

	return nil
}

// DeleteShare removes the record for one recipient, or for every
// recipient when recipient is empty.
func (c *Client) DeleteShare(ctx context.Context, fileID, recipient string) error {
	req := shareDeleteRequest{FileID: fileID, Recipient: recipient}
	if err := c.post(ctx, "/shares/delete", req, nil); err != nil {
		return fmt.Errorf("deleting share: %w", err)
	}

	return nil
}

// UpdateShare applies a partial update to a file's share records.
func (c *Client) UpdateShare(ctx context.Context, fileID string, upd vault.ShareUpdate) error {
	req := shareUpdateRequest{FileID: fileID, Update: upd}
	if err := c.post(ctx, "/shares/update", req, nil); err != nil {
		return fmt.Errorf("updating share: %w", err)
	}

	return nil
}

// ListRecipients returns the recipients a file is currently shared with.
func (c *Client) ListRecipients(ctx context.Context, fileID string) ([]string, error) {
	var resp recipientsResponse
	if err := c.post(ctx, "/shares/recipients", fileIDRequest{FileID: fileID}, &resp); err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}

	return resp.Recipients, nil
}

// OwnerTrashSnapshot returns the file IDs currently in the given owner's
// trash, visible to any user the owner shares with.
func (c *Client) OwnerTrashSnapshot(ctx context.Context, owner string) ([]string, error) {
	var resp fileIDsResponse
	if err := c.post(ctx, "/trash/snapshot", ownerRequest{Owner: owner}, &resp); err != nil {
		return nil, fmt.Errorf("fetching trash snapshot: %w", err)
	}

	return resp.FileIDs, nil
}

// GetMarkers returns the file IDs in one of the user's marker sets.
func (c *Client) GetMarkers(ctx context.Context, kind vault.MarkerKind, user string) ([]string, error) {
	var resp fileIDsResponse

	req := markerRequest{Kind: kind, User: user}
	if err := c.post(ctx, "/markers/get", req, &resp); err != nil {
		return nil, fmt.Errorf("fetching %s markers: %w", kind, err)
	}

	return resp.FileIDs, nil
}

// AddMarkers inserts file IDs into a marker set. Adding an ID that is
// already present is a no-op server-side.
func (c *Client) AddMarkers(ctx context.Context, kind vault.MarkerKind, user string, fileIDs []string) error {
	req := markerRequest{Kind: kind, User: user, FileIDs: fileIDs}
	if err := c.post(ctx, "/markers/add", req, nil); err != nil {
		return fmt.Errorf("adding %s markers: %w", kind, err)
	}

	return nil
}

// RemoveMarkers removes file IDs from a marker set. Removing an absent ID
// is a no-op server-side.
func (c *Client) RemoveMarkers(ctx context.Context, kind vault.MarkerKind, user string, fileIDs []string) error {
	req := markerRequest{Kind: kind, User: user, FileIDs: fileIDs}
	if err := c.post(ctx, "/markers/remove", req, nil); err != nil {
		return fmt.Errorf("removing %s markers: %w", kind, err)
	}

	return nil
}
