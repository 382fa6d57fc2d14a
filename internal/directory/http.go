package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/types"
)

// maxResponseBytes bounds how much of a directory response is read.
const maxResponseBytes = 64 << 10

// HTTPClient resolves tokens and meeting codes against a remote directory
// service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the directory rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "directory", "driver", "http"),
	}
}

// IsAvailable reports whether the base URL answers at all.
func (c *HTTPClient) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("directory not reachable", "error", err)
		return false
	}
	drain(resp)
	return true
}

// userResponse mirrors the directory's user record. The service is loose
// about numeric fields, so every field accepts a string or a number.
type userResponse struct {
	UserID    flexString `json:"userid"`
	FirstName flexString `json:"firstname"`
	Surname   flexString `json:"surname"`
	Company   flexString `json:"company"`
	JobTitle  flexString `json:"jobtitle"`
	WorkEmail flexString `json:"workemail"`
	PhoneNum  flexString `json:"phonenum"`
	AvatarID  flexString `json:"avatarid"`
}

// ResolveUser looks up the profile that owns token.
func (c *HTTPClient) ResolveUser(ctx context.Context, token string) (*types.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/token", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Authorization", token)

	var body userResponse
	switch err := c.do(req, &body); {
	case errors.Is(err, errUnauthorized):
		return nil, interfaces.ErrInvalidToken
	case err != nil:
		return nil, err
	}

	userID, err := body.UserID.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: bad userid: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	avatarID := 0
	if body.AvatarID != "" {
		if avatarID, err = body.AvatarID.Int(); err != nil {
			return nil, fmt.Errorf("%w: bad avatarid: %w", interfaces.ErrDirectoryUnavailable, err)
		}
	}

	return &types.User{
		ID:          userID,
		FirstName:   string(body.FirstName),
		Surname:     string(body.Surname),
		Company:     string(body.Company),
		JobTitle:    string(body.JobTitle),
		WorkEmail:   string(body.WorkEmail),
		PhoneNumber: string(body.PhoneNum),
		AvatarID:    avatarID,
	}, nil
}

type presenterResponse struct {
	PresenterID flexString `json:"presenter_id"`
}

// ResolveMeeting returns the presenter id registered for code.
func (c *HTTPClient) ResolveMeeting(ctx context.Context, code string) (int, error) {
	endpoint := c.baseURL + "/meeting/presenter?" + url.Values{"MeetingCode": {code}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", interfaces.ErrDirectoryUnavailable, err)
	}

	var body presenterResponse
	switch err := c.do(req, &body); {
	case errors.Is(err, errNotFound):
		return 0, interfaces.ErrInvalidMeetingID
	case err != nil:
		return 0, err
	}

	presenterID, err := body.PresenterID.Int()
	if err != nil {
		return 0, fmt.Errorf("%w: bad presenter_id: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	return presenterID, nil
}

var (
	errUnauthorized = errors.New("unauthorized")
	errNotFound     = errors.New("not found")
)

// do executes req and decodes a 200 response into out. 401 and 404 map to
// internal sentinels the callers translate; anything else is unavailability.
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return errUnauthorized
	case http.StatusNotFound:
		return errNotFound
	default:
		c.logger.Warn("unexpected directory status", "url", req.URL.Path, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", interfaces.ErrDirectoryUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", interfaces.ErrDirectoryUnavailable, err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
}

// flexString decodes a JSON string, number or null into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(f)))
}
