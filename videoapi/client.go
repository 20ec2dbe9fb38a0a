// Package videoapi is a thin façade over the remote video registry's REST
// API: resource creation and deletion, metadata, and thumbnails. The
// registry is consumed, not owned; only the operations the engine needs are
// exposed.
package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"streamup/httpc"
)

// ErrVideoNotFound indicates the remote resource no longer exists.
var ErrVideoNotFound = errors.New("videoapi: video not found")

// Remote processing status codes as reported by the registry.
const (
	RemoteStatusCreated     = 0
	RemoteStatusUploaded    = 1
	RemoteStatusProcessing  = 2
	RemoteStatusTranscoding = 3
	RemoteStatusFinished    = 4
	RemoteStatusError       = 5
)

// Video is the registry's view of a video resource.
type Video struct {
	GUID              string  `json:"guid"`
	Title             string  `json:"title"`
	ThumbnailFileName string  `json:"thumbnailFileName"`
	Status            int     `json:"status"`
	EncodeProgress    int     `json:"encodeProgress"`
	Length            float64 `json:"length"`
	CollectionID      string  `json:"collectionId"`
}

// Ready reports whether remote processing has finished.
func (v *Video) Ready() bool {
	return v.Status == RemoteStatusFinished
}

// Client calls the remote video registry.
type Client struct {
	http    *httpc.Client
	baseURL string
	creds   Credentials
	log     *slog.Logger
}

// New creates a registry client. baseURL is the API root, e.g.
// "https://video.example.net".
func New(httpClient *httpc.Client, baseURL string, creds Credentials, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		creds:   creds,
		log:     log,
	}
}

func (c *Client) videoURL(libraryID, videoID string) string {
	return fmt.Sprintf("%s/library/%s/videos/%s",
		c.baseURL, url.PathEscape(libraryID), url.PathEscape(videoID))
}

func (c *Client) authHeaders(libraryID string) (map[string]string, error) {
	key, err := c.creds.APIKey(libraryID)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"AccessKey":    key,
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}, nil
}

// CreateVideo creates a remote video resource and returns its id. The
// collection id is optional.
func (c *Client) CreateVideo(ctx context.Context, libraryID, title, collectionID string) (string, error) {
	headers, err := c.authHeaders(libraryID)
	if err != nil {
		return "", err
	}

	payload := map[string]string{"title": title}
	if collectionID != "" {
		payload["collectionId"] = collectionID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal create payload: %w", err)
	}

	urlStr := fmt.Sprintf("%s/library/%s/videos", c.baseURL, url.PathEscape(libraryID))
	resp, err := c.http.DoOK(ctx, http.MethodPost, urlStr, bytes.NewReader(body), headers)
	if err != nil {
		return "", fmt.Errorf("create video: %w", err)
	}

	var v Video
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if v.GUID == "" {
		return "", fmt.Errorf("create video: response missing guid")
	}

	c.log.Debug("created remote video", "library", libraryID, "video", v.GUID)
	return v.GUID, nil
}

// DeleteVideo deletes a remote video resource.
func (c *Client) DeleteVideo(ctx context.Context, libraryID, videoID string) error {
	headers, err := c.authHeaders(libraryID)
	if err != nil {
		return err
	}

	_, err = c.http.DoOK(ctx, http.MethodDelete, c.videoURL(libraryID, videoID), nil, headers)
	if err != nil {
		if isNotFound(err) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}
	return nil
}

// FetchVideo retrieves the registry's metadata for a video. Returns
// ErrVideoNotFound when the resource no longer exists.
func (c *Client) FetchVideo(ctx context.Context, libraryID, videoID string) (*Video, error) {
	headers, err := c.authHeaders(libraryID)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.DoOK(ctx, http.MethodGet, c.videoURL(libraryID, videoID), nil, headers)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("fetch video %s: %w", videoID, err)
	}

	var v Video
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return nil, fmt.Errorf("decode video %s: %w", videoID, err)
	}
	return &v, nil
}

// UpdateTitle updates the remote title of a video.
func (c *Client) UpdateTitle(ctx context.Context, libraryID, videoID, title string) error {
	headers, err := c.authHeaders(libraryID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("marshal title payload: %w", err)
	}

	_, err = c.http.DoOK(ctx, http.MethodPost, c.videoURL(libraryID, videoID), bytes.NewReader(body), headers)
	if err != nil {
		if isNotFound(err) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("update title %s: %w", videoID, err)
	}
	return nil
}

// UploadThumbnail uploads thumbnail bytes for a video.
func (c *Client) UploadThumbnail(ctx context.Context, libraryID, videoID string, data []byte, mimeType string) error {
	key, err := c.creds.APIKey(libraryID)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"AccessKey":    key,
		"Content-Type": mimeType,
	}

	urlStr := c.videoURL(libraryID, videoID) + "/thumbnail"
	_, err = c.http.DoOK(ctx, http.MethodPost, urlStr, bytes.NewReader(data), headers)
	if err != nil {
		if isNotFound(err) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("upload thumbnail %s: %w", videoID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var httpErr *httpc.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
