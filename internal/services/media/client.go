// Package media holds the plain resource calls of the streaming API:
// playlists, videos and upload status.
package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ochronus/goustream/internal/paging"
	"github.com/ochronus/goustream/internal/services/api"
)

const (
	playlistsCollection = "playlists"
	videosCollection    = "videos"
)

// Client wraps a Requester with typed resource calls.
type Client struct {
	requester api.Requester
}

var _ ClientAPI = (*Client)(nil)

// NewClient creates a media client.
func NewClient(requester api.Requester) *Client {
	return &Client{requester: requester}
}

func resource(format string, ids ...string) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

// list fetches the first page of a collection. A missing parent yields an
// empty terminal page instead of an error.
func (c *Client) list(ctx context.Context, path, collection string) (*paging.Page, error) {
	resp, err := c.requester.AuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if api.IsNotFound(err) {
			return paging.Empty(c.requester, collection), nil
		}
		return nil, err
	}
	return paging.FromResponse(c.requester, collection, resp)
}

func (c *Client) get(ctx context.Context, path, key string, v any) error {
	resp, err := c.requester.AuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return resp.Decode(key, v)
}

// CurrentUser returns the account behind the configured credentials.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "users/self.json", "user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListPlaylists returns the first page of a user's playlists. Use "self"
// for the authenticated user.
func (c *Client) ListPlaylists(ctx context.Context, userID string) (*paging.Page, error) {
	return c.list(ctx, resource("users/%s/playlists.json", userID), playlistsCollection)
}

func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	var playlist Playlist
	if err := c.get(ctx, resource("playlists/%s.json", playlistID), "playlist", &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, userID string, opts PlaylistOptions) (*Playlist, error) {
	form := url.Values{
		"title":      {opts.Title},
		"is_enabled": {strconv.FormatBool(opts.Enabled)},
	}
	resp, err := c.requester.AuthRequest(ctx, http.MethodPost, resource("users/%s/playlists.json", userID), form)
	if err != nil {
		return nil, err
	}

	var playlist Playlist
	if err := resp.Decode("playlist", &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (c *Client) RemovePlaylist(ctx context.Context, playlistID string) error {
	_, err := c.requester.AuthRequest(ctx, http.MethodDelete, resource("playlists/%s.json", playlistID), nil)
	return err
}

// ListPlaylistVideos returns the first page of videos in a playlist.
func (c *Client) ListPlaylistVideos(ctx context.Context, playlistID string) (*paging.Page, error) {
	return c.list(ctx, resource("playlists/%s/videos.json", playlistID), videosCollection)
}

func (c *Client) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error {
	_, err := c.requester.AuthRequest(ctx, http.MethodPut, resource("playlists/%s/videos/%s.json", playlistID, videoID), nil)
	return err
}

// ListChannelVideos returns the first page of videos on a channel.
func (c *Client) ListChannelVideos(ctx context.Context, channelID string) (*paging.Page, error) {
	return c.list(ctx, resource("channels/%s/videos.json", channelID), videosCollection)
}

func (c *Client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var video Video
	if err := c.get(ctx, resource("videos/%s.json", videoID), "video", &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (c *Client) RemoveVideo(ctx context.Context, videoID string) error {
	_, err := c.requester.AuthRequest(ctx, http.MethodDelete, resource("videos/%s.json", videoID), nil)
	return err
}

// UploadStatus reports how far the platform got processing an upload.
func (c *Client) UploadStatus(ctx context.Context, channelID, fileID string) (*UploadStatus, error) {
	resp, err := c.requester.AuthRequest(ctx, http.MethodGet, resource("channels/%s/uploads/%s.json", channelID, fileID), nil)
	if err != nil {
		return nil, err
	}

	status := &UploadStatus{}
	if err := resp.Decode("status", &status.Status); err != nil {
		return nil, err
	}
	if _, ok := resp["videoId"]; ok {
		if err := resp.Decode("videoId", &status.VideoID); err != nil {
			return nil, err
		}
	}
	return status, nil
}
