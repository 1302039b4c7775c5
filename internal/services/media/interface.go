package media

import (
	"context"

	"github.com/ochronus/goustream/internal/paging"
)

// ClientAPI mirrors Client so callers can substitute it in tests.
type ClientAPI interface {
	CurrentUser(ctx context.Context) (*User, error)
	ListPlaylists(ctx context.Context, userID string) (*paging.Page, error)
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)
	CreatePlaylist(ctx context.Context, userID string, opts PlaylistOptions) (*Playlist, error)
	RemovePlaylist(ctx context.Context, playlistID string) error
	ListPlaylistVideos(ctx context.Context, playlistID string) (*paging.Page, error)
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) error
	ListChannelVideos(ctx context.Context, channelID string) (*paging.Page, error)
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	RemoveVideo(ctx context.Context, videoID string) error
	UploadStatus(ctx context.Context, channelID, fileID string) (*UploadStatus, error)
}
