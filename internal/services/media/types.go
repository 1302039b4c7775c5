package media

import "github.com/ochronus/goustream/internal/services/api"

// User is the account the credentials belong to.
type User struct {
	ID       api.ID `json:"id"`
	Username string `json:"username"`
}

// Playlist is a named, ordered set of videos owned by a user.
type Playlist struct {
	ID         api.ID `json:"id"`
	Title      string `json:"title"`
	IsEnabled  bool   `json:"is_enabled"`
	CreatedAt  int64  `json:"created_at"`
	VideoCount int    `json:"video_count"`
}

// Video is a recorded or uploaded video on a channel.
type Video struct {
	ID          api.ID  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Protect     string  `json:"protect"`
	Length      float64 `json:"length"`
	CreatedAt   int64   `json:"created_at"`
	URL         string  `json:"url"`
	ChannelID   api.ID  `json:"channel_id"`
}

// PlaylistOptions are the fields accepted when creating a playlist.
type PlaylistOptions struct {
	Title   string
	Enabled bool
}

// UploadStatus is the processing state of an uploaded file.
type UploadStatus struct {
	Status  string `json:"status"`
	VideoID api.ID `json:"videoId"`
}
