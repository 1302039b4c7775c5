package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochronus/goustream/internal/services/api"
)

const configTemplate = `# Optional log level, default "info"
loglevel = "info"

# Optional number of files "upload-dir" sends in parallel, default 2.
upload_workers = 2

# Optional visibility of new videos, default "private"
default_protect = "private"

# Required by "run" only. Basic auth credentials clients use to reach the upload proxy
username = "myusername"
password = "mypassword"

# Optional address the upload proxy listens on, default 127.0.0.1:8080
bind_address = "127.0.0.1"
port = 8080

[api]
# Optional API endpoints
base_url = "https://api.video.ibm.com"
token_url = "https://video.ibm.com/oauth2/token"

# Required unless access_token is set. Can also come from GOUSTREAM_CLIENT_ID and
# GOUSTREAM_CLIENT_SECRET, or a .env file next to this config.
client_id = "{{CLIENT_ID}}"
client_secret = "{{CLIENT_SECRET}}"

# Optional long-lived token, used instead of the client credentials
# access_token = ""

# Optional request timeout in secs, default 30
timeout = 30

# Optional attempts for GET/PUT/DELETE on 429 and 5xx answers, default 3
max_retries = 3

[ftp]
# Optional ingest connection timeout in secs, default 30
timeout = 30

# Optional. Some ingest servers behind NAT need EPSV disabled
disable_epsv = false
`

// RenderConfig fills the config template with the given client credentials.
func RenderConfig(clientID, clientSecret string) string {
	return strings.NewReplacer(
		"{{CLIENT_ID}}", clientID,
		"{{CLIENT_SECRET}}", clientSecret,
	).Replace(configTemplate)
}

// GetToken fetches an access token with the client credentials grant and
// prints it, so it can be pasted into access_token.
func GetToken(ctx context.Context, out io.Writer, creds api.Credentials) (string, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return "", fmt.Errorf("client id and client secret are required")
	}
	creds.AccessToken = ""

	token, err := creds.TokenSource(ctx).Token()
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	fmt.Fprintf(out, "Access token: %s\n", token.AccessToken)
	if !token.Expiry.IsZero() {
		fmt.Fprintf(out, "Expires: %s\n", token.Expiry.Format("2006-01-02 15:04:05"))
	}
	return token.AccessToken, nil
}

// GenerateConfig writes a configuration file, backing up any existing one
func GenerateConfig(out io.Writer, configPath, clientID, clientSecret string) error {
	fmt.Fprintf(out, "Generating config %s\n", configPath)

	config := RenderConfig(clientID, clientSecret)

	// Check if config file already exists and back it up
	if _, err := os.Stat(configPath); err == nil {
		backupPath := configPath + ".bak"
		fmt.Fprintf(out, "Backing up config %s\n", configPath)
		if err := os.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file holds credentials
	fmt.Fprintf(out, "Writing %s\n", configPath)
	if err := os.WriteFile(configPath, []byte(config), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
