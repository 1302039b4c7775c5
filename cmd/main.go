package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ochronus/goustream/internal/app"
	"github.com/ochronus/goustream/internal/batch"
	"github.com/ochronus/goustream/internal/config"
	"github.com/ochronus/goustream/internal/http"
	"github.com/ochronus/goustream/internal/paging"
	"github.com/ochronus/goustream/internal/services/api"
	"github.com/ochronus/goustream/internal/services/media"
	"github.com/ochronus/goustream/internal/upload"
	"github.com/ochronus/goustream/internal/utils"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath  string
	channelID   string
	userID      string
	title       string
	description string
	protect     string
)

func main() {
	// Get default config path
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = "./config.toml"
	}

	// Root command
	rootCmd := &cobra.Command{
		Use:   "goustream",
		Short: "IBM Video Streaming upload client",
		Long:  "Uploads videos to IBM Video Streaming channels over the FTP ingest, lists channel content, and can run as an authenticated upload proxy.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the upload proxy",
		RunE:  runProxy,
	}

	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload one video to a channel",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
	uploadCmd.Flags().StringVar(&channelID, "channel", "", "Channel ID")
	uploadCmd.Flags().StringVar(&title, "title", "", "Video title (default: file name)")
	uploadCmd.Flags().StringVar(&description, "description", "", "Video description")
	uploadCmd.Flags().StringVar(&protect, "protect", "", "Video visibility (default: default_protect)")
	_ = uploadCmd.MarkFlagRequired("channel")

	uploadDirCmd := &cobra.Command{
		Use:   "upload-dir <dir>",
		Short: "Upload every video in a directory to a channel",
		Args:  cobra.ExactArgs(1),
		RunE:  runUploadDir,
	}
	uploadDirCmd.Flags().StringVar(&channelID, "channel", "", "Channel ID")
	uploadDirCmd.Flags().StringVar(&description, "description", "", "Description for every video")
	uploadDirCmd.Flags().StringVar(&protect, "protect", "", "Video visibility (default: default_protect)")
	_ = uploadDirCmd.MarkFlagRequired("channel")

	playlistsCmd := &cobra.Command{
		Use:   "playlists",
		Short: "List a user's playlists",
		RunE:  runPlaylists,
	}
	playlistsCmd.Flags().StringVar(&userID, "user", "self", "User ID")

	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "List a channel's videos",
		RunE:  runVideos,
	}
	videosCmd.Flags().StringVar(&channelID, "channel", "", "Channel ID")
	_ = videosCmd.MarkFlagRequired("channel")

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the credentials belong to",
		RunE:  runWhoami,
	}

	// Get-token command
	getTokenCmd := &cobra.Command{
		Use:   "get-token",
		Short: "Fetch an API access token with the configured client credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			_, err = utils.GetToken(cmd.Context(), cmd.OutOrStdout(), api.Credentials{
				ClientID:     cfg.API.ClientID,
				ClientSecret: cfg.API.ClientSecret,
				TokenURL:     cfg.API.TokenURL,
				Scopes:       cfg.API.Scopes,
			})
			return err
		},
	}

	// Generate-config command
	var clientID, clientSecret string
	generateConfigCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return utils.GenerateConfig(cmd.OutOrStdout(), configPath, clientID, clientSecret)
		},
	}
	generateConfigCmd.Flags().StringVar(&clientID, "client-id", "", "API client ID")
	generateConfigCmd.Flags().StringVar(&clientSecret, "client-secret", "", "API client secret")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goustream version %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(uploadDirCmd)
	rootCmd.AddCommand(playlistsCmd)
	rootCmd.AddCommand(videosCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(getTokenCmd)
	rootCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loadContainer loads and validates the config, then builds the container.
func loadContainer(ctx context.Context, server bool) (*app.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	validate := cfg.Validate
	if server {
		validate = cfg.ValidateServer
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := app.NewContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}
	return container, nil
}

func runProxy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	container, err := loadContainer(ctx, true)
	if err != nil {
		return err
	}

	container.Logger.Infof("Starting goustream, version %s", version)

	// Start HTTP server
	server := http.NewServer(container)
	return server.StartWithContext(ctx)
}

func uploadOptions(cfg *config.Config) upload.Options {
	opts := upload.Options{
		Title:       title,
		Description: description,
		Protect:     protect,
	}
	if opts.Protect == "" {
		opts.Protect = cfg.DefaultProtect
	}
	return opts
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	container, err := loadContainer(ctx, false)
	if err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := uploadOptions(container.Config)
	if opts.Title == "" {
		opts.Title = filepath.Base(path)
	}

	result, err := container.Uploader.Upload(ctx, channelID, upload.Source{Name: filepath.Base(path), Reader: f}, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to channel %s, file %s\n", path, result.ChannelID, result.FileID)
	return nil
}

func runUploadDir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	container, err := loadContainer(ctx, false)
	if err != nil {
		return err
	}

	jobs, err := batch.JobsFromDir(args[0], channelID, uploadOptions(container.Config))
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no video files found in %s", args[0])
	}

	manager := batch.NewManager(container.Uploader, container.Config.UploadWorkers, container.Logger)
	outcomes := manager.Run(ctx, jobs)

	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		if o.Succeeded() {
			fmt.Fprintf(out, "ok    %s -> file %s\n", o.Job.Path, o.Result.FileID)
		} else {
			fmt.Fprintf(out, "FAIL  %s: %v\n", o.Job.Path, o.Err)
		}
	}

	succeeded, failed := batch.Summarize(outcomes)
	fmt.Fprintf(out, "%d uploaded, %d failed\n", succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(outcomes))
	}
	return nil
}

// printPages writes every item of every page as one JSON line.
func printPages[T any](cmd *cobra.Command, first *paging.Page) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return paging.Walk(cmd.Context(), first, func(p *paging.Page) error {
		items, err := paging.Decode[T](p)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	})
}

func runPlaylists(cmd *cobra.Command, args []string) error {
	container, err := loadContainer(cmd.Context(), false)
	if err != nil {
		return err
	}

	page, err := container.Media.ListPlaylists(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return printPages[media.Playlist](cmd, page)
}

func runVideos(cmd *cobra.Command, args []string) error {
	container, err := loadContainer(cmd.Context(), false)
	if err != nil {
		return err
	}

	page, err := container.Media.ListChannelVideos(cmd.Context(), channelID)
	if err != nil {
		return err
	}
	return printPages[media.Video](cmd, page)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	container, err := loadContainer(cmd.Context(), false)
	if err != nil {
		return err
	}

	user, err := container.Media.CurrentUser(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", user.Username, user.ID)
	return nil
}
