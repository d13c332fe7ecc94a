// Package drive uploads pending images to Google Drive. The caller builds a
// Client explicitly and owns its lifetime.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"picbrand/internal/models"
)

var (
	ErrClosed        = errors.New("drive client closed")
	ErrNotAuthorized = errors.New("drive not authorized, run `picbrand auth drive` first")
)

type Client struct {
	svc        *gdrive.Service
	httpClient *http.Client
	folderID   string
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New authenticates and returns a ready client. A saved OAuth token
// (see Authorize) takes precedence; otherwise CredentialsFile is treated as
// a service account key. Extra options replace the default auth entirely.
func New(ctx context.Context, cfg models.DriveConfig, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	const op = "drive.New"

	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{folderID: cfg.FolderID, logger: logger.With(zap.String("component", "drive"))}

	if len(opts) == 0 {
		authOpts, httpClient, err := defaultAuth(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts = authOpts
		c.httpClient = httpClient
	}

	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.svc = svc
	return c, nil
}

func defaultAuth(ctx context.Context, cfg models.DriveConfig) ([]option.ClientOption, *http.Client, error) {
	if cfg.TokenFile != "" {
		if tok, err := loadToken(cfg.TokenFile); err == nil {
			conf, err := oauthConfig(cfg)
			if err != nil {
				return nil, nil, err
			}
			hc := oauth2.NewClient(ctx, conf.TokenSource(ctx, tok))
			return []option.ClientOption{option.WithHTTPClient(hc)}, hc, nil
		}
	}
	if cfg.CredentialsFile == "" {
		return nil, nil, ErrNotAuthorized
	}
	// Without a saved token only a service account key can authenticate;
	// an installed-app client secret needs the consent flow first.
	isKey, err := isServiceAccountKey(cfg.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	if !isKey {
		return nil, nil, fmt.Errorf("%w (no token at %s)", ErrNotAuthorized, cfg.TokenFile)
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gdrive.DriveFileScope)}, nil, nil
}

func isServiceAccountKey(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read credentials: %w", err)
	}
	var key struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return false, fmt.Errorf("parse credentials: %w", err)
	}
	return key.Type == "service_account", nil
}

func oauthConfig(cfg models.DriveConfig) (*oauth2.Config, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, gdrive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return conf, nil
}

// Upload creates a new remote file named after the local basename. Uploading
// the same name twice creates two remote files.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	const op = "drive.Upload"

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return "", fmt.Errorf("%s: %w", op, ErrClosed)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	meta := &gdrive.File{Name: filepath.Base(path)}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}
	created, err := c.svc.Files.Create(meta).Media(f).Fields("id", "name").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Info("upload complete", zap.String("path", path), zap.String("file_id", created.Id))
	return created.Id, nil
}

// UploadAll uploads paths in order and stops at the first failure.
func (c *Client) UploadAll(ctx context.Context, paths []string) ([]string, error) {
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		id, err := c.Upload(ctx, p)
		if err != nil {
			c.logger.Error("upload failed", zap.String("path", p), zap.Error(err))
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close releases idle connections. Further uploads fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
