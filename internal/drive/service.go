package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/oplai/backend/internal/config"
	"github.com/oplai/backend/internal/models"
	"github.com/oplai/backend/pkg/textextract"
)

var ErrNotConnected = errors.New("google drive is not connected for this user")

const (
	mimeGoogleDoc = "application/vnd.google-apps.document"
	mimePDF       = "application/pdf"
	mimeText      = "text/plain"
)

// googleEndpoint avoids pulling the full google helper package in for two
// URLs.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Service connects a user's Google Drive and mirrors its text-like files
// into synced_files rows.
type Service struct {
	db        *pgxpool.Pool
	cfg       config.GoogleConfig
	newClient func(httpClient *http.Client) *Client
}

func NewService(db *pgxpool.Pool, cfg config.GoogleConfig) *Service {
	return &Service{db: db, cfg: cfg, newClient: NewClient}
}

func (s *Service) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Endpoint:     googleEndpoint,
		RedirectURL:  redirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.readonly"},
	}
}

type ConnectRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// Connect exchanges the authorization code and upserts the user's
// data-source row; reconnecting replaces the stored tokens.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, req ConnectRequest) (*models.DataSource, error) {
	token, err := s.oauthConfig(req.RedirectURI).Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	var ds models.DataSource
	err = s.db.QueryRow(ctx,
		`INSERT INTO data_sources (user_id, provider, access_token, refresh_token, token_expiry)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		     access_token = EXCLUDED.access_token,
		     refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE data_sources.refresh_token END,
		     token_expiry = EXCLUDED.token_expiry
		 RETURNING id, user_id, provider, access_token, refresh_token, token_expiry, created_at`,
		userID, models.ProviderGoogleDrive, token.AccessToken, token.RefreshToken, token.Expiry,
	).Scan(&ds.ID, &ds.UserID, &ds.Provider, &ds.AccessToken, &ds.RefreshToken, &ds.TokenExpiry, &ds.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert data source: %w", err)
	}
	return &ds, nil
}

type SyncResult struct {
	TotalFiles  int                 `json:"total_files"`
	SyncedFiles int                 `json:"synced_files"`
	Files       []models.SyncedFile `json:"files"`
}

// Sync lists the connected Drive and upserts every text-like file's
// extracted content. The stored access token is refreshed first when
// expired. Per-file failures are logged and skipped.
func (s *Service) Sync(ctx context.Context, userID uuid.UUID) (*SyncResult, error) {
	ds, err := s.dataSource(ctx, userID)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  ds.AccessToken,
		RefreshToken: ds.RefreshToken,
		Expiry:       ds.TokenExpiry,
	}
	source := s.oauthConfig("").TokenSource(ctx, token)

	// Force the refresh up front so a dead token fails the whole sync
	// cleanly instead of on the first API call.
	fresh, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	if fresh.AccessToken != ds.AccessToken {
		if err := s.storeToken(ctx, ds.ID, fresh); err != nil {
			slog.Warn("persist refreshed token failed", "data_source_id", ds.ID, "error", err)
		}
	}

	client := s.newClient(oauth2.NewClient(ctx, source))

	files, err := client.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}

	result := &SyncResult{TotalFiles: len(files)}
	for _, f := range files {
		if !syncable(f.MimeType) {
			continue
		}
		content, err := fetchContent(ctx, client, f)
		if err != nil {
			slog.Error("drive file fetch failed", "file_id", f.ID, "file_name", f.Name, "error", err)
			continue
		}

		synced, err := s.upsertFile(ctx, ds.ID, f, content)
		if err != nil {
			slog.Error("drive file upsert failed", "file_id", f.ID, "file_name", f.Name, "error", err)
			continue
		}
		result.SyncedFiles++
		result.Files = append(result.Files, *synced)
	}
	return result, nil
}

func (s *Service) dataSource(ctx context.Context, userID uuid.UUID) (*models.DataSource, error) {
	var ds models.DataSource
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, provider, access_token, refresh_token, token_expiry, created_at
		 FROM data_sources WHERE user_id = $1 AND provider = $2`,
		userID, models.ProviderGoogleDrive,
	).Scan(&ds.ID, &ds.UserID, &ds.Provider, &ds.AccessToken, &ds.RefreshToken, &ds.TokenExpiry, &ds.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("get data source: %w", err)
	}
	return &ds, nil
}

func (s *Service) storeToken(ctx context.Context, dataSourceID uuid.UUID, token *oauth2.Token) error {
	_, err := s.db.Exec(ctx,
		`UPDATE data_sources SET access_token = $1, token_expiry = $2 WHERE id = $3`,
		token.AccessToken, token.Expiry, dataSourceID,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return nil
}

func (s *Service) upsertFile(ctx context.Context, dataSourceID uuid.UUID, f File, content string) (*models.SyncedFile, error) {
	var sf models.SyncedFile
	err := s.db.QueryRow(ctx,
		`INSERT INTO synced_files (data_source_id, provider_file_id, file_name, file_type, file_size, content, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (data_source_id, provider_file_id) DO UPDATE SET
		     file_name = EXCLUDED.file_name,
		     file_type = EXCLUDED.file_type,
		     file_size = EXCLUDED.file_size,
		     content = EXCLUDED.content,
		     synced_at = EXCLUDED.synced_at
		 RETURNING id, data_source_id, provider_file_id, file_name, file_type, file_size, content, synced_at`,
		dataSourceID, f.ID, f.Name, f.MimeType, f.Size, content, time.Now().UTC(),
	).Scan(&sf.ID, &sf.DataSourceID, &sf.ProviderFileID, &sf.FileName, &sf.FileType, &sf.FileSize, &sf.Content, &sf.SyncedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert synced file: %w", err)
	}
	return &sf, nil
}

func syncable(mimeType string) bool {
	switch {
	case mimeType == mimeGoogleDoc, mimeType == mimePDF:
		return true
	case strings.HasPrefix(mimeType, "text/"):
		return true
	default:
		return false
	}
}

func fetchContent(ctx context.Context, client *Client, f File) (string, error) {
	switch {
	case f.MimeType == mimeGoogleDoc:
		data, err := client.Export(ctx, f.ID, mimeText)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case f.MimeType == mimePDF:
		data, err := client.Download(ctx, f.ID)
		if err != nil {
			return "", err
		}
		extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), mimePDF)
		if err != nil {
			return "", fmt.Errorf("extract pdf text: %w", err)
		}
		return extracted.Content, nil
	default:
		data, err := client.Download(ctx, f.ID)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
