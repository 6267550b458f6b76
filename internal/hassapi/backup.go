package hassapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/uploadkit/uploader/internal/upload"
)

// CreateBackupUpload prepares an upload of a backup archive.
func (c *Client) CreateBackupUpload(
	ctx context.Context,
	file File,
) (*upload.Upload, error) {
	return c.NewFileUpload(ctx, "/api/hassio/backups/new/upload", file)
}

type backupResponse struct {
	Data struct {
		Slug string `json:"slug"`
	} `json:"data"`
}

// DoBackupUpload starts a backup upload and returns the new backup's slug.
//
// If ctx ends first, the upload is aborted and the error is
// upload.ErrAborted.
func DoBackupUpload(ctx context.Context, u *upload.Upload) (string, error) {
	resp, err := upload.Wait(ctx, u, u.Start())
	if err != nil {
		return "", err
	}

	switch resp.Status {
	case http.StatusOK:
	case http.StatusBadRequest:
		return "", ErrInvalidBackup
	case http.StatusRequestEntityTooLarge:
		return "", ErrTooLarge
	default:
		return "", newStatusError(resp)
	}

	var parsed backupResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return "", err
	}
	if parsed.Data.Slug == "" {
		return "", errors.New("hassapi: backup response has no slug")
	}
	return parsed.Data.Slug, nil
}
