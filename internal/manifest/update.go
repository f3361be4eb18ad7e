package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// UpdateStatus compares a local manifest with a published one.
type UpdateStatus struct {
	UpdateAvailable bool   `json:"update_available"`
	LocalVersion    string `json:"local_version,omitempty"`
	RemoteVersion   string `json:"remote_version"`
	LocalHash       string `json:"local_hash,omitempty"`
	RemoteHash      string `json:"remote_hash"`
}

// CheckUpdate fetches the manifest published at remoteURL and reports an
// update when its content hash differs from local. A nil local manifest
// always has an update available. client may be nil.
func CheckUpdate(ctx context.Context, client *resty.Client, local *Manifest, remoteURL string) (*UpdateStatus, error) {
	if client == nil {
		client = resty.New().SetTimeout(10 * time.Second)
	}

	res, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("fetch remote manifest: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch remote manifest: %s returned %d", remoteURL, res.StatusCode())
	}

	remote, err := Decode(res.Body())
	if err != nil {
		return nil, err
	}
	if remote.ContentHash == "" {
		return nil, fmt.Errorf("remote manifest at %s has no contentHash", remoteURL)
	}

	status := &UpdateStatus{
		UpdateAvailable: true,
		RemoteVersion:   remote.Version,
		RemoteHash:      remote.ContentHash,
	}
	if local != nil {
		status.LocalVersion = local.Version
		status.LocalHash = local.ContentHash
		status.UpdateAvailable = local.ContentHash != remote.ContentHash
	}

	slog.DebugContext(ctx, "update check",
		"url", remoteURL,
		"local", status.LocalHash,
		"remote", status.RemoteHash,
		"available", status.UpdateAvailable)
	return status, nil
}
