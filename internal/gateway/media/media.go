// Package media stores profile photos.
package media

import (
	"context"
	"fmt"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Store uploads and removes profile photos.
type Store interface {
	Upload(ctx context.Context, photo types.Photo) (types.StoredMedia, error)
	Delete(ctx context.Context, ref string) error
}

// DisabledStore is used when no object storage is configured. Requests that
// carry a photo fail instead of silently dropping it.
type DisabledStore struct{}

var _ Store = DisabledStore{}

func (DisabledStore) Upload(context.Context, types.Photo) (types.StoredMedia, error) {
	return types.StoredMedia{}, fmt.Errorf("%w: photo uploads are disabled", types.ErrUpstream)
}

func (DisabledStore) Delete(context.Context, string) error {
	return nil
}
