package apikey

import (
	"context"
)

// SnapshotStore persists the whole key -> record mapping as one document.
// Save always replaces the previous document and must not retain the map.
type SnapshotStore interface {
	Load(ctx context.Context) (map[string]CredentialRecord, error)
	Save(ctx context.Context, records map[string]CredentialRecord) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}
