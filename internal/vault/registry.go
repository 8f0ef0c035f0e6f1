package vault

import "context"

//go:generate mockgen -source=registry.go -destination=mock_registry_test.go -package=vault

// Registry is the authoritative server-side store the engine reconciles
// against: owned files, trash, share records, and the per-user marker
// sets. Implementations live outside this package (internal/registry for
// the HTTP client); the engine only depends on this interface.
type Registry interface {
	ListOwnedFiles(ctx context.Context, user string) ([]FileEntry, error)
	CreateFile(ctx context.Context, entry FileEntry) (FileEntry, error)
	UpdateFile(ctx context.Context, entry FileEntry) error

	ListTrash(ctx context.Context, user string) ([]TrashTombstone, error)
	MoveToTrash(ctx context.Context, user string, tombs []TrashTombstone) error
	RestoreFromTrash(ctx context.Context, user string, fileIDs []string) error
	PermanentlyDelete(ctx context.Context, user string, fileIDs []string) error

	// ListShares returns every record where user is the owner or the
	// recipient.
	ListShares(ctx context.Context, user string) ([]ShareRecord, error)
	CreateShare(ctx context.Context, rec ShareRecord) error
	// DeleteShare removes the record for one recipient, or for every
	// recipient when recipient is empty.
	DeleteShare(ctx context.Context, fileID, recipient string) error
	UpdateShare(ctx context.Context, fileID string, upd ShareUpdate) error
	ListRecipients(ctx context.Context, fileID string) ([]string, error)

	// OwnerTrashSnapshot returns the file IDs currently in the given
	// owner's trash, used for the ancestor-chain held check.
	OwnerTrashSnapshot(ctx context.Context, owner string) ([]string, error)

	GetMarkers(ctx context.Context, kind MarkerKind, user string) ([]string, error)
	AddMarkers(ctx context.Context, kind MarkerKind, user string, fileIDs []string) error
	RemoveMarkers(ctx context.Context, kind MarkerKind, user string, fileIDs []string) error
}

// Notifier sends a fire-and-forget change signal so other active sessions
// for the same or related users reconcile soon. Failures are ignored by
// callers; the poll cycle covers missed signals.
type Notifier interface {
	NotifyChanged(user string)
}

// TombstoneStore is the local, per-user persistence for recipient
// tombstones and cached partitions (internal/state provides the bbolt
// implementation).
type TombstoneStore interface {
	RecipientTombstones(user string) ([]TrashTombstone, error)
	PutRecipientTombstone(user string, t TrashTombstone) error
	DeleteRecipientTombstone(user, fileID string) error
	SaveViews(user string, p Partitions) error
}
