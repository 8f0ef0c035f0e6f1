// Package vault implements the shared-file visibility and trash
// reconciliation engine: the data model for owned files, share records,
// and trash tombstones; the pure reconciliation function that partitions
// a user's view into active, shared-with-me, and trash; the mutation
// handlers with optimistic local updates; and the sync scheduler that
// serializes reconciliation passes.
package vault

import "time"

// Kind distinguishes files from folders. Name-conflict scopes and share
// closures treat the two independently.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// RootFolder is the parent ID of entries at the vault root.
const RootFolder = ""

// FileEntry is a single owned file or folder. The owner is the uploader
// and never changes; who can see the entry is determined entirely by
// share records.
type FileEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size,omitempty"`
	Kind      Kind      `json:"kind"`
	ParentID  string    `json:"parentId,omitempty"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`

	// BlobRef is the opaque handle of the encrypted content blob. Empty
	// for folders.
	BlobRef string `json:"blobRef,omitempty"`
}

// ShareRecord grants one recipient access to one file. At most one record
// exists per (FileID, Recipient) pair. The record carries denormalized
// file metadata so a recipient can render the entry without access to the
// owner's file list, and a recipient-side parent so shared folders nest.
type ShareRecord struct {
	FileID         string    `json:"fileId"`
	Recipient      string    `json:"recipient"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize,omitempty"`
	FileKind       Kind      `json:"fileKind"`
	OwnerEmail     string    `json:"ownerEmail"`
	OwnerName      string    `json:"ownerName"`
	ParentFolderID string    `json:"parentFolderId,omitempty"`
	SharedAt       time.Time `json:"sharedAt"`
}

// SharedMeta identifies the owner of a received share on a recipient
// tombstone, so the trash view can attribute the entry after the share
// record itself may be gone.
type SharedMeta struct {
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerDisplayName"`
}

// TrashTombstone is a trash-view placeholder. An owner tombstone stands
// for the owner's own trashed file. A recipient tombstone (Shared != nil)
// marks that a recipient hid a still-owner-owned share in their own trash
// view; it does not own the underlying file.
type TrashTombstone struct {
	FileEntry

	// OriginalParentID is where a restore puts the entry back, provided
	// that parent still exists and is not itself trashed.
	OriginalParentID string `json:"originalParentId,omitempty"`

	// OriginalSharedID is the shared file's ID for recipient tombstones.
	OriginalSharedID string `json:"originalSharedId,omitempty"`

	Shared *SharedMeta `json:"sharedMeta,omitempty"`

	TrashedAt time.Time `json:"trashedAt"`
}

// IsRecipient reports whether this is a recipient tombstone.
func (t *TrashTombstone) IsRecipient() bool { return t.Shared != nil }

// MarkerKind names one of the per-user visibility marker sets. Membership
// is the only state a set carries.
type MarkerKind string

const (
	// MarkerOwnerTrashed marks files whose owner moved the source file to
	// trash. Scoped per recipient: the owner adds the file to every
	// recipient's set on delete and clears it on restore.
	MarkerOwnerTrashed MarkerKind = "owner_trashed"

	// MarkerRecipientTrashed marks shares the recipient moved to their own
	// trash view.
	MarkerRecipientTrashed MarkerKind = "recipient_trashed"

	// MarkerHidden marks shares the recipient discarded forever.
	MarkerHidden MarkerKind = "permanently_hidden"

	// MarkerFavorites is the per-user favorites set, independent of
	// ownership.
	MarkerFavorites MarkerKind = "favorites"
)

// ViewKind discriminates the arms of FileViewEntry.
type ViewKind int

const (
	ViewOwned ViewKind = iota
	ViewReceived
)

// FileViewEntry is one entry of a materialized partition: either an owned
// file or a received share. Exactly one of Owned/Received is populated,
// matching Kind. Received entries carry the name after sibling conflict
// resolution, which may differ from the record's FileName.
type FileViewEntry struct {
	Kind     ViewKind
	Owned    *FileEntry
	Received *ShareRecord

	// ResolvedName is the display name within the entry's sibling scope.
	ResolvedName string

	Favorite bool
}

// OwnedEntry wraps a FileEntry as a view entry.
func OwnedEntry(fe FileEntry, favorite bool) FileViewEntry {
	return FileViewEntry{Kind: ViewOwned, Owned: &fe, ResolvedName: fe.Name, Favorite: favorite}
}

// ReceivedEntry wraps a ShareRecord as a view entry with a resolved name.
func ReceivedEntry(rec ShareRecord, name string, favorite bool) FileViewEntry {
	return FileViewEntry{Kind: ViewReceived, Received: &rec, ResolvedName: name, Favorite: favorite}
}

// ID returns the file ID of either arm.
func (e FileViewEntry) ID() string {
	if e.Kind == ViewReceived {
		return e.Received.FileID
	}

	return e.Owned.ID
}

// ParentID returns the recipient-side parent folder of either arm.
func (e FileViewEntry) ParentID() string {
	if e.Kind == ViewReceived {
		return e.Received.ParentFolderID
	}

	return e.Owned.ParentID
}

// FileKind returns the entry's kind (file or folder).
func (e FileViewEntry) FileKind() Kind {
	if e.Kind == ViewReceived {
		return e.Received.FileKind
	}

	return e.Owned.Kind
}

// Partitions is the output of one reconciliation pass: three disjoint
// views over the user's files. A file ID appears in at most one of them.
type Partitions struct {
	Active       []FileViewEntry
	SharedWithMe []FileViewEntry
	Trash        []TrashTombstone
}

// StaleMarker identifies a marker-set entry that no longer corresponds to
// real server state. Reconciliation reports these so the caller can
// self-heal by removing them; they are never treated as fatal.
type StaleMarker struct {
	Kind   MarkerKind
	FileID string
}

// ShareUpdate is a partial update to share records. Owner-side renames
// and moves propagate to every recipient's record; a recipient
// re-parenting their own view sets Recipient to narrow the update to
// their record alone.
type ShareUpdate struct {
	Name           *string `json:"name,omitempty"`
	ParentFolderID *string `json:"parentFolderId,omitempty"`
	Recipient      string  `json:"recipient,omitempty"`
}
