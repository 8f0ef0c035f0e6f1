package vault

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot is the complete input of one reconciliation pass: the
// evaluating user's owned files and trash as reported by the server, every
// share record involving the user, the user's marker sets, the
// authoritative trash snapshots of the owners sharing with the user, and
// the recipient tombstones currently held locally.
//
// Reconcile derives visibility purely from this snapshot, never from the
// sequence of events that produced it, so a pass is safe to run against
// server state that lags or races the trigger.
type Snapshot struct {
	User string
	Now  time.Time

	OwnedFiles []FileEntry
	OwnTrash   []TrashTombstone

	// Shares holds every record where the user is the recipient or the
	// owner. Records owned by the user only affect the other party's view
	// and are ignored here except for ownership deduplication.
	Shares []ShareRecord

	// OwnerTrashed is the user's owner-trashed marker set. Used for the
	// fully-gone tombstone rule and cross-checked against
	// OwnerTrashSnapshot for staleness.
	OwnerTrashed map[string]struct{}

	// OwnerTrashSnapshot is the union of getOwnerTrashSnapshot over every
	// owner sharing with the user: the file IDs actually in those owners'
	// trash right now. The held check walks ancestors against this set.
	OwnerTrashSnapshot map[string]struct{}

	RecipientTrashed map[string]struct{}
	Hidden           map[string]struct{}
	Favorites        map[string]struct{}

	// RecipientTombstones are the recipient tombstones currently in the
	// user's local trash store.
	RecipientTombstones []TrashTombstone
}

// Result is the output of a reconciliation pass. AddTombstones and
// RemoveTombstones are the only permitted trash-store writes: the caller
// applies them individually, never replacing the stored list wholesale,
// so a tombstone created between snapshot and apply is not clobbered.
type Result struct {
	Partitions Partitions

	// Stale lists marker entries that no longer correspond to server
	// state. The caller removes them from the marker sets; never fatal.
	Stale []StaleMarker

	// AddTombstones are recipient tombstones to create in the local store.
	AddTombstones []TrashTombstone

	// RemoveTombstones are file IDs whose recipient tombstones are proven
	// stale and must be dropped.
	RemoveTombstones []string

	// Skipped describes malformed records that were left out of the
	// partitions. The caller logs them; a bad record never aborts a pass.
	Skipped []string
}

// Reconcile computes the user's three partitions from a snapshot. It is
// deterministic and idempotent: identical snapshots yield identical
// partitions, and re-running against unchanged inputs produces no
// tombstone adds or removes.
func Reconcile(snap Snapshot) Result {
	var res Result

	ownedByID := make(map[string]FileEntry, len(snap.OwnedFiles))
	ownTrashIDs := make(map[string]struct{}, len(snap.OwnTrash))

	for _, t := range snap.OwnTrash {
		ownTrashIDs[t.ID] = struct{}{}
	}

	// Owned side: active entries are owned files not in the user's trash.
	// Ownership wins over any share record pointing back at the user, so
	// an owned ID is never also evaluated as a received share.
	for _, fe := range snap.OwnedFiles {
		if fe.ID == "" || fe.Name == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("owned entry %q/%q missing id or name", fe.ID, fe.Name))
			continue
		}

		ownedByID[fe.ID] = fe

		if _, trashed := ownTrashIDs[fe.ID]; trashed {
			continue
		}

		_, fav := snap.Favorites[fe.ID]
		res.Partitions.Active = append(res.Partitions.Active, OwnedEntry(fe, fav))
	}

	res.Partitions.Trash = append(res.Partitions.Trash, snap.OwnTrash...)

	// Index the user's received shares and claim sibling names: owned
	// entries always win the unsuffixed name in their scope regardless of
	// evaluation order.
	received := make([]ShareRecord, 0, len(snap.Shares))
	receivedByID := make(map[string]ShareRecord)
	names := newNameScopes()

	for _, e := range res.Partitions.Active {
		names.claim(e.ParentID(), e.FileKind(), e.ResolvedName)
	}

	for _, rec := range snap.Shares {
		if rec.Recipient != snap.User {
			continue
		}

		if rec.FileID == "" || rec.FileName == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("share record %q/%q missing id or name", rec.FileID, rec.FileName))
			continue
		}

		if _, owned := ownedByID[rec.FileID]; owned {
			continue
		}

		received = append(received, rec)
		receivedByID[rec.FileID] = rec
	}

	// Deterministic order: the suffix a conflicting share receives must not
	// depend on map iteration.
	sort.Slice(received, func(i, j int) bool {
		if !received[i].SharedAt.Equal(received[j].SharedAt) {
			return received[i].SharedAt.Before(received[j].SharedAt)
		}

		return received[i].FileID < received[j].FileID
	})

	tombByID := make(map[string]TrashTombstone, len(snap.RecipientTombstones))
	for _, t := range snap.RecipientTombstones {
		tombByID[t.ID] = t
	}

	trashNames := newNameScopes()
	for _, t := range snap.OwnTrash {
		trashNames.claim(RootFolder, t.Kind, t.Name)
	}

	keptTombs := make(map[string]TrashTombstone)

	for _, rec := range received {
		id := rec.FileID

		if _, hidden := snap.Hidden[id]; hidden {
			// Discarded forever: excluded from every partition, and any
			// leftover tombstone goes with it.
			continue
		}

		if _, trashed := snap.RecipientTrashed[id]; trashed {
			keptTombs[id] = existingOrNewTombstone(rec, tombByID, trashNames, snap.Now)
			continue
		}

		if heldByOwnerTrash(rec, receivedByID, ownedByID, snap.OwnerTrashSnapshot) {
			// The owner trashed the item or an ancestor. Invisible, but no
			// tombstone: the recipient never asked to trash it, and it
			// resurfaces on its own when the owner restores.
			continue
		}

		name := names.resolve(rec.ParentFolderID, rec.FileKind, rec.FileName)

		_, fav := snap.Favorites[id]
		res.Partitions.SharedWithMe = append(res.Partitions.SharedWithMe, ReceivedEntry(rec, name, fav))
	}

	// Orphaned tombstones: recipient tombstones whose share record is gone.
	// The record's absence alone does not drop the tombstone (an unshare
	// leaves the recipient's trash alone); only the owner having trashed it
	// too, or the recipient's own markers clearing, proves it stale.
	for _, t := range snap.RecipientTombstones {
		if _, done := keptTombs[t.ID]; done {
			continue
		}

		if _, exists := receivedByID[t.ID]; exists {
			// Record still live but recipient markers no longer trash it:
			// the share was restored, so the tombstone is stale.
			res.RemoveTombstones = append(res.RemoveTombstones, t.ID)
			continue
		}

		_, hidden := snap.Hidden[t.ID]
		_, recTrashed := snap.RecipientTrashed[t.ID]
		_, ownerTrashed := snap.OwnerTrashed[t.ID]

		if hidden || !recTrashed || ownerTrashed {
			// Hidden, marker cleared, or fully gone (owner trashed it and
			// the record was revoked or purged): drop entirely.
			res.RemoveTombstones = append(res.RemoveTombstones, t.ID)

			if recTrashed {
				res.Stale = append(res.Stale, StaleMarker{Kind: MarkerRecipientTrashed, FileID: t.ID})
			}

			continue
		}

		keptTombs[t.ID] = t
	}

	for id, t := range keptTombs {
		if _, had := tombByID[id]; !had {
			res.AddTombstones = append(res.AddTombstones, t)
		}
	}

	sort.Slice(res.AddTombstones, func(i, j int) bool {
		return res.AddTombstones[i].ID < res.AddTombstones[j].ID
	})
	sort.Strings(res.RemoveTombstones)

	kept := make([]TrashTombstone, 0, len(keptTombs))
	for _, t := range keptTombs {
		kept = append(kept, t)
	}

	res.Partitions.Trash = append(res.Partitions.Trash, kept...)

	res.Stale = append(res.Stale, staleOwnerTrashMarkers(snap, receivedByID)...)
	res.Stale = append(res.Stale, staleFavorites(snap, ownedByID, ownTrashIDs, receivedByID, keptTombs)...)

	sortPartitions(&res.Partitions)

	return res
}

// existingOrNewTombstone reuses the stored tombstone for a trashed share
// when one exists, preserving its identity across passes, and otherwise
// synthesizes one from the share record with a trash-scope-unique name.
func existingOrNewTombstone(rec ShareRecord, tombByID map[string]TrashTombstone, trashNames *nameScopes, now time.Time) TrashTombstone {
	if t, ok := tombByID[rec.FileID]; ok {
		trashNames.claim(RootFolder, t.Kind, t.Name)
		return t
	}

	return TrashTombstone{
		FileEntry: FileEntry{
			ID:    rec.FileID,
			Name:  trashNames.resolve(RootFolder, rec.FileKind, rec.FileName),
			Size:  rec.FileSize,
			Kind:  rec.FileKind,
			Owner: rec.OwnerEmail,
		},
		OriginalParentID: rec.ParentFolderID,
		OriginalSharedID: rec.FileID,
		Shared:           &SharedMeta{OwnerID: rec.OwnerEmail, OwnerName: rec.OwnerName},
		TrashedAt:        now,
	}
}

// heldByOwnerTrash reports whether the shared item or any ancestor folder
// is in its owner's authoritative trash. The walk follows recipient-side
// parents through share records and the user's own folders, bounded by a
// visited set and maxTreeDepth as a defensive invariant even though moves
// are cycle-guarded.
func heldByOwnerTrash(rec ShareRecord, receivedByID map[string]ShareRecord, ownedByID map[string]FileEntry, ownerTrash map[string]struct{}) bool {
	id := rec.FileID
	parent := rec.ParentFolderID

	visited := make(map[string]struct{})

	for depth := 0; depth < maxTreeDepth; depth++ {
		if _, trashed := ownerTrash[id]; trashed {
			return true
		}

		if parent == RootFolder {
			return false
		}

		if _, seen := visited[parent]; seen {
			return false
		}

		visited[parent] = struct{}{}

		if parentRec, ok := receivedByID[parent]; ok {
			id = parentRec.FileID
			parent = parentRec.ParentFolderID

			continue
		}

		if parentFE, ok := ownedByID[parent]; ok {
			id = parentFE.ID
			parent = parentFE.ParentID

			continue
		}

		// Parent not resolvable from the snapshot. Check the ID itself and
		// stop: an unknown ancestor cannot be walked further.
		_, trashed := ownerTrash[parent]

		return trashed
	}

	return false
}

// staleOwnerTrashMarkers cross-checks the owner-trashed marker set against
// the owners' authoritative trash snapshots. A marker for a still-live
// share whose file is not actually in the owner's trash means the owner
// restored it without the marker being cleared; report it for self-healing.
func staleOwnerTrashMarkers(snap Snapshot, receivedByID map[string]ShareRecord) []StaleMarker {
	var stale []StaleMarker

	ids := make([]string, 0, len(snap.OwnerTrashed))
	for id := range snap.OwnerTrashed {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if _, live := receivedByID[id]; !live {
			// No record: the marker may legitimately outlive the snapshot
			// (owner permanently deleted the file). Leave it alone.
			continue
		}

		if _, trashed := snap.OwnerTrashSnapshot[id]; !trashed {
			stale = append(stale, StaleMarker{Kind: MarkerOwnerTrashed, FileID: id})
		}
	}

	return stale
}

// staleFavorites reports favorite markers whose file ID resolves to
// nothing in the snapshot: not owned, not in the user's trash, no live
// share record, no recipient tombstone. The file was purged, so the marker
// can never resurface. A favorite on a held or trashed item stays put; the
// flag comes back with the item.
func staleFavorites(snap Snapshot, ownedByID map[string]FileEntry, ownTrashIDs map[string]struct{}, receivedByID map[string]ShareRecord, keptTombs map[string]TrashTombstone) []StaleMarker {
	ids := make([]string, 0, len(snap.Favorites))
	for id := range snap.Favorites {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var stale []StaleMarker

	for _, id := range ids {
		_, owned := ownedByID[id]
		_, inOwnTrash := ownTrashIDs[id]
		_, live := receivedByID[id]
		_, tombed := keptTombs[id]

		if !owned && !inOwnTrash && !live && !tombed {
			stale = append(stale, StaleMarker{Kind: MarkerFavorites, FileID: id})
		}
	}

	return stale
}

// sortPartitions orders every partition deterministically so identical
// snapshots produce byte-identical output.
func sortPartitions(p *Partitions) {
	byScope := func(entries []FileViewEntry) func(i, j int) bool {
		return func(i, j int) bool {
			if entries[i].ParentID() != entries[j].ParentID() {
				return entries[i].ParentID() < entries[j].ParentID()
			}

			if entries[i].ResolvedName != entries[j].ResolvedName {
				return entries[i].ResolvedName < entries[j].ResolvedName
			}

			return entries[i].ID() < entries[j].ID()
		}
	}

	sort.Slice(p.Active, byScope(p.Active))
	sort.Slice(p.SharedWithMe, byScope(p.SharedWithMe))
	sort.Slice(p.Trash, func(i, j int) bool {
		if p.Trash[i].Name != p.Trash[j].Name {
			return p.Trash[i].Name < p.Trash[j].Name
		}

		return p.Trash[i].ID < p.Trash[j].ID
	})
}

// nameScopes tracks taken names per (parent, kind) scope during a pass.
type nameScopes struct {
	taken map[scopeKey][]string
}

type scopeKey struct {
	parent string
	kind   Kind
}

func newNameScopes() *nameScopes {
	return &nameScopes{taken: make(map[scopeKey][]string)}
}

func (n *nameScopes) claim(parent string, kind Kind, name string) {
	k := scopeKey{parent: parent, kind: kind}
	n.taken[k] = append(n.taken[k], name)
}

// resolve returns a unique name within the scope and claims it.
func (n *nameScopes) resolve(parent string, kind Kind, candidate string) string {
	k := scopeKey{parent: parent, kind: kind}
	name := UniqueName(candidate, kind, n.taken[k])
	n.taken[k] = append(n.taken[k], name)

	return name
}
