package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/alexjbarnes/vault-share/internal/errors"
)

// BlobStore is the encrypted blob collaborator as seen by the mutation
// handlers. Content is encrypted before storage and the returned ref is
// opaque; the engine only ever stores and deletes.
type BlobStore interface {
	Store(plaintext []byte) (ref string, err error)
	Delete(ref string) error
}

// ServiceConfig carries the dependencies for a Service.
type ServiceConfig struct {
	User     string
	Registry Registry
	Store    TombstoneStore
	Blobs    BlobStore
	Notify   Notifier

	// OnMutate is invoked after every committed mutation so the scheduler
	// can trigger a reconciliation pass. May be nil.
	OnMutate func()
}

// Service owns a user's materialized partitions and applies mutations to
// them: optimistic local update first, authoritative write second, revert
// on failure. All mutations and the reconciliation pass serialize on one
// mutex; handlers run to completion before yielding the materialized
// state.
type Service struct {
	user   string
	reg    Registry
	store  TombstoneStore
	blobs  BlobStore
	notify Notifier
	logger *slog.Logger

	onMutate func()

	mu    sync.Mutex
	snap  Snapshot
	parts Partitions
}

// NewService creates a Service for the given user.
func NewService(cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		user:     cfg.User,
		reg:      cfg.Registry,
		store:    cfg.Store,
		blobs:    cfg.Blobs,
		notify:   cfg.Notify,
		logger:   logger,
		onMutate: cfg.OnMutate,
		snap:     emptySnapshot(cfg.User),
	}
}

func emptySnapshot(user string) Snapshot {
	return Snapshot{
		User:               user,
		OwnerTrashed:       map[string]struct{}{},
		OwnerTrashSnapshot: map[string]struct{}{},
		RecipientTrashed:   map[string]struct{}{},
		Hidden:             map[string]struct{}{},
		Favorites:          map[string]struct{}{},
	}
}

// Partitions returns a copy of the current materialized partitions.
func (s *Service) Partitions() Partitions {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Partitions{
		Active:       append([]FileViewEntry(nil), s.parts.Active...),
		SharedWithMe: append([]FileViewEntry(nil), s.parts.SharedWithMe...),
		Trash:        append([]TrashTombstone(nil), s.parts.Trash...),
	}
}

// Sync runs one reconciliation pass: fetch the authoritative state, run
// the pure reconcile, apply tombstone adds/removes individually, heal
// stale markers, and swap in the new partitions. A failed pass leaves the
// previous materialized state untouched; the scheduler retries on the
// next trigger.
func (s *Service) Sync(ctx context.Context) error {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}

	res := Reconcile(snap)

	for _, skipped := range res.Skipped {
		s.logger.Warn("skipping malformed record", slog.String("detail", skipped))
	}

	// Apply tombstone changes one at a time. The stored list is never
	// replaced wholesale, so a tombstone a mutation created between the
	// snapshot fetch and here survives until the next pass observes it.
	for _, t := range res.AddTombstones {
		if err := s.store.PutRecipientTombstone(s.user, t); err != nil {
			s.logger.Warn("persisting recipient tombstone",
				slog.String("file_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, id := range res.RemoveTombstones {
		if err := s.store.DeleteRecipientTombstone(s.user, id); err != nil {
			s.logger.Warn("dropping recipient tombstone",
				slog.String("file_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.healStaleMarkers(ctx, res.Stale, &snap)

	// The snapshot's tombstone list must reflect what the pass decided so
	// optimistic recomputes between passes start from the same state.
	snap.RecipientTombstones = recipientTombstones(res.Partitions.Trash)

	s.mu.Lock()
	s.snap = snap
	s.parts = res.Partitions
	s.mu.Unlock()

	s.saveViews(res.Partitions)

	s.logger.Debug("reconciliation pass complete",
		slog.Int("active", len(res.Partitions.Active)),
		slog.Int("shared", len(res.Partitions.SharedWithMe)),
		slog.Int("trash", len(res.Partitions.Trash)),
		slog.Int("stale_markers", len(res.Stale)),
	)

	return nil
}

func (s *Service) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	snap := emptySnapshot(s.user)
	snap.Now = time.Now().UTC()

	var err error

	if snap.OwnedFiles, err = s.reg.ListOwnedFiles(ctx, s.user); err != nil {
		return snap, fmt.Errorf("listing owned files: %w", err)
	}

	if snap.OwnTrash, err = s.reg.ListTrash(ctx, s.user); err != nil {
		return snap, fmt.Errorf("listing trash: %w", err)
	}

	if snap.Shares, err = s.reg.ListShares(ctx, s.user); err != nil {
		return snap, fmt.Errorf("listing shares: %w", err)
	}

	for kind, dst := range map[MarkerKind]map[string]struct{}{
		MarkerOwnerTrashed:     snap.OwnerTrashed,
		MarkerRecipientTrashed: snap.RecipientTrashed,
		MarkerHidden:           snap.Hidden,
		MarkerFavorites:        snap.Favorites,
	} {
		ids, err := s.reg.GetMarkers(ctx, kind, s.user)
		if err != nil {
			return snap, fmt.Errorf("fetching %s markers: %w", kind, err)
		}

		for _, id := range ids {
			dst[id] = struct{}{}
		}
	}

	if snap.RecipientTombstones, err = s.store.RecipientTombstones(s.user); err != nil {
		return snap, fmt.Errorf("loading recipient tombstones: %w", err)
	}

	// One authoritative trash snapshot per distinct owner sharing with the
	// user, unioned for the ancestor-chain held check.
	owners := make(map[string]struct{})

	for _, rec := range snap.Shares {
		if rec.Recipient == s.user && rec.OwnerEmail != "" {
			owners[rec.OwnerEmail] = struct{}{}
		}
	}

	for owner := range owners {
		ids, err := s.reg.OwnerTrashSnapshot(ctx, owner)
		if err != nil {
			return snap, fmt.Errorf("fetching trash snapshot for %s: %w", owner, err)
		}

		for _, id := range ids {
			snap.OwnerTrashSnapshot[id] = struct{}{}
		}
	}

	return snap, nil
}

// healStaleMarkers removes marker entries the pass proved stale. Failures
// are logged only; the next pass detects them again.
func (s *Service) healStaleMarkers(ctx context.Context, stale []StaleMarker, snap *Snapshot) {
	byKind := make(map[MarkerKind][]string)
	for _, m := range stale {
		byKind[m.Kind] = append(byKind[m.Kind], m.FileID)
	}

	for kind, ids := range byKind {
		if err := s.reg.RemoveMarkers(ctx, kind, s.user, ids); err != nil {
			s.logger.Warn("healing stale markers",
				slog.String("kind", string(kind)),
				slog.Int("count", len(ids)),
				slog.String("error", err.Error()),
			)

			continue
		}

		s.logger.Info("healed stale markers",
			slog.String("kind", string(kind)),
			slog.Int("count", len(ids)),
		)

		var set map[string]struct{}

		switch kind {
		case MarkerOwnerTrashed:
			set = snap.OwnerTrashed
		case MarkerRecipientTrashed:
			set = snap.RecipientTrashed
		case MarkerHidden:
			set = snap.Hidden
		case MarkerFavorites:
			set = snap.Favorites
		}

		for _, id := range ids {
			delete(set, id)
		}
	}
}

func recipientTombstones(trash []TrashTombstone) []TrashTombstone {
	var out []TrashTombstone

	for _, t := range trash {
		if t.IsRecipient() {
			out = append(out, t)
		}
	}

	return out
}

func (s *Service) saveViews(p Partitions) {
	if err := s.store.SaveViews(s.user, p); err != nil {
		s.logger.Warn("caching partitions", slog.String("error", err.Error()))
	}
}

// recompute refreshes the materialized partitions from the current
// snapshot. Callers hold s.mu.
func (s *Service) recompute() {
	s.parts = Reconcile(s.snap).Partitions
}

// committed finalizes a successful mutation: recompute partitions, cache
// them, fire the scheduler hook, and signal the affected users' other
// sessions.
func (s *Service) committed(affected ...string) {
	s.recompute()
	s.saveViews(s.parts)

	if s.onMutate != nil {
		s.onMutate()
	}

	if s.notify == nil {
		return
	}

	seen := map[string]struct{}{}

	for _, u := range append(affected, s.user) {
		if _, dup := seen[u]; dup || u == "" {
			continue
		}

		seen[u] = struct{}{}
		s.notify.NotifyChanged(u)
	}
}

// --- snapshot lookups (callers hold s.mu) ---

func (s *Service) ownedEntry(id string) (FileEntry, bool) {
	for _, fe := range s.snap.OwnedFiles {
		if fe.ID == id {
			return fe, true
		}
	}

	return FileEntry{}, false
}

func (s *Service) ownTombstone(id string) (TrashTombstone, bool) {
	for _, t := range s.snap.OwnTrash {
		if t.ID == id {
			return t, true
		}
	}

	return TrashTombstone{}, false
}

func (s *Service) receivedShare(id string) (ShareRecord, bool) {
	for _, rec := range s.snap.Shares {
		if rec.FileID == id && rec.Recipient == s.user {
			return rec, true
		}
	}

	return ShareRecord{}, false
}

// shareRecordsFor returns every record for a file owned by the user.
func (s *Service) shareRecordsFor(id string) []ShareRecord {
	var out []ShareRecord

	for _, rec := range s.snap.Shares {
		if rec.FileID == id && rec.OwnerEmail == s.user {
			out = append(out, rec)
		}
	}

	return out
}

func (s *Service) ownedChildren(id string) []string {
	var out []string

	for _, fe := range s.snap.OwnedFiles {
		if fe.ParentID == id {
			out = append(out, fe.ID)
		}
	}

	return out
}

func (s *Service) trashChildren(id string) []string {
	var out []string

	for _, t := range s.snap.OwnTrash {
		if t.ParentID == id {
			out = append(out, t.ID)
		}
	}

	return out
}

func (s *Service) ownedParent(id string) (string, bool) {
	fe, ok := s.ownedEntry(id)
	if !ok {
		return "", false
	}

	return fe.ParentID, true
}

// siblingNames returns the active names in a (parent, kind) scope for the
// user's own tree, excluding excludeID.
func (s *Service) siblingNames(parent string, kind Kind, excludeID string) []string {
	trashed := make(map[string]struct{}, len(s.snap.OwnTrash))
	for _, t := range s.snap.OwnTrash {
		trashed[t.ID] = struct{}{}
	}

	var names []string

	for _, fe := range s.snap.OwnedFiles {
		if fe.ParentID != parent || fe.Kind != kind || fe.ID == excludeID {
			continue
		}

		if _, dead := trashed[fe.ID]; dead {
			continue
		}

		names = append(names, fe.Name)
	}

	return names
}

func (s *Service) trashNames(kind Kind) []string {
	var names []string

	for _, t := range s.snap.OwnTrash {
		if t.Kind == kind {
			names = append(names, t.Name)
		}
	}

	for _, t := range s.snap.RecipientTombstones {
		if t.Kind == kind {
			names = append(names, t.Name)
		}
	}

	return names
}

// snapshotRestore clones the mutable snapshot fields and returns a
// function that puts them back. Recorded into the transaction log as the
// inverse of a mutation's optimistic update.
func (s *Service) snapshotRestore() func() {
	saved := cloneSnapshot(s.snap)
	return func() { s.snap = saved }
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := in
	out.OwnedFiles = append([]FileEntry(nil), in.OwnedFiles...)
	out.OwnTrash = append([]TrashTombstone(nil), in.OwnTrash...)
	out.Shares = append([]ShareRecord(nil), in.Shares...)
	out.RecipientTombstones = append([]TrashTombstone(nil), in.RecipientTombstones...)
	out.OwnerTrashed = cloneSet(in.OwnerTrashed)
	out.OwnerTrashSnapshot = cloneSet(in.OwnerTrashSnapshot)
	out.RecipientTrashed = cloneSet(in.RecipientTrashed)
	out.Hidden = cloneSet(in.Hidden)
	out.Favorites = cloneSet(in.Favorites)

	return out
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}

	return out
}

// --- owner-side mutations ---

// DeleteOwned moves an owned file or folder (with its whole subtree) to
// the owner's trash. Recipients of any shared member see the item held
// (hidden but not trashed) until the owner restores or purges.
func (s *Service) DeleteOwned(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.ownedEntry(fileID)
	if !ok {
		return apperrors.Validation("delete", "file %s is not owned by %s", fileID, s.user)
	}

	if _, trashed := s.ownTombstone(fileID); trashed {
		return apperrors.Validation("delete", "file %s is already in trash", fileID)
	}

	members := Closure(fileID, s.ownedChildren)
	memberSet := make(map[string]struct{}, len(members))

	for _, id := range members {
		memberSet[id] = struct{}{}
	}

	now := time.Now().UTC()
	names := map[Kind][]string{
		KindFile:   s.trashNames(KindFile),
		KindFolder: s.trashNames(KindFolder),
	}

	tombs := make([]TrashTombstone, 0, len(members))

	for _, id := range members {
		m, _ := s.ownedEntry(id)

		// Children of a trashed folder keep their trash-local parent; a
		// member whose parent is not part of this delete is orphaned to
		// the trash root and unique-named there.
		parent := m.ParentID
		name := m.Name

		if _, parentTrashed := memberSet[m.ParentID]; !parentTrashed {
			parent = RootFolder
			name = UniqueName(m.Name, m.Kind, names[m.Kind])
			names[m.Kind] = append(names[m.Kind], name)
		}

		t := TrashTombstone{
			FileEntry:        m,
			OriginalParentID: m.ParentID,
			TrashedAt:        now,
		}
		t.Name = name
		t.ParentID = parent

		tombs = append(tombs, t)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.snap.OwnTrash = append(s.snap.OwnTrash, tombs...)
	s.removeOwnedEntries(memberSet)

	if err := s.reg.MoveToTrash(ctx, s.user, tombs); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("moving to trash: %w", err)
	}

	recipients, err := s.markSharedMembers(ctx, members, MarkerOwnerTrashed, true)
	if err != nil {
		tx.Rollback()
		s.recompute()

		return err
	}

	tx.Commit()
	s.logger.Info("moved to trash",
		slog.String("file_id", fileID),
		slog.String("name", fe.Name),
		slog.Int("members", len(members)),
	)
	s.committed(recipients...)

	return nil
}

func (s *Service) removeOwnedEntries(ids map[string]struct{}) {
	kept := s.snap.OwnedFiles[:0]

	for _, fe := range s.snap.OwnedFiles {
		if _, gone := ids[fe.ID]; !gone {
			kept = append(kept, fe)
		}
	}

	s.snap.OwnedFiles = append([]FileEntry(nil), kept...)
}

// markSharedMembers adds (or removes) a marker for every recipient of
// every shared member, returning the distinct recipients touched.
func (s *Service) markSharedMembers(ctx context.Context, members []string, kind MarkerKind, add bool) ([]string, error) {
	perRecipient := make(map[string][]string)

	for _, id := range members {
		for _, rec := range s.shareRecordsFor(id) {
			perRecipient[rec.Recipient] = append(perRecipient[rec.Recipient], id)
		}
	}

	recipients := make([]string, 0, len(perRecipient))

	for recipient, ids := range perRecipient {
		var err error
		if add {
			err = s.reg.AddMarkers(ctx, kind, recipient, ids)
		} else {
			err = s.reg.RemoveMarkers(ctx, kind, recipient, ids)
		}

		if err != nil {
			return nil, fmt.Errorf("updating %s markers for %s: %w", kind, recipient, err)
		}

		recipients = append(recipients, recipient)
	}

	return recipients, nil
}

// RestoreOwned restores an owner tombstone (and its trash-local subtree).
// The destination is the original parent when it still exists and is not
// itself trashed, otherwise the vault root. Recipients who independently
// trashed a shared member keep it in their own trash; for everyone else
// the item resurfaces.
func (s *Service) RestoreOwned(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.ownTombstone(fileID)
	if !ok {
		return apperrors.Validation("restore", "no trash entry for file %s", fileID)
	}

	members := Closure(fileID, s.trashChildren)
	memberSet := make(map[string]struct{}, len(members))

	for _, id := range members {
		memberSet[id] = struct{}{}
	}

	dest := root.OriginalParentID
	if _, alive := s.ownedEntry(dest); dest != RootFolder && !alive {
		dest = RootFolder
	}

	restored := make([]FileEntry, 0, len(members))

	for _, id := range members {
		t, _ := s.ownTombstone(id)
		fe := t.FileEntry

		if id == fileID {
			fe.ParentID = dest
			fe.Name = UniqueName(t.Name, t.Kind, s.siblingNames(dest, t.Kind, id))
		} else {
			// Subtree members were trashed together; their original parent
			// is being restored with them.
			fe.ParentID = t.OriginalParentID
		}

		restored = append(restored, fe)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.removeOwnTombstones(memberSet)
	s.snap.OwnedFiles = append(s.snap.OwnedFiles, restored...)

	if err := s.reg.RestoreFromTrash(ctx, s.user, members); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("restoring from trash: %w", err)
	}

	if fe := restored[0]; fe.ParentID != root.OriginalParentID || fe.Name != root.Name {
		if err := s.reg.UpdateFile(ctx, fe); err != nil {
			s.logger.Warn("updating restored entry destination",
				slog.String("file_id", fe.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	recipients, err := s.markSharedMembers(ctx, members, MarkerOwnerTrashed, false)
	if err != nil {
		tx.Rollback()
		s.recompute()

		return err
	}

	tx.Commit()
	s.logger.Info("restored from trash",
		slog.String("file_id", fileID),
		slog.Int("members", len(members)),
	)
	s.committed(recipients...)

	return nil
}

func (s *Service) removeOwnTombstones(ids map[string]struct{}) {
	kept := s.snap.OwnTrash[:0]

	for _, t := range s.snap.OwnTrash {
		if _, gone := ids[t.ID]; !gone {
			kept = append(kept, t)
		}
	}

	s.snap.OwnTrash = append([]TrashTombstone(nil), kept...)
}

// PurgeOwned permanently deletes an owner tombstone and its subtree:
// every recipient's share record is revoked, the blobs and file entries
// are destroyed, and recipients lose access immediately.
func (s *Service) PurgeOwned(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownTombstone(fileID); !ok {
		return apperrors.Validation("purge", "no trash entry for file %s", fileID)
	}

	members := Closure(fileID, s.trashChildren)
	memberSet := make(map[string]struct{}, len(members))

	var recipients []string

	for _, id := range members {
		memberSet[id] = struct{}{}

		for _, rec := range s.shareRecordsFor(id) {
			recipients = append(recipients, rec.Recipient)
		}
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	blobRefs := make(map[string]string, len(members))

	for _, id := range members {
		if t, ok := s.ownTombstone(id); ok && t.BlobRef != "" {
			blobRefs[id] = t.BlobRef
		}
	}

	s.removeOwnTombstones(memberSet)
	s.removeShareRecords(memberSet, "")

	for _, id := range members {
		if err := s.reg.DeleteShare(ctx, id, ""); err != nil {
			tx.Rollback()
			s.recompute()

			return fmt.Errorf("revoking shares for %s: %w", id, err)
		}
	}

	if err := s.reg.PermanentlyDelete(ctx, s.user, members); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("permanently deleting: %w", err)
	}

	// Blob deletion is best-effort: the authoritative records are gone, so
	// an orphaned blob is storage leakage, not a visibility bug.
	if s.blobs != nil {
		for id, ref := range blobRefs {
			if err := s.blobs.Delete(ref); err != nil {
				s.logger.Warn("deleting blob",
					slog.String("file_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	tx.Commit()
	s.logger.Info("permanently deleted",
		slog.String("file_id", fileID),
		slog.Int("members", len(members)),
		slog.Int("recipients", len(recipients)),
	)
	s.committed(recipients...)

	return nil
}

// removeShareRecords drops records for the given file IDs from the
// snapshot; recipient narrows to one recipient when non-empty.
func (s *Service) removeShareRecords(ids map[string]struct{}, recipient string) {
	kept := s.snap.Shares[:0]

	for _, rec := range s.snap.Shares {
		_, hit := ids[rec.FileID]
		if hit && (recipient == "" || rec.Recipient == recipient) {
			continue
		}

		kept = append(kept, rec)
	}

	s.snap.Shares = append([]ShareRecord(nil), kept...)
}

// --- recipient-side mutations ---

// DeleteReceived moves a received share into the recipient's own trash
// view. The owner's file and view are untouched.
func (s *Service) DeleteReceived(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.receivedShare(fileID)
	if !ok {
		return apperrors.Validation("delete", "no share of %s to %s", fileID, s.user)
	}

	if _, trashed := s.snap.RecipientTrashed[fileID]; trashed {
		return apperrors.Validation("delete", "share %s is already in trash", fileID)
	}

	tomb := TrashTombstone{
		FileEntry: FileEntry{
			ID:    rec.FileID,
			Name:  UniqueName(rec.FileName, rec.FileKind, s.trashNames(rec.FileKind)),
			Size:  rec.FileSize,
			Kind:  rec.FileKind,
			Owner: rec.OwnerEmail,
		},
		OriginalParentID: rec.ParentFolderID,
		OriginalSharedID: rec.FileID,
		Shared:           &SharedMeta{OwnerID: rec.OwnerEmail, OwnerName: rec.OwnerName},
		TrashedAt:        time.Now().UTC(),
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.snap.RecipientTrashed[fileID] = struct{}{}
	s.snap.RecipientTombstones = append(s.snap.RecipientTombstones, tomb)

	if err := s.reg.AddMarkers(ctx, MarkerRecipientTrashed, s.user, []string{fileID}); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("marking share trashed: %w", err)
	}

	if err := s.store.PutRecipientTombstone(s.user, tomb); err != nil {
		s.logger.Warn("persisting recipient tombstone",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	tx.Commit()
	s.logger.Info("share moved to trash",
		slog.String("file_id", fileID),
		slog.String("owner", rec.OwnerEmail),
	)
	s.committed()

	return nil
}

// RestoreReceived removes a recipient tombstone. The share record never
// stopped existing, so the next reconciliation pass re-admits the live
// share into shared-with-me.
func (s *Service) RestoreReceived(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRecipientTombstone(fileID) {
		return apperrors.Validation("restore", "no trash entry for share %s", fileID)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	delete(s.snap.RecipientTrashed, fileID)
	s.removeRecipientTombstone(fileID)

	if err := s.reg.RemoveMarkers(ctx, MarkerRecipientTrashed, s.user, []string{fileID}); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("unmarking share trashed: %w", err)
	}

	if err := s.store.DeleteRecipientTombstone(s.user, fileID); err != nil {
		s.logger.Warn("dropping recipient tombstone",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	tx.Commit()
	s.logger.Info("share restored from trash", slog.String("file_id", fileID))
	s.committed()

	return nil
}

// PurgeReceived discards a trashed share forever: the recipient's share
// record is deleted and the file is hidden from every partition. The
// owner's file is untouched; only a fresh share makes it visible again.
func (s *Service) PurgeReceived(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRecipientTombstone(fileID) {
		return apperrors.Validation("purge", "no trash entry for share %s", fileID)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.snap.Hidden[fileID] = struct{}{}
	delete(s.snap.RecipientTrashed, fileID)
	s.removeRecipientTombstone(fileID)
	s.removeShareRecords(map[string]struct{}{fileID: {}}, s.user)

	if err := s.reg.AddMarkers(ctx, MarkerHidden, s.user, []string{fileID}); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("hiding share: %w", err)
	}

	if err := s.reg.DeleteShare(ctx, fileID, s.user); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("deleting share record: %w", err)
	}

	if err := s.reg.RemoveMarkers(ctx, MarkerRecipientTrashed, s.user, []string{fileID}); err != nil {
		s.logger.Warn("clearing trashed marker after purge",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.store.DeleteRecipientTombstone(s.user, fileID); err != nil {
		s.logger.Warn("dropping recipient tombstone",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	tx.Commit()
	s.logger.Info("share discarded forever", slog.String("file_id", fileID))
	s.committed()

	return nil
}

func (s *Service) hasRecipientTombstone(fileID string) bool {
	for _, t := range s.snap.RecipientTombstones {
		if t.ID == fileID {
			return true
		}
	}

	return false
}

func (s *Service) removeRecipientTombstone(fileID string) {
	kept := s.snap.RecipientTombstones[:0]

	for _, t := range s.snap.RecipientTombstones {
		if t.ID != fileID {
			kept = append(kept, t)
		}
	}

	s.snap.RecipientTombstones = append([]TrashTombstone(nil), kept...)
}

// --- sharing ---

// Share grants a recipient access to an owned file, or to a folder and
// its whole subtree, each descendant parented to the shared ancestor.
func (s *Service) Share(ctx context.Context, fileID, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.ownedEntry(fileID)
	if !ok {
		return apperrors.Validation("share", "file %s is not owned by %s", fileID, s.user)
	}

	if recipient == s.user {
		return apperrors.Validation("share", "cannot share with yourself")
	}

	if s.shareExists(fileID, recipient) {
		return apperrors.Validation("share", "file %s is already shared with %s", fileID, recipient)
	}

	members := Closure(fileID, s.ownedChildren)
	now := time.Now().UTC()

	records := make([]ShareRecord, 0, len(members))

	for _, id := range members {
		// A descendant already shared with this recipient keeps its
		// existing record.
		if id != fileID && s.shareExists(id, recipient) {
			continue
		}

		m, _ := s.ownedEntry(id)

		// The shared root lands at the recipient's shared-with-me root;
		// descendants keep their parent inside the shared tree.
		parent := m.ParentID
		if id == fileID {
			parent = RootFolder
		}

		records = append(records, ShareRecord{
			FileID:         m.ID,
			Recipient:      recipient,
			FileName:       m.Name,
			FileSize:       m.Size,
			FileKind:       m.Kind,
			OwnerEmail:     s.user,
			ParentFolderID: parent,
			SharedAt:       now,
		})
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.snap.Shares = append(s.snap.Shares, records...)

	for _, rec := range records {
		if err := s.reg.CreateShare(ctx, rec); err != nil {
			tx.Rollback()
			s.recompute()

			return fmt.Errorf("creating share for %s: %w", rec.FileID, err)
		}
	}

	tx.Commit()
	s.logger.Info("shared",
		slog.String("file_id", fileID),
		slog.String("name", fe.Name),
		slog.String("recipient", recipient),
		slog.Int("members", len(members)),
	)
	s.committed(recipient)

	return nil
}

func (s *Service) shareExists(fileID, recipient string) bool {
	for _, rec := range s.snap.Shares {
		if rec.FileID == fileID && rec.Recipient == recipient {
			return true
		}
	}

	return false
}

// Unshare revokes a recipient's access to an owned file, including every
// descendant record for folders. The recipient's shared-with-me entry
// disappears on their next reconciliation.
func (s *Service) Unshare(ctx context.Context, fileID, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedEntry(fileID); !ok {
		return apperrors.Validation("unshare", "file %s is not owned by %s", fileID, s.user)
	}

	if !s.shareExists(fileID, recipient) {
		return apperrors.Validation("unshare", "file %s is not shared with %s", fileID, recipient)
	}

	members := Closure(fileID, s.ownedChildren)
	memberSet := make(map[string]struct{}, len(members))

	for _, id := range members {
		memberSet[id] = struct{}{}
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.removeShareRecords(memberSet, recipient)

	for _, id := range members {
		if err := s.reg.DeleteShare(ctx, id, recipient); err != nil {
			tx.Rollback()
			s.recompute()

			return fmt.Errorf("deleting share for %s: %w", id, err)
		}
	}

	tx.Commit()
	s.logger.Info("unshared",
		slog.String("file_id", fileID),
		slog.String("recipient", recipient),
		slog.Int("members", len(members)),
	)
	s.committed(recipient)

	return nil
}

// --- rename / move / upload ---

// Rename renames an owned entry, resolving conflicts within its sibling
// scope, and propagates the new name to every recipient's share record.
func (s *Service) Rename(ctx context.Context, fileID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.ownedEntry(fileID)
	if !ok {
		return apperrors.Validation("rename", "file %s is not owned by %s", fileID, s.user)
	}

	if newName == "" {
		return apperrors.Validation("rename", "name must not be empty")
	}

	name := UniqueName(newName, fe.Kind, s.siblingNames(fe.ParentID, fe.Kind, fe.ID))
	updated := fe
	updated.Name = name

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.replaceOwnedEntry(updated)
	s.updateShareMeta(fileID, &name, nil)

	if err := s.reg.UpdateFile(ctx, updated); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("renaming file: %w", err)
	}

	recipients := s.propagateShareUpdate(ctx, fileID, ShareUpdate{Name: &name})

	tx.Commit()
	s.logger.Info("renamed",
		slog.String("file_id", fileID),
		slog.String("from", fe.Name),
		slog.String("to", name),
	)
	s.committed(recipients...)

	return nil
}

func (s *Service) replaceOwnedEntry(fe FileEntry) {
	for i := range s.snap.OwnedFiles {
		if s.snap.OwnedFiles[i].ID == fe.ID {
			s.snap.OwnedFiles[i] = fe
			return
		}
	}
}

func (s *Service) updateShareMeta(fileID string, name *string, parent *string) {
	for i := range s.snap.Shares {
		if s.snap.Shares[i].FileID != fileID || s.snap.Shares[i].OwnerEmail != s.user {
			continue
		}

		if name != nil {
			s.snap.Shares[i].FileName = *name
		}

		if parent != nil {
			s.snap.Shares[i].ParentFolderID = *parent
		}
	}
}

// propagateShareUpdate mutates every recipient's record in place.
// Failures are logged, not fatal: the records self-correct because the
// recipients' reconciliation reads the file metadata fresh on each pass.
func (s *Service) propagateShareUpdate(ctx context.Context, fileID string, upd ShareUpdate) []string {
	records := s.shareRecordsFor(fileID)
	if len(records) == 0 {
		return nil
	}

	if err := s.reg.UpdateShare(ctx, fileID, upd); err != nil {
		s.logger.Warn("propagating share update",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}

	recipients := make([]string, 0, len(records))
	for _, rec := range records {
		recipients = append(recipients, rec.Recipient)
	}

	return recipients
}

// Move re-parents an owned entry into another folder. Moving a shared
// item into an unshared folder is rejected: it would silently revoke the
// recipients' visibility. Moving into a received shared folder auto-shares
// the item back to that folder's owner so it does not vanish from their
// view.
func (s *Service) Move(ctx context.Context, fileID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.ownedEntry(fileID)
	if !ok {
		return s.moveReceived(ctx, fileID, targetID)
	}

	if targetID == fileID {
		return apperrors.Validation("move", "cannot move a folder into itself")
	}

	if fe.Kind == KindFolder && IsDescendant(targetID, fileID, s.ownedParent) {
		return apperrors.Validation("move", "cannot move a folder into its own descendant")
	}

	targetRec, targetIsReceived := s.receivedShare(targetID)
	if targetIsReceived && targetRec.FileKind != KindFolder {
		return apperrors.Validation("move", "target %s is not a folder", targetID)
	}

	if targetID != RootFolder && !targetIsReceived {
		target, ok := s.ownedEntry(targetID)
		if !ok || target.Kind != KindFolder {
			return apperrors.Validation("move", "target %s is not a folder", targetID)
		}
	}

	sourceShared := len(s.shareRecordsFor(fileID)) > 0
	if sourceShared && targetID != RootFolder && !targetIsReceived && !s.folderIsShared(targetID) {
		return apperrors.Validation("move", "cannot move a shared item into an unshared folder")
	}

	name := UniqueName(fe.Name, fe.Kind, s.siblingNames(targetID, fe.Kind, fe.ID))
	updated := fe
	updated.ParentID = targetID
	updated.Name = name

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.replaceOwnedEntry(updated)
	s.updateShareMeta(fileID, &name, &targetID)

	if err := s.reg.UpdateFile(ctx, updated); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("moving file: %w", err)
	}

	recipients := s.propagateShareUpdate(ctx, fileID, ShareUpdate{Name: &name, ParentFolderID: &targetID})

	// Destination owned by someone else: share the moved item back to the
	// folder's owner so the move does not strand it invisibly for them.
	if targetIsReceived && targetRec.OwnerEmail != s.user && !s.shareExists(fileID, targetRec.OwnerEmail) {
		backRec := ShareRecord{
			FileID:         updated.ID,
			Recipient:      targetRec.OwnerEmail,
			FileName:       updated.Name,
			FileSize:       updated.Size,
			FileKind:       updated.Kind,
			OwnerEmail:     s.user,
			ParentFolderID: targetID,
			SharedAt:       time.Now().UTC(),
		}

		s.snap.Shares = append(s.snap.Shares, backRec)

		if err := s.reg.CreateShare(ctx, backRec); err != nil {
			tx.Rollback()
			s.recompute()

			return fmt.Errorf("sharing moved item with folder owner: %w", err)
		}

		recipients = append(recipients, targetRec.OwnerEmail)
	}

	tx.Commit()
	s.logger.Info("moved",
		slog.String("file_id", fileID),
		slog.String("target", targetID),
		slog.String("name", name),
	)
	s.committed(recipients...)

	return nil
}

// moveReceived re-parents the user's own view of a received share.
// Callers hold s.mu.
func (s *Service) moveReceived(ctx context.Context, fileID, targetID string) error {
	rec, ok := s.receivedShare(fileID)
	if !ok {
		return apperrors.Validation("move", "file %s is neither owned nor shared with %s", fileID, s.user)
	}

	if targetID == fileID {
		return apperrors.Validation("move", "cannot move a folder into itself")
	}

	if targetID != RootFolder {
		if target, owned := s.ownedEntry(targetID); owned {
			if target.Kind != KindFolder {
				return apperrors.Validation("move", "target %s is not a folder", targetID)
			}
		} else if tr, received := s.receivedShare(targetID); !received || tr.FileKind != KindFolder {
			return apperrors.Validation("move", "target %s is not a folder", targetID)
		}
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	for i := range s.snap.Shares {
		if s.snap.Shares[i].FileID == fileID && s.snap.Shares[i].Recipient == s.user {
			s.snap.Shares[i].ParentFolderID = targetID
		}
	}

	upd := ShareUpdate{ParentFolderID: &targetID, Recipient: s.user}
	if err := s.reg.UpdateShare(ctx, fileID, upd); err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("moving received share: %w", err)
	}

	tx.Commit()
	s.logger.Info("moved received share",
		slog.String("file_id", fileID),
		slog.String("owner", rec.OwnerEmail),
		slog.String("target", targetID),
	)
	s.committed()

	return nil
}

// folderIsShared reports whether an owned folder has at least one share
// record, directly or through a shared ancestor.
func (s *Service) folderIsShared(folderID string) bool {
	cur := folderID

	for depth := 0; depth < maxTreeDepth; depth++ {
		if len(s.shareRecordsFor(cur)) > 0 {
			return true
		}

		parent, ok := s.ownedParent(cur)
		if !ok || parent == RootFolder {
			return false
		}

		cur = parent
	}

	return false
}

// Upload stores encrypted content and creates a new owned entry in the
// target folder. Uploading into a received shared folder auto-shares the
// entry with the folder's owner; uploading into the user's own shared
// folder auto-shares it with every existing recipient of that folder.
// Storage is always attributed to the uploader.
func (s *Service) Upload(ctx context.Context, name string, content []byte, parentID string) (FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return FileEntry{}, apperrors.Validation("upload", "name must not be empty")
	}

	targetRec, targetIsReceived := s.receivedShare(parentID)
	if targetIsReceived && targetRec.FileKind != KindFolder {
		return FileEntry{}, apperrors.Validation("upload", "target %s is not a folder", parentID)
	}

	if parentID != RootFolder && !targetIsReceived {
		target, ok := s.ownedEntry(parentID)
		if !ok || target.Kind != KindFolder {
			return FileEntry{}, apperrors.Validation("upload", "target %s is not a folder", parentID)
		}
	}

	ref, err := s.blobs.Store(content)
	if err != nil {
		return FileEntry{}, fmt.Errorf("storing blob: %w", err)
	}

	// The client-generated ID is provisional; the server assigns the real
	// one on first persist.
	entry := FileEntry{
		ID:        uuid.NewString(),
		Name:      UniqueName(name, KindFile, s.siblingNames(parentID, KindFile, "")),
		Size:      int64(len(content)),
		Kind:      KindFile,
		ParentID:  parentID,
		Owner:     s.user,
		CreatedAt: time.Now().UTC(),
		BlobRef:   ref,
	}

	persisted, err := s.reg.CreateFile(ctx, entry)
	if err != nil {
		if delErr := s.blobs.Delete(ref); delErr != nil {
			s.logger.Warn("deleting blob after failed upload", slog.String("error", delErr.Error()))
		}

		return FileEntry{}, fmt.Errorf("creating file entry: %w", err)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	s.snap.OwnedFiles = append(s.snap.OwnedFiles, persisted)

	var autoRecipients []string

	switch {
	case targetIsReceived && targetRec.OwnerEmail != s.user:
		autoRecipients = []string{targetRec.OwnerEmail}
	case parentID != RootFolder:
		for _, rec := range s.shareRecordsFor(parentID) {
			autoRecipients = append(autoRecipients, rec.Recipient)
		}
	}

	for _, recipient := range autoRecipients {
		rec := ShareRecord{
			FileID:         persisted.ID,
			Recipient:      recipient,
			FileName:       persisted.Name,
			FileSize:       persisted.Size,
			FileKind:       persisted.Kind,
			OwnerEmail:     s.user,
			ParentFolderID: parentID,
			SharedAt:       time.Now().UTC(),
		}

		s.snap.Shares = append(s.snap.Shares, rec)

		if err := s.reg.CreateShare(ctx, rec); err != nil {
			s.logger.Warn("auto-sharing uploaded entry",
				slog.String("file_id", persisted.ID),
				slog.String("recipient", recipient),
				slog.String("error", err.Error()),
			)
		}
	}

	tx.Commit()
	s.logger.Info("uploaded",
		slog.String("file_id", persisted.ID),
		slog.String("name", persisted.Name),
		slog.Int("bytes", len(content)),
		slog.Int("auto_shares", len(autoRecipients)),
	)
	s.committed(autoRecipients...)

	return persisted, nil
}

// --- favorites ---

// Favorite marks a file in the user's favorites set. Works for owned and
// received entries alike; favorites are independent of ownership.
func (s *Service) Favorite(ctx context.Context, fileID string) error {
	return s.setFavorite(ctx, fileID, true)
}

// Unfavorite removes a file from the user's favorites set.
func (s *Service) Unfavorite(ctx context.Context, fileID string) error {
	return s.setFavorite(ctx, fileID, false)
}

func (s *Service) setFavorite(ctx context.Context, fileID string, fav bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, owned := s.ownedEntry(fileID)
	_, received := s.receivedShare(fileID)

	if !owned && !received {
		return apperrors.Validation("favorite", "file %s is neither owned nor shared with %s", fileID, s.user)
	}

	var tx txLog
	tx.Record(s.snapshotRestore())

	var err error
	if fav {
		s.snap.Favorites[fileID] = struct{}{}
		err = s.reg.AddMarkers(ctx, MarkerFavorites, s.user, []string{fileID})
	} else {
		delete(s.snap.Favorites, fileID)
		err = s.reg.RemoveMarkers(ctx, MarkerFavorites, s.user, []string{fileID})
	}

	if err != nil {
		tx.Rollback()
		s.recompute()

		return fmt.Errorf("updating favorites: %w", err)
	}

	tx.Commit()
	s.committed()

	return nil
}
