package sync

import (
	"github.com/dhkang/photocal/internal/model"
	"github.com/dhkang/photocal/internal/store"
)

// changeSet captures what moved on each side of a linked pair since
// the last successful sync. Change detection is hash based: a side
// counts as changed when its current content hash differs from the
// hash recorded on the link.
type changeSet struct {
	localChanged  bool
	localDeleted  bool
	remoteChanged bool
	remoteDeleted bool
}

// detectChanges compares both sides of a linked pair against the
// link's recorded state. A nil remote means the provider did not
// return the event for the requested window, which is treated as
// unchanged, never as deleted; deletion requires the provider's
// explicit cancelled flag.
func detectChanges(ln *store.Link, local *model.Event, rem *model.RemoteEvent) changeSet {
	var cs changeSet
	if local != nil {
		cs.localDeleted = local.Deleted()
		cs.localChanged = local.ContentHash() != ln.LastSyncHash
	}
	if rem != nil {
		cs.remoteDeleted = rem.Deleted
		cs.remoteChanged = !rem.Deleted && rem.ContentHash() != ln.LastSyncHash
	}
	return cs
}

// classifyConflict reports whether a change set needs a resolution
// decision, and of which kind. Deletions dominate edits: an edit on
// one side racing a deletion on the other is a deletion conflict, not
// a both-modified one.
func classifyConflict(cs changeSet) (model.ConflictKind, bool) {
	switch {
	case cs.remoteDeleted:
		return model.KindDeletedRemotely, true
	case cs.localDeleted:
		return model.KindDeletedLocally, true
	case cs.localChanged && cs.remoteChanged:
		return model.KindBothModified, true
	}
	return 0, false
}
