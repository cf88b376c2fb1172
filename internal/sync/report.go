package sync

import "github.com/dhkang/photocal/internal/model"

// Counts splits one mutation type by direction. Push is local to
// remote, Pull is remote to local.
type Counts struct {
	Push int
	Pull int
}

func (c Counts) Total() int { return c.Push + c.Pull }

// OpError records a single per-event operation that failed without
// aborting the run.
type OpError struct {
	LocalID  string
	RemoteID string
	Op       string
	Message  string
}

// Report summarises one sync run.
type Report struct {
	Created Counts
	Updated Counts
	Deleted Counts

	// Conflicts deferred this run, awaiting manual resolution.
	Conflicts []model.Conflict

	Errors []OpError

	// Partial is set when at least one event was skipped or deferred,
	// so a follow-up run or manual resolution is still needed.
	Partial bool
}

// Changes returns the total number of mutations applied on either side.
func (r *Report) Changes() int {
	return r.Created.Total() + r.Updated.Total() + r.Deleted.Total()
}

func (r *Report) recordError(localID, remoteID, op string, err error) {
	r.Errors = append(r.Errors, OpError{
		LocalID:  localID,
		RemoteID: remoteID,
		Op:       op,
		Message:  err.Error(),
	})
	r.Partial = true
}
