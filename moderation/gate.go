// Package moderation implements the two-reviewer gate: a video is published
// or rejected only once two different moderators agree.
package moderation

import "errors"

var (
	ErrNoActor         = errors.New("moderator id is required")
	ErrAlreadyApproved = errors.New("you have already approved this video")
	ErrAlreadyRefused  = errors.New("you have already refused this video")
	ErrFinalized       = errors.New("video has already been moderated")
	// ErrConflict means the flags changed between read and write.
	ErrConflict = errors.New("video was moderated concurrently, reload and retry")
)

// Flags are the moderation columns of a video. An empty VerifiedBy or
// RefusedBy means no moderator holds that vote.
type Flags struct {
	IsVerified bool
	IsRefused  bool
	VerifiedBy string
	RefusedBy  string
}

// State is the derived position of a video in the gate.
type State int

const (
	Pending State = iota
	ApprovedOnce
	RefusedOnce
	// Split holds one approval and one refusal from different moderators.
	Split
	Verified
	Refused
)

var stateNames = [...]string{"pending", "approved_once", "refused_once", "split", "verified", "refused"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further action is accepted.
func (s State) Terminal() bool { return s == Verified || s == Refused }

func (f Flags) State() State {
	switch {
	case f.IsRefused:
		return Refused
	case f.IsVerified:
		return Verified
	case f.VerifiedBy != "" && f.RefusedBy != "":
		return Split
	case f.VerifiedBy != "":
		return ApprovedOnce
	case f.RefusedBy != "":
		return RefusedOnce
	}
	return Pending
}

// Approve records actor's approval. The first approval only sets the
// "once" vote; a second approval from someone else publishes the video. An
// actor switching from refuse to approve withdraws their refusal.
func Approve(f Flags, actor string) (Flags, error) {
	if actor == "" {
		return f, ErrNoActor
	}
	if f.State().Terminal() {
		return f, ErrFinalized
	}
	if f.VerifiedBy == actor {
		return f, ErrAlreadyApproved
	}
	if f.RefusedBy == actor {
		f.RefusedBy = ""
	}
	if f.VerifiedBy == "" {
		f.VerifiedBy = actor
	} else {
		f.IsVerified = true
	}
	return f, nil
}

// Refuse mirrors Approve.
func Refuse(f Flags, actor string) (Flags, error) {
	if actor == "" {
		return f, ErrNoActor
	}
	if f.State().Terminal() {
		return f, ErrFinalized
	}
	if f.RefusedBy == actor {
		return f, ErrAlreadyRefused
	}
	if f.VerifiedBy == actor {
		f.VerifiedBy = ""
	}
	if f.RefusedBy == "" {
		f.RefusedBy = actor
	} else {
		f.IsRefused = true
	}
	return f, nil
}
