package bulk

import (
	"github.com/pkg/errors"

	"github.com/filegate/filegate/util"
)

// A StateError reports a bulk command issued in the wrong state, or a
// finalize whose preconditions are not met. It is user-visible and
// recoverable; the session (if any) is left unchanged.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

var errNoBuilding = &StateError{Msg: "no bulk session in progress; start one first"}

// The Aggregator drives the per-owner session state machine:
//
//	no session -> building -> finalized (bundle created, session removed)
//
// Mutating operations for one owner are serialized with a per-owner lock,
// so a read-modify-write cycle never loses an update. Different owners
// never contend.
type Aggregator struct {
	Sessions SessionStore
	Bundles  BundleStore

	locks *util.KeyLock
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(sessions SessionStore, bundles BundleStore) *Aggregator {
	return &Aggregator{
		Sessions: sessions,
		Bundles:  bundles,
		locks:    util.NewKeyLock(),
	}
}

// Start begins a new building session for owner with an empty file list.
// Name and text may be given inline or left empty and supplied later via
// SetName and SetText; both entry protocols end in the same state. Starting
// over an existing session discards it, so a retried start is harmless.
func (a *Aggregator) Start(owner, name, text string) error {
	a.locks.Lock(owner)
	defer a.locks.Unlock(owner)
	return a.Sessions.Put(owner, &Session{
		Owner: owner,
		Name:  name,
		Text:  text,
		Files: []FileRef{},
	})
}

// SetName sets the session's name. Valid only while building.
func (a *Aggregator) SetName(owner, name string) error {
	return a.update(owner, func(s *Session) { s.Name = name })
}

// SetText sets the session's text. Valid only while building.
func (a *Aggregator) SetText(owner, text string) error {
	return a.update(owner, func(s *Session) { s.Text = text })
}

func (a *Aggregator) update(owner string, mutate func(*Session)) error {
	a.locks.Lock(owner)
	defer a.locks.Unlock(owner)
	s, err := a.Sessions.Get(owner)
	if err != nil {
		return errNoBuilding
	}
	mutate(s)
	return a.Sessions.Put(owner, s)
}

// AddFile appends a file reference to the session and returns the new file
// count. References with a non-positive size are rejected. Valid only while
// building.
func (a *Aggregator) AddFile(owner string, ref FileRef) (int, error) {
	if ref.Size <= 0 {
		return 0, &StateError{Msg: "cannot add an empty file to a bulk session"}
	}
	a.locks.Lock(owner)
	defer a.locks.Unlock(owner)
	s, err := a.Sessions.Get(owner)
	if err != nil {
		return 0, errNoBuilding
	}
	s.Files = append(s.Files, ref)
	err = a.Sessions.Put(owner, s)
	if err != nil {
		return 0, err
	}
	return len(s.Files), nil
}

// Finalize freezes the owner's session into a bundle, removes the session,
// and returns the new bundle's id. It requires a non-empty name, text, and
// file list; otherwise the session is left as it was and a StateError is
// returned.
func (a *Aggregator) Finalize(owner string) (string, error) {
	a.locks.Lock(owner)
	defer a.locks.Unlock(owner)
	s, err := a.Sessions.Get(owner)
	if err != nil {
		return "", errNoBuilding
	}
	if len(s.Files) == 0 {
		return "", &StateError{Msg: "no files were added to the bulk session"}
	}
	if s.Name == "" || s.Text == "" {
		return "", &StateError{Msg: "set both a name and a text before finishing the bulk session"}
	}
	id, err := a.Bundles.Insert(&Bundle{
		Name:  s.Name,
		Text:  s.Text,
		Files: s.Files,
	})
	if err != nil {
		return "", errors.Wrap(err, "finalize")
	}
	a.Sessions.Delete(owner)
	return id, nil
}

// Abandon discards the owner's session, if any.
func (a *Aggregator) Abandon(owner string) error {
	a.locks.Lock(owner)
	defer a.locks.Unlock(owner)
	return a.Sessions.Delete(owner)
}
