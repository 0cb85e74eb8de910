package bulk

import (
	"log"

	"github.com/filegate/filegate/store"
)

// RecordSessions keeps each owner's session as one mutable JSON record in a
// store.Store. Every Put overwrites the whole record. If the record was
// removed out from under us (the backing store is external and something
// else may delete records), Put simply recreates it; that fallback is the
// only retry anywhere in the session path.
type RecordSessions struct {
	js store.JSONStore
}

var _ SessionStore = &RecordSessions{}

// NewRecordSessions returns a SessionStore persisting into s.
func NewRecordSessions(s store.Store) *RecordSessions {
	return &RecordSessions{js: store.NewJSON(s)}
}

func (rs *RecordSessions) Get(owner string) (*Session, error) {
	var s Session
	err := rs.js.Open(owner, &s)
	if err != nil {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (rs *RecordSessions) Put(owner string, s *Session) error {
	err := rs.js.Save(owner, s)
	if err != nil {
		// the record may have vanished between our read and this
		// write; recreate rather than surface a transient fault
		log.Println("session record rewrite:", owner, err)
		err = rs.js.Save(owner, s)
	}
	return err
}

func (rs *RecordSessions) Delete(owner string) error {
	return rs.js.Delete(owner)
}
