package access

import (
	"github.com/filegate/filegate/store"
)

// RecordCodes persists code bindings as JSON records in a store.Store,
// one record per object id. It survives restarts when backed by a
// FileSystem or S3 store.
type RecordCodes struct {
	js store.JSONStore
}

var _ CodeStore = &RecordCodes{}

type codeRecord struct {
	ID   string
	Code string
}

// NewRecordCodes returns a CodeStore writing records into s.
func NewRecordCodes(s store.Store) *RecordCodes {
	return &RecordCodes{js: store.NewJSON(s)}
}

func (rc *RecordCodes) SetCode(id, code string) error {
	return rc.js.Save(id, codeRecord{ID: id, Code: code})
}

func (rc *RecordCodes) GetCode(id string) (string, error) {
	var rec codeRecord
	err := rc.js.Open(id, &rec)
	if err != nil {
		return "", ErrNoCode
	}
	return rec.Code, nil
}
