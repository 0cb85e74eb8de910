package store

import (
	"encoding/json"
	"log"
)

// A JSONStore wraps a Store and persists Go values as JSON records instead
// of streams. It is the "mutable external record" primitive: Save overwrites
// whatever was stored under the key before. The session and bundle record
// stores are built on it.
type JSONStore struct {
	Store
}

// NewJSON creates a JSONStore using s for storage.
func NewJSON(s Store) JSONStore {
	return JSONStore{s}
}

// Open reads the record under key and unmarshals it into value.
func (js JSONStore) Open(key string, value interface{}) error {
	r, _, err := js.Store.Open(key)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(NewReader(r))
	err = dec.Decode(value)
	err2 := r.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		log.Println("json store:", key, err2)
	}
	return err
}

// Save stores value under key, replacing any previous record.
func (js JSONStore) Save(key string, value interface{}) error {
	err := js.Delete(key)
	if err != nil {
		return err
	}
	w, err := js.Store.Create(key)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	err = enc.Encode(value)
	err2 := w.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		log.Println("json store:", key, err2)
	}
	return err
}
