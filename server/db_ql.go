package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	_ "github.com/cznic/ql/driver"

	"github.com/filegate/filegate/access"
	"github.com/filegate/filegate/bulk"
	"github.com/google/uuid"
)

// This file implements the session, bundle, and code stores on top of the
// QL embedded database. Intended for development and single-node setups
// that want persistence without running MySQL.

type qlStore struct {
	db *sql.DB
}

var _ access.CodeStore = &qlStore{}
var _ bulk.SessionStore = &qlStore{}
var _ bulk.BundleStore = &qlStore{}

const qlInit = `
	CREATE TABLE IF NOT EXISTS codes (
		objectid string,
		code string
	);
	CREATE INDEX IF NOT EXISTS codesid ON codes (objectid);
	CREATE TABLE IF NOT EXISTS sessions (
		owner string,
		value blob
	);
	CREATE INDEX IF NOT EXISTS sessionowner ON sessions (owner);
	CREATE TABLE IF NOT EXISTS bundles (
		id string,
		created time,
		value blob
	);
	CREATE INDEX IF NOT EXISTS bundleid ON bundles (id);
`

// NewQlStore opens a QL database in the named file. The special filename
// "memory" keeps everything in the server's memory.
func NewQlStore(filename string) (*qlStore, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", "mem.db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlInit)
	}
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, err
	}
	return &qlStore{db: db}, nil
}

func (qc *qlStore) SetCode(id, code string) error {
	const dbUpdate = `UPDATE codes SET code = ?2 WHERE objectid == ?1`
	const dbInsert = `INSERT INTO codes VALUES (?1, ?2)`
	return qlUpsert(qc.db, dbUpdate, dbInsert, id, code)
}

func (qc *qlStore) GetCode(id string) (string, error) {
	const dbLookup = `SELECT code FROM codes WHERE objectid == ?1 LIMIT 1`
	var code string
	err := qc.db.QueryRow(dbLookup, id).Scan(&code)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Code store QL: %s", err.Error())
		}
		return "", access.ErrNoCode
	}
	return code, nil
}

func (qc *qlStore) Get(owner string) (*bulk.Session, error) {
	const dbLookup = `SELECT value FROM sessions WHERE owner == ?1 LIMIT 1`
	var value []byte
	err := qc.db.QueryRow(dbLookup, owner).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Session store QL: %s", err.Error())
		}
		return nil, bulk.ErrNoSession
	}
	var s bulk.Session
	if err = json.Unmarshal(value, &s); err != nil {
		return nil, bulk.ErrNoSession
	}
	return &s, nil
}

func (qc *qlStore) Put(owner string, s *bulk.Session) error {
	value, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const dbUpdate = `UPDATE sessions SET value = ?2 WHERE owner == ?1`
	const dbInsert = `INSERT INTO sessions VALUES (?1, ?2)`
	return qlUpsert(qc.db, dbUpdate, dbInsert, owner, value)
}

func (qc *qlStore) Delete(owner string) error {
	const dbDelete = `DELETE FROM sessions WHERE owner == ?1`
	_, err := performExec(qc.db, dbDelete, owner)
	return err
}

func (qc *qlStore) Insert(b *bulk.Bundle) (string, error) {
	b.ID = uuid.NewString()
	b.Created = time.Now()
	value, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	const dbInsert = `INSERT INTO bundles VALUES (?1, ?2, ?3)`
	_, err = performExec(qc.db, dbInsert, b.ID, b.Created, value)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (qc *qlStore) Lookup(id string) (*bulk.Bundle, error) {
	const dbLookup = `SELECT value FROM bundles WHERE id == ?1 LIMIT 1`
	var value []byte
	err := qc.db.QueryRow(dbLookup, id).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Bundle store QL: %s", err.Error())
		}
		return nil, bulk.ErrNoBundle
	}
	var b bulk.Bundle
	if err = json.Unmarshal(value, &b); err != nil {
		return nil, bulk.ErrNoBundle
	}
	return &b, nil
}

// qlUpsert updates a row and inserts it if the update touched nothing.
func qlUpsert(db *sql.DB, update, insert string, args ...interface{}) error {
	result, err := performExec(db, update, args...)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		_, err = performExec(db, insert, args...)
	}
	return err
}

// QL requires every statement to run inside a transaction.
func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	var result sql.Result
	result, err = tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}
