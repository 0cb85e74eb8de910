package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/BurntSushi/migration"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/filegate/filegate/access"
	"github.com/filegate/filegate/bulk"
)

// This file implements the session, bundle, and code stores using MySQL as
// the backing database.

type msqlStore struct {
	db *sql.DB
}

var _ access.CodeStore = &msqlStore{}
var _ bulk.SessionStore = &msqlStore{}
var _ bulk.BundleStore = &msqlStore{}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

// Adapt the schema versioning for MySQL

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlStore connects to a MySQL database and returns a store satisfying
// the CodeStore, SessionStore, and BundleStore interfaces.
func NewMysqlStore(dial string) (*msqlStore, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &msqlStore{db: db}, nil
}

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS codes (
			objectid varchar(64) PRIMARY KEY,
			code varchar(255))`,
		`CREATE TABLE IF NOT EXISTS sessions (
			owner varchar(255) PRIMARY KEY,
			value blob)`,
		`CREATE TABLE IF NOT EXISTS bundles (
			id varchar(64) PRIMARY KEY,
			created datetime,
			value blob)`,
	}
	return execlist(tx, s)
}

// execlist executes a list of statements in a transaction, stopping at the
// first error.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}

func (ms *msqlStore) SetCode(id, code string) error {
	const query = `INSERT INTO codes (objectid, code) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE code = VALUES(code)`
	_, err := ms.db.Exec(query, id, code)
	return err
}

func (ms *msqlStore) GetCode(id string) (string, error) {
	const query = `SELECT code FROM codes WHERE objectid = ? LIMIT 1`
	var code string
	err := ms.db.QueryRow(query, id).Scan(&code)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Code store MySQL: %s", err.Error())
		}
		return "", access.ErrNoCode
	}
	return code, nil
}

func (ms *msqlStore) Get(owner string) (*bulk.Session, error) {
	const query = `SELECT value FROM sessions WHERE owner = ? LIMIT 1`
	var value []byte
	err := ms.db.QueryRow(query, owner).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Session store MySQL: %s", err.Error())
		}
		return nil, bulk.ErrNoSession
	}
	var s bulk.Session
	if err = json.Unmarshal(value, &s); err != nil {
		log.Printf("Session store MySQL: %s", err.Error())
		return nil, bulk.ErrNoSession
	}
	return &s, nil
}

func (ms *msqlStore) Put(owner string, s *bulk.Session) error {
	value, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const query = `INSERT INTO sessions (owner, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`
	_, err = ms.db.Exec(query, owner, value)
	return err
}

func (ms *msqlStore) Delete(owner string) error {
	const query = `DELETE FROM sessions WHERE owner = ?`
	_, err := ms.db.Exec(query, owner)
	return err
}

func (ms *msqlStore) Insert(b *bulk.Bundle) (string, error) {
	b.ID = uuid.NewString()
	b.Created = time.Now()
	value, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	const query = `INSERT INTO bundles (id, created, value) VALUES (?, ?, ?)`
	_, err = ms.db.Exec(query, b.ID, b.Created, value)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (ms *msqlStore) Lookup(id string) (*bulk.Bundle, error) {
	const query = `SELECT value FROM bundles WHERE id = ? LIMIT 1`
	var value []byte
	err := ms.db.QueryRow(query, id).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Bundle store MySQL: %s", err.Error())
		}
		return nil, bulk.ErrNoBundle
	}
	var b bulk.Bundle
	if err = json.Unmarshal(value, &b); err != nil {
		log.Printf("Bundle store MySQL: %s", err.Error())
		return nil, bulk.ErrNoBundle
	}
	return &b, nil
}
