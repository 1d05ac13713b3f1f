/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: connection.go
Description: SQLite connection and schema migration for the droidquery history database.
*/

package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDBName = "history.db"
	defaultDBDir  = ".config/droidquery"
)

type DB struct {
	*gorm.DB
}

// DefaultPath returns ~/.config/droidquery/history.db, creating the directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	dir := filepath.Join(home, defaultDBDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create database directory")
	}
	return filepath.Join(dir, defaultDBName), nil
}

// Connect opens the database at path, or the default path when empty
func Connect(path string) (*DB, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	return &DB{db}, nil
}

// Initialize migrates the schema
func (db *DB) Initialize() error {
	if err := db.AutoMigrate(&QueryRecord{}, &StateSample{}, &ErrorLog{}); err != nil {
		return errors.Wrap(err, "failed to initialize database schema")
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
