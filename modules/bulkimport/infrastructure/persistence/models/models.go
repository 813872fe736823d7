package models

import (
	"database/sql"
	"time"
)

type StagedRecord struct {
	ID          string
	FileID      string
	SequenceNo  int
	Data        []byte
	Status      string
	Conflict    bool
	Message     sql.NullString
	ErrorSource sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Transfer struct {
	FileID         string
	FileName       sql.NullString
	UserName       sql.NullString
	Status         string
	ValidCount     int
	DuplicateCount int
	ConflictCount  int
	ErrorCount     int
	CreatedCount   int
	UpdatedCount   int
	Message        sql.NullString
	IsRead         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Document struct {
	Identifier       string
	Data             []byte
	ImportFileID     sql.NullString
	ImportSequenceNo sql.NullInt32
	ImportedAt       sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
