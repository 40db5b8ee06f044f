// Result archive
//
// Copyright (c) 2023, 2024  The go-contest authors
//
// This file is part of go-contest.
//
// go-contest is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-contest is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-contest. If not, see
// <http://www.gnu.org/licenses/>

package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log"
	"path"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	contest "go-contest"
	"go-contest/cmd"
)

//go:embed *.sql
var sqlDir embed.FS

// DB keeps every run's final standings and game rows, so standings
// can be compared across contest dates.  The SQL statements live
// under ./ as one file each; create- files run at open time, the
// rest are prepared.  Reads and writes go through separate
// connections, the write side serialised to one.
type DB struct {
	read  *sql.DB
	write *sql.DB

	queries  map[string]*sql.Stmt
	commands map[string]*sql.Stmt
}

// Standing is one archived standings row.
type Standing struct {
	contest.Stats
	Run string
}

// Open the archive, creating the schema when necessary.
func Open(file string) (*DB, error) {
	read, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	read.SetConnMaxLifetime(0)
	read.SetMaxIdleConns(1)

	write, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, err
	}
	write.SetConnMaxLifetime(0)
	write.SetMaxIdleConns(1)
	write.SetMaxOpenConns(1)

	db := &DB{
		read:     read,
		write:    write,
		queries:  make(map[string]*sql.Stmt),
		commands: make(map[string]*sql.Stmt),
	}

	for _, pragma := range []string{
		// https://www.sqlite.org/pragma.html#pragma_journal_mode
		"journal_mode = WAL",
		// https://www.sqlite.org/pragma.html#pragma_synchronous
		"synchronous = normal",
		// https://www.sqlite.org/pragma.html#pragma_foreign_keys
		"foreign_keys = on",
	} {
		contest.Debug.Printf("Run PRAGMA %v", pragma)
		if _, err = db.write.Exec("PRAGMA " + pragma + ";"); err != nil {
			return nil, err
		}
	}

	entries, err := sqlDir.ReadDir(".")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		base := path.Base(entry.Name())
		data, err := fs.ReadFile(sqlDir, entry.Name())
		if err != nil {
			return nil, err
		}

		name := strings.TrimSuffix(base, ".sql")
		switch {
		case strings.HasPrefix(name, "create-"):
			_, err = db.write.Exec(string(data))
			contest.Debug.Printf("Executed query %v", name)
		case strings.HasPrefix(name, "select-"):
			db.queries[name], err = db.read.Prepare(string(data))
			contest.Debug.Printf("Registered query %v", name)
		default:
			db.commands[name], err = db.write.Prepare(string(data))
			contest.Debug.Printf("Registered command %v", name)
		}
		if err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Archive stores the completed run: one runs row, one standings row
// per team and one games row per recorded game, all in a single
// transaction so a crash never leaves a half-archived run behind.
func (db *DB) Archive(ctx context.Context, st *cmd.State, organizer string) error {
	tx, err := db.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.StmtContext(ctx, db.commands["insert-run"]).
		ExecContext(ctx, st.RunID, organizer)
	if err != nil {
		return err
	}
	run, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, s := range st.Standings.Table() {
		_, err = tx.StmtContext(ctx, db.commands["insert-standing"]).ExecContext(ctx,
			run, s.Team, s.Points, s.Wins, s.Draws, s.Losses, s.Crashes, s.Balance)
		if err != nil {
			return err
		}
	}

	for _, g := range st.Standings.Games() {
		var winner sql.NullString
		if g.Winner != "" {
			winner = sql.NullString{String: g.Winner, Valid: true}
		}
		_, err = tx.StmtContext(ctx, db.commands["insert-game"]).ExecContext(ctx,
			run, g.Red, g.Blue, g.Layout, g.Score, winner)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryStandings returns the archived standings of one run, best
// team first.
func (db *DB) QueryStandings(ctx context.Context, run string) ([]*Standing, error) {
	rows, err := db.queries["select-standings"].QueryContext(ctx, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var table []*Standing
	for rows.Next() {
		s := &Standing{Run: run}
		err = rows.Scan(&s.Team, &s.Points, &s.Wins, &s.Draws,
			&s.Losses, &s.Crashes, &s.Balance)
		if err != nil {
			return nil, err
		}
		table = append(table, s)
	}
	return table, rows.Err()
}

func (db *DB) Close() {
	// https://www.sqlite.org/pragma.html#pragma_optimize
	if _, err := db.write.Exec("PRAGMA optimize;"); err != nil {
		log.Print(err)
	}
	if err := db.write.Close(); err != nil {
		log.Print(err)
	}
	if err := db.read.Close(); err != nil {
		log.Print(err)
	}
}
