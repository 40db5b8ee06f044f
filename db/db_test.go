// Result archive tests
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
	"path/filepath"
	"testing"

	contest "go-contest"
	"go-contest/cmd"
)

func testState(t *testing.T) *cmd.State {
	t.Helper()

	a := &contest.Team{Name: "A"}
	b := &contest.Team{Name: "B"}
	teams := []*contest.Team{a, b}
	layout := contest.Layout{Name: "defaultCapture"}

	st := &cmd.State{
		RunID:      "2024-05-13T20:32:43",
		ResultsDir: t.TempDir(),
		Teams:      teams,
		Layouts:    []contest.Layout{layout},
		Standings:  contest.MakeStandings(teams),
	}

	m := &contest.Match{Red: a, Blue: b, Layout: layout}
	st.Standings.Record(m, contest.ParseResult("Red team wins by 7 points", a, b))
	return st
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "contest.db")

	db, err := Open(file)
	if err != nil {
		t.Fatal(err)
	}

	st := testState(t)
	if err := db.Archive(ctx, st, "tester"); err != nil {
		t.Fatal(err)
	}

	table, err := db.QueryStandings(ctx, st.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Fatalf("%d archived standings, expected 2", len(table))
	}
	if table[0].Team != "A" || table[0].Points != 3 || table[0].Wins != 1 {
		t.Errorf("unexpected leader %+v", table[0])
	}
	if table[1].Team != "B" || table[1].Losses != 1 || table[1].Balance != -7 {
		t.Errorf("unexpected runner-up %+v", table[1])
	}
	db.Close()

	// The archive survives reopening.
	db, err = Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	table, err = db.QueryStandings(ctx, st.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Errorf("%d standings after reopening, expected 2", len(table))
	}
}

func TestQueryStandingsUnknownRun(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "contest.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	table, err := db.QueryStandings(context.Background(), "never")
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 0 {
		t.Errorf("%d standings for an unknown run, expected none", len(table))
	}
}
