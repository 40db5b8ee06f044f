// Report generator tests
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

package web

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	contest "go-contest"
	"go-contest/cmd"
)

func testState(t *testing.T) *cmd.State {
	t.Helper()

	a := &contest.Team{Name: "A"}
	b := &contest.Team{Name: "B"}
	c := &contest.Team{Name: "C"}
	teams := []*contest.Team{a, b, c}
	layout := contest.Layout{Name: "defaultCapture"}

	st := &cmd.State{
		RunID:      "2024-05-13T20:32:43",
		ResultsDir: t.TempDir(),
		Teams:      teams,
		Layouts:    []contest.Layout{layout},
		Standings:  contest.MakeStandings(teams),
	}

	record := func(red, blue *contest.Team, output string) {
		m := &contest.Match{Red: red, Blue: blue, Layout: layout}
		st.Standings.Record(m, contest.ParseResult(output, red, blue))
		if err := st.WriteLog(m, output); err != nil {
			t.Fatal(err)
		}
	}
	record(a, b, "Red team wins by 5 points")
	record(a, c, "Tie Game")
	record(b, c, "Blue agent crashed")
	return st
}

func TestWriteReport(t *testing.T) {
	st := testState(t)
	conf := &cmd.Conf{
		Contest: cmd.ContestConf{Organizer: "tester"},
		Web:     cmd.WebConf{Output: t.TempDir()},
	}

	if err := WriteReport(st, conf); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(conf.Web.Output, "results_"+st.RunID)
	data, err := os.ReadFile(filepath.Join(dir, "results.html"))
	if err != nil {
		t.Fatal(err)
	}
	page := string(data)

	for _, want := range []string{
		"A", "B", "C",
		// B crashed against C, so the games table flags it
		"FAILED",
		// The crashed game's score column is masked
		"--",
		"recorded_games_" + st.RunID + ".tar",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("results page lacks %q", want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir,
		"recorded_games_"+st.RunID+".tar")); err != nil {
		t.Errorf("no recorded games bundle: %s", err)
	}

	index, err := os.ReadFile(filepath.Join(conf.Web.Output, "results.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), "results_"+st.RunID) {
		t.Error("index page does not link the run")
	}
}

// A compressed games bundle has to come out as valid gzip over
// valid tar, trailers flushed.
func TestWriteReportCompressed(t *testing.T) {
	st := testState(t)
	conf := &cmd.Conf{
		Contest: cmd.ContestConf{Organizer: "tester", CompressLogs: true},
		Web:     cmd.WebConf{Output: t.TempDir()},
	}

	if err := WriteReport(st, conf); err != nil {
		t.Fatal(err)
	}

	bundle := filepath.Join(conf.Web.Output, "results_"+st.RunID,
		"recorded_games_"+st.RunID+".tar")
	file, err := os.Open(bundle)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("bundle is not valid gzip: %s", err)
	}
	defer gz.Close()

	var logs int
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("bundle is not valid tar: %s", err)
		}
		if strings.HasSuffix(hdr.Name, ".log") {
			logs++
		}
	}
	if logs != 3 {
		t.Errorf("bundle holds %d game logs, expected 3", logs)
	}
}

func TestWriteReportNoGames(t *testing.T) {
	a := &contest.Team{Name: "A"}
	st := &cmd.State{
		RunID:      "2024-05-13T21:00:00",
		ResultsDir: t.TempDir(),
		Teams:      []*contest.Team{a},
		Standings:  contest.MakeStandings([]*contest.Team{a}),
	}
	conf := &cmd.Conf{
		Contest: cmd.ContestConf{Organizer: "tester"},
		Web:     cmd.WebConf{Output: t.TempDir()},
	}

	if err := WriteReport(st, conf); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(conf.Web.Output,
		"results_"+st.RunID, "results.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Only one team") {
		t.Error("single-team page lacks its explanation")
	}
}
