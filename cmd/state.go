// Shared run state
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

package cmd

import (
	"os"
	"path/filepath"
	"time"

	contest "go-contest"
)

// Fixed names of the contest environment.  The environment directory
// is what every job unpacks and runs in, and the archive is the
// self-contained bundle shipped to execution hosts.
const (
	EnvDir      = "contest"
	EnvArchive  = "contest_and_teams.zip"
	TeamsSubdir = "teams"
	ResultsRoot = "results"
	ReplayName  = "replay-0"
)

// State is the mutable record of one contest run.  It is owned by
// the coordinating goroutine alone: planning fills in teams, layouts
// and standings before any execution starts, and outcomes are folded
// in strictly from that one goroutine, so no locking happens here.
type State struct {
	// Unique id for this execution of the contest, used to label
	// result directories and reports.
	RunID string

	ResultsDir string

	Teams     []*contest.Team
	Layouts   []contest.Layout
	Standings *contest.Standings
}

func MakeState() *State {
	id := time.Now().Format("2006-01-02T15:04:05")
	return &State{
		RunID:      id,
		ResultsDir: filepath.Join(ResultsRoot, "results_"+id),
	}
}

// Seal fixes the participant list and layout set and prepares the
// standings.  Everything recorded afterwards refers to these teams.
func (st *State) Seal(teams []*contest.Team, layouts []contest.Layout) error {
	st.Teams = teams
	st.Layouts = layouts
	st.Standings = contest.MakeStandings(teams)
	return os.MkdirAll(st.ResultsDir, 0755)
}

// LogFile is where the captured output of a match is kept.
func (st *State) LogFile(m *contest.Match) string {
	return filepath.Join(st.ResultsDir, m.Key()+".log")
}

// ReplayFile is where the retrieved replay of a match is kept.
func (st *State) ReplayFile(m *contest.Match) string {
	return filepath.Join(st.ResultsDir, m.Key()+".replay")
}

// WriteLog saves a match's captured output next to its replay.
func (st *State) WriteLog(m *contest.Match, output string) error {
	return os.WriteFile(st.LogFile(m), []byte(output), 0644)
}
