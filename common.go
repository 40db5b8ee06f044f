// Common types and constants
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

package contest

import (
	"fmt"
	"time"
)

// A Team is one contest participant.  The entry point is the path of
// the agent factory inside the contest environment, relative to the
// environment root.  Both fields are fixed once intake is done.
type Team struct {
	Name      string
	Entry     string
	Submitted time.Time
}

func (t *Team) String() string {
	return t.Name
}

// A Layout names the map a match is played on.  Random layouts carry
// a generated seed in their name and are tagged as such, but the name
// is otherwise opaque to the scheduler.
type Layout struct {
	Name   string
	Random bool
}

func (l Layout) String() string {
	return l.Name
}

// A Match is one planned contest between two teams on one layout.
// The red/blue assignment only fixes the sides for execution; the
// pair itself is unordered for identity purposes and the planner
// generates each unordered pair exactly once per layout.
type Match struct {
	Red    *Team
	Blue   *Team
	Layout Layout
}

// Key returns the match identity used to correlate an asynchronously
// returned job with its match.  Keys are unique across a plan as long
// as team names are unique.
func (m *Match) Key() string {
	return fmt.Sprintf("%s_vs_%s_%s", m.Red.Name, m.Blue.Name, m.Layout.Name)
}

func (m *Match) String() string {
	return fmt.Sprintf("%s vs. %s (layout: %s)", m.Red, m.Blue, m.Layout)
}

// An Outcome is the parsed result of one match.  A nil winner and
// loser means the game was tied.  Crashes lists the teams whose agent
// the game log blames for a crash, at most once per side.
type Outcome struct {
	Score   uint
	Winner  *Team
	Loser   *Team
	Crashed bool
	Crashes []*Team
}

func (o *Outcome) String() string {
	switch {
	case o.Crashed && o.Winner == nil:
		return "failed"
	case o.Crashed:
		return fmt.Sprintf("%s won by fault", o.Winner)
	case o.Winner == nil:
		return fmt.Sprintf("tie (%d)", o.Score)
	default:
		return fmt.Sprintf("%s won by %d", o.Winner, o.Score)
	}
}
