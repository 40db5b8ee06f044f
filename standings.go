// Ladder and standings aggregation
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

import "sort"

// CrashSentinel is the score shown in game listings when a match
// ended in a crash.  It is display-only: the ladder has already
// absorbed the real score by the time a game row is emitted.
const CrashSentinel = 9999

// A Game is one recorded match result, as shown in reports.
type Game struct {
	Red    string
	Blue   string
	Layout string
	Score  uint
	Winner string
}

// Stats is the derived standing of one team.  It is always computed
// wholesale from the team's ladder, never updated in place.
type Stats struct {
	Team    string
	Points  uint
	Wins    uint
	Draws   uint
	Losses  uint
	Crashes uint
	Balance int
}

// Standings folds match outcomes into per-team ladders.  Each ladder
// entry is the signed score of one match: positive for a win,
// negative for a loss, and for winner-less games the raw score on
// both sides.  Folding is commutative over the set of outcomes, so
// results may be recorded in any arrival order.
type Standings struct {
	teams   []*Team
	ladder  map[string][]int
	crashes map[string]uint
	games   []Game
}

func MakeStandings(teams []*Team) *Standings {
	s := &Standings{
		teams:   teams,
		ladder:  make(map[string][]int),
		crashes: make(map[string]uint),
	}
	for _, t := range teams {
		s.ladder[t.Name] = nil
	}
	return s
}

// Record folds one outcome into the ladder and the game listing.
func (s *Standings) Record(m *Match, o Outcome) {
	if o.Winner == nil {
		s.ladder[m.Red.Name] = append(s.ladder[m.Red.Name], int(o.Score))
		s.ladder[m.Blue.Name] = append(s.ladder[m.Blue.Name], int(o.Score))
	} else {
		s.ladder[o.Winner.Name] = append(s.ladder[o.Winner.Name], int(o.Score))
		s.ladder[o.Loser.Name] = append(s.ladder[o.Loser.Name], -int(o.Score))
	}
	for _, t := range o.Crashes {
		s.crashes[t.Name]++
	}

	game := Game{
		Red:    m.Red.Name,
		Blue:   m.Blue.Name,
		Layout: m.Layout.Name,
		Score:  o.Score,
	}
	if o.Winner != nil {
		game.Winner = o.Winner.Name
	}
	if o.Crashed {
		game.Score = CrashSentinel
	}
	s.games = append(s.games, game)
}

// Ladder returns the signed score history of one team.
func (s *Standings) Ladder(team string) []int {
	return s.ladder[team]
}

// Games returns the recorded game rows in record order.
func (s *Standings) Games() []Game {
	return s.games
}

// Played reports how many games have been recorded.
func (s *Standings) Played() int {
	return len(s.games)
}

// Table recomputes every team's standing from its ladder and returns
// the teams ordered by points, best first.  Calling it twice on the
// same standings yields identical tables.
func (s *Standings) Table() []*Stats {
	table := make([]*Stats, 0, len(s.teams))
	for _, t := range s.teams {
		st := &Stats{Team: t.Name, Crashes: s.crashes[t.Name]}
		for _, score := range s.ladder[t.Name] {
			switch {
			case score > 0:
				st.Wins++
			case score == 0:
				st.Draws++
			default:
				st.Losses++
			}
			st.Balance += score
		}
		st.Points = 3*st.Wins + st.Draws
		table = append(table, st)
	}

	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Points > table[j].Points
	})
	return table
}
