// Match planning
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

package sched

import (
	contest "go-contest"
)

// Plan enumerates the all-play-all match set: every unordered pair
// of distinct teams meets once on every layout.  Pairs are generated
// in lexicographic order over the input team order, layouts
// innermost, so the same inputs always yield the same sequence.  The
// earlier team of a pair takes the red side.
//
// Fewer than two teams yield an empty plan; the caller decides what
// a tournament without games means.
func Plan(teams []*contest.Team, layouts []contest.Layout) []*contest.Match {
	var plan []*contest.Match
	for i := 0; i < len(teams); i++ {
		for j := i + 1; j < len(teams); j++ {
			for _, l := range layouts {
				plan = append(plan, &contest.Match{
					Red:    teams[i],
					Blue:   teams[j],
					Layout: l,
				})
			}
		}
	}
	return plan
}
