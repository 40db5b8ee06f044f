// Game log result grammar
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
	"strconv"
	"strings"
)

// The game engine reports results in free text, one fact per line.
// ParseResult folds over the lines from top to bottom, each rule
// overwriting the state left by earlier lines, so that the last
// statement the engine makes is the one that counts.  Crash reports
// appear after any score line in the log and therefore take
// precedence; the score of a crashed game is pinned to 1.
//
// Text that matches no rule at all parses as a scoreless tie.  The
// function never fails: a degenerate value is always preferable to
// losing a match's accounting.
func ParseResult(output string, red, blue *Team) Outcome {
	var o Outcome
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "wins by") && strings.Contains(line, "points") {
			if n, ok := between(line, "wins by", "points"); ok {
				o.Score = n
				if strings.Contains(line, "Red") {
					o.Winner, o.Loser = red, blue
				} else if strings.Contains(line, "Blue") {
					o.Winner, o.Loser = blue, red
				}
			}
		}
		if strings.Contains(line, "The Blue team has returned at least ") {
			if n, ok := trailing(line, "The Blue team has returned at least "); ok {
				o.Score = n
				o.Winner, o.Loser = blue, red
			}
		} else if strings.Contains(line, "The Red team has returned at least ") {
			if n, ok := trailing(line, "The Red team has returned at least "); ok {
				o.Score = n
				o.Winner, o.Loser = red, blue
			}
		} else if strings.Contains(line, "Tie Game") {
			o.Winner, o.Loser = nil, nil
		} else if strings.Contains(line, "agent crashed") {
			o.Crashed = true
			if strings.Contains(line, "Red agent crashed") {
				o.Winner, o.Loser = blue, red
				o.Score = 1
				o.blame(red)
			}
			if strings.Contains(line, "Blue agent crashed") {
				o.Winner, o.Loser = red, blue
				o.Score = 1
				o.blame(blue)
			}
		}
	}

	// A crashed game always counts as 1 on the ladder, no matter
	// what score lines preceded the crash report.
	if o.Crashed {
		o.Score = 1
	}
	return o
}

// Record a crash attribution, at most once per side.
func (o *Outcome) blame(t *Team) {
	for _, c := range o.Crashes {
		if c == t {
			return
		}
	}
	o.Crashes = append(o.Crashes, t)
}

// Parse the integer between two markers on a line.
func between(line, from, to string) (uint, bool) {
	rest := line[strings.Index(line, from)+len(from):]
	if i := strings.Index(rest, to); i >= 0 {
		rest = rest[:i]
	}
	return number(rest)
}

// Parse the integer directly following a marker on a line.
func trailing(line, marker string) (uint, bool) {
	rest := line[strings.Index(line, marker)+len(marker):]
	if fields := strings.Fields(rest); len(fields) > 0 {
		return number(fields[0])
	}
	return 0, false
}

func number(s string) (uint, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	if n < 0 {
		n = -n
	}
	return uint(n), true
}
