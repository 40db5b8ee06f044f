// Local sequential driver
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
	"context"
	"log"
	"os"
	osexec "os/exec"
	"path/filepath"

	contest "go-contest"
	"go-contest/cmd"
)

// RunLocal plays every planned match in plan order, one at a time in
// the prepared environment directory, folding each outcome into the
// standings before the next game starts.  Wall-clock cost grows
// linearly with the plan, which is why the batch driver exists.
func RunLocal(ctx context.Context, st *cmd.State, conf *cmd.Conf) error {
	matches := Plan(st.Teams, st.Layouts)
	if len(matches) == 0 {
		log.Print("Fewer than two teams, no games to play")
		return nil
	}

	for i, m := range matches {
		log.Printf("Running game %d/%d: %s", i+1, len(matches), m)

		run := osexec.CommandContext(ctx, "sh", "-c", Command(m, conf.Contest.MaxSteps))
		run.Dir = cmd.EnvDir
		raw, err := run.CombinedOutput()
		if err != nil {
			if _, ok := err.(*osexec.ExitError); !ok {
				return err
			}
			log.Printf("Game %s failed, log in %s", m.Key(), st.LogFile(m))
		}
		output := string(raw)

		if err := st.WriteLog(m, output); err != nil {
			log.Print(err)
		}

		o := contest.ParseResult(output, m.Red, m.Blue)
		st.Standings.Record(m, o)
		contest.Debug.Printf("Game %s: %s", m.Key(), o.String())

		keepReplay(st, m)
	}
	return nil
}

// The engine drops its recording as replay-* in the environment
// directory; move it next to the match log.  Absence is fine, the
// match is complete without its replay.
func keepReplay(st *cmd.State, m *contest.Match) {
	replays, err := filepath.Glob(filepath.Join(cmd.EnvDir, "replay*"))
	if err != nil || len(replays) == 0 {
		return
	}
	if err := os.Rename(replays[0], st.ReplayFile(m)); err != nil {
		log.Print(err)
	}
}
