// Job packaging
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
	"fmt"
	"path"

	contest "go-contest"
	"go-contest/cmd"
	"go-contest/exec"
)

// Command builds the game engine invocation for one match.  The -c
// flag makes the engine catch agent exceptions and enforce move time
// limits, and --record makes it emit the replay file the job
// retrieves afterwards.
func Command(m *contest.Match, steps uint) string {
	return fmt.Sprintf("python capture.py -c -r %s -b %s -l %s -i %d -q --record",
		m.Red.Entry, m.Blue.Entry, m.Layout.Name, steps)
}

// Package turns one planned match into a self-contained job.  Every
// job ships the full environment archive even though its content is
// identical across the batch, so that any single job can be rerun on
// any host with no shared setup step.  The trailing touch guarantees
// the replay path exists on the host, whether or not the engine got
// far enough to record one.
func Package(m *contest.Match, st *cmd.State, conf *cmd.Conf) *exec.Job {
	deflate := fmt.Sprintf("unzip -o %s -d %s ; chmod +x -R *", cmd.EnvArchive, cmd.EnvDir)
	game := Command(m, conf.Contest.MaxSteps)
	command := fmt.Sprintf("%s ; cd %s ; %s ; touch %s",
		deflate, cmd.EnvDir, game, cmd.ReplayName)

	return &exec.Job{
		Command: command,
		Push: []exec.Transfer{
			{Local: cmd.EnvArchive, Remote: cmd.EnvArchive},
		},
		Pull: []exec.Transfer{
			{Local: st.ReplayFile(m), Remote: path.Join(cmd.EnvDir, cmd.ReplayName)},
		},
		Key: m.Key(),
	}
}
