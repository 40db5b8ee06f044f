// Distributed batch driver
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

	"github.com/pkg/errors"

	contest "go-contest"
	"go-contest/cmd"
	"go-contest/exec"
)

// RunRemote packages the whole plan into jobs, submits the batch to
// the gateway in one blocking call, and reconciles the returned
// results against the plan.  Results arrive in whatever order the
// hosts finish; folding them is commutative, so arrival order never
// changes the final standings.
//
// The gateway owes exactly one result per job.  A duplicate key, an
// unknown key or a missing result means the execution substrate
// broke its contract, and the run is aborted rather than
// silently miscounted.
func RunRemote(ctx context.Context, st *cmd.State, conf *cmd.Conf, gw exec.Gateway, workers []*exec.Worker) error {
	matches := Plan(st.Teams, st.Layouts)
	if len(matches) == 0 {
		log.Print("Fewer than two teams, no games to play")
		return nil
	}

	jobs := make([]*exec.Job, 0, len(matches))
	planned := make(map[string]*contest.Match, len(matches))
	for _, m := range matches {
		j := Package(m, st, conf)
		if _, dup := planned[j.Key]; dup {
			return errors.Errorf("duplicate correlation key %q in batch", j.Key)
		}
		planned[j.Key] = m
		jobs = append(jobs, j)
	}

	log.Printf("Submitting %d games to %s (%d workers)", len(jobs), gw, len(workers))
	results, err := gw.Submit(ctx, jobs, workers)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		m, ok := planned[r.Key]
		if !ok {
			return errors.Errorf("result with unknown correlation key %q", r.Key)
		}
		if seen[r.Key] {
			return errors.Errorf("duplicate result for correlation key %q", r.Key)
		}
		seen[r.Key] = true

		var o contest.Outcome
		if r.Failed {
			// The substrate never ran the game.  Scored like
			// a crash, but no agent gets the blame.
			o = contest.Outcome{Score: 1, Crashed: true}
			log.Printf("Game %s could not be executed: %s", m.Key(), r.Output)
		} else {
			o = contest.ParseResult(r.Output, m.Red, m.Blue)
			if err := st.WriteLog(m, r.Output); err != nil {
				log.Print(err)
			}
		}
		st.Standings.Record(m, o)
		contest.Debug.Printf("Game %s: %s", m.Key(), o.String())
	}

	if missing := len(planned) - len(seen); missing > 0 {
		return errors.Errorf("%d games came back without a result", missing)
	}
	return nil
}
