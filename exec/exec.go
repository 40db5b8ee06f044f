// Remote execution boundary
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

package exec

import (
	"context"
	"fmt"
)

// A Transfer is one file movement between the coordinator and an
// execution host, in either direction.
type Transfer struct {
	Local  string
	Remote string
}

// A Job is the executable packaging of one match.  Push files are
// staged on the host before the command runs, Pull files are
// retrieved afterwards.  The key is opaque to the gateway and must
// come back on the result untouched.
type Job struct {
	Command string
	Push    []Transfer
	Pull    []Transfer
	Key     string
}

// A Result reports the execution of one job.  Failed is set when the
// substrate could not execute the job at all, in which case the exit
// status and output describe the transport fault, not the game.
type Result struct {
	Key    string
	Status int
	Output string
	Failed bool
}

// A Worker describes one execution host.  Capacity bounds how many
// jobs the host runs at once; a zero capacity counts as one.
type Worker struct {
	Addr     string `toml:"address"`
	User     string `toml:"user"`
	Password string `toml:"password,omitempty"`
	KeyFile  string `toml:"keyfile,omitempty"`
	Capacity uint   `toml:"capacity"`
}

func (w *Worker) String() string {
	return fmt.Sprintf("%s@%s", w.User, w.Addr)
}

func (w *Worker) slots() int64 {
	if w.Capacity == 0 {
		return 1
	}
	return int64(w.Capacity)
}

// A Gateway executes a batch of jobs on a pool of workers.  Submit
// blocks until every job has either completed or been declared
// failed, and returns exactly one result per submitted job, in no
// particular order.
type Gateway interface {
	fmt.Stringer
	Submit(ctx context.Context, jobs []*Job, workers []*Worker) ([]*Result, error)
}
