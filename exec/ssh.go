// SSH cluster gateway
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
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	contest "go-contest"
)

// SSH runs jobs on a pool of remote hosts over SSH, one multiplexed
// connection per worker.  Jobs are pulled from a shared queue, so a
// fast host naturally takes more of the batch; a weighted semaphore
// holds each worker to its configured capacity.
type SSH struct {
	// Connection establishment timeout
	Timeout time.Duration
}

func (*SSH) String() string { return "ssh" }

func (g *SSH) Submit(ctx context.Context, jobs []*Job, workers []*Worker) ([]*Result, error) {
	if len(workers) == 0 {
		return nil, errors.New("no workers in pool")
	}

	queue := make(chan *Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	// The channel is sized so that every job can report without a
	// dedicated collector: exactly one result is produced per job.
	results := make(chan *Result, len(jobs))

	var eg errgroup.Group
	for _, w := range workers {
		w := w
		eg.Go(func() error {
			return g.serve(ctx, w, queue, results)
		})
	}
	if err := eg.Wait(); err != nil {
		log.Print(err)
	}

	// Jobs left in the queue found no live worker.  They still owe
	// the coordinator a result each, synthesized as failures.
	for j := range queue {
		results <- &Result{
			Key:    j.Key,
			Status: -1,
			Output: "",
			Failed: true,
		}
	}

	out := make([]*Result, 0, len(jobs))
	for len(out) < len(jobs) {
		out = append(out, <-results)
	}
	return out, nil
}

// Serve one worker: drain the shared queue, running up to the
// worker's capacity in concurrent sessions.
func (g *SSH) serve(ctx context.Context, w *Worker, queue <-chan *Job, results chan<- *Result) error {
	client, err := g.dial(w)
	if err != nil {
		return errors.Wrapf(err, "worker %s unreachable", w)
	}
	defer client.Close()
	contest.Debug.Println("Connected to", w)

	var (
		sem = semaphore.NewWeighted(w.slots())
		wg  sync.WaitGroup
	)
	for job := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- &Result{Key: job.Key, Status: -1, Failed: true}
			continue
		}
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			defer sem.Release(1)
			results <- g.run(client, w, j)
		}(job)
	}
	wg.Wait()
	return nil
}

func (g *SSH) dial(w *Worker) (*ssh.Client, error) {
	var auth []ssh.AuthMethod
	if w.KeyFile != "" {
		raw, err := os.ReadFile(w.KeyFile)
		if err != nil {
			return nil, err
		}
		key, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(key))
	}
	if w.Password != "" {
		auth = append(auth, ssh.Password(w.Password))
	}

	addr := w.Addr
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}

	timeout := g.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User: w.User,
		Auth: auth,
		// The pool is a closed set of course machines, not the
		// open internet.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	})
}

// Run one job on an established connection: stage the push files,
// execute the command with combined output capture, then retrieve
// the pull files.  A transport fault at any step marks the result as
// failed; a missing pull file does not.
func (g *SSH) run(client *ssh.Client, w *Worker, job *Job) *Result {
	contest.Debug.Printf("Job %s scheduled on %s", job.Key, w)

	for _, t := range job.Push {
		if err := push(client, t); err != nil {
			log.Printf("Job %s: staging %s on %s: %s", job.Key, t.Remote, w, err)
			return &Result{Key: job.Key, Status: -1, Output: err.Error(), Failed: true}
		}
	}

	sess, err := client.NewSession()
	if err != nil {
		return &Result{Key: job.Key, Status: -1, Output: err.Error(), Failed: true}
	}
	raw, err := sess.CombinedOutput(job.Command)
	sess.Close()

	status := 0
	if err != nil {
		exit, ok := err.(*ssh.ExitError)
		if !ok {
			return &Result{Key: job.Key, Status: -1, Output: err.Error(), Failed: true}
		}
		status = exit.ExitStatus()
	}

	for _, t := range job.Pull {
		if err := pull(client, t); err != nil {
			// The remote side produces the artifact on a
			// best-effort basis only.
			contest.Debug.Printf("Job %s: no %s from %s: %s", job.Key, t.Remote, w, err)
		}
	}

	contest.Debug.Printf("Job %s finished on %s (status %d)", job.Key, w, status)
	return &Result{Key: job.Key, Status: status, Output: string(raw)}
}

// Stage a local file on the remote host.  The transfer is a plain
// write through the remote shell, which keeps the worker contract
// down to an SSH server and a POSIX userland.
func push(client *ssh.Client, t Transfer) error {
	data, err := os.ReadFile(t.Local)
	if err != nil {
		return err
	}
	sess, err := client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.Stdin = bytes.NewReader(data)
	return sess.Run(fmt.Sprintf("cat > %s", shellQuote(t.Remote)))
}

// Retrieve a remote file into a local path.
func pull(client *ssh.Client, t Transfer) error {
	sess, err := client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	data, err := sess.Output(fmt.Sprintf("cat %s", shellQuote(t.Remote)))
	if err != nil {
		return err
	}
	return os.WriteFile(t.Local, data, 0644)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
