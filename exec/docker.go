// Docker-based local gateway
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
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	contest "go-contest"
)

// Docker runs jobs in throwaway containers on the local host.  It
// implements the same gateway contract as the SSH pool, so a single
// machine with Docker can stand in for a cluster; submissions still
// cannot touch the coordinator's filesystem.
type Docker struct {
	// Image to instantiate per job.  Needs a POSIX shell, unzip
	// and a Python runtime for the game engine.
	Image string
}

func (*Docker) String() string { return "docker" }

func (d *Docker) Submit(ctx context.Context, jobs []*Job, workers []*Worker) ([]*Result, error) {
	cont, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		return nil, errors.Wrap(err, "cannot reach docker daemon")
	}

	// The worker pool degenerates to a concurrency budget: the
	// address of a local container is meaningless.
	var slots int64
	for _, w := range workers {
		slots += w.slots()
	}
	if slots == 0 {
		slots = int64(runtime.NumCPU())
	}

	var (
		sem     = semaphore.NewWeighted(slots)
		wg      sync.WaitGroup
		results = make(chan *Result, len(jobs))
	)
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- &Result{Key: job.Key, Status: -1, Failed: true}
			continue
		}
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			defer sem.Release(1)
			results <- d.run(ctx, cont, j)
		}(job)
	}
	wg.Wait()

	out := make([]*Result, 0, len(jobs))
	for len(out) < len(jobs) {
		out = append(out, <-results)
	}
	return out, nil
}

func (d *Docker) run(ctx context.Context, cont *client.Client, job *Job) *Result {
	fail := func(err error) *Result {
		return &Result{Key: job.Key, Status: -1, Output: err.Error(), Failed: true}
	}

	// The client maps straight onto the daemon's HTTP API; the
	// meaning of each field is specified in
	// https://docs.docker.com/engine/api/v1.41/#operation/ContainerCreate
	resp, err := cont.ContainerCreate(ctx, &container.Config{
		Image:      d.Image,
		Cmd:        []string{"/bin/sh", "-c", job.Command},
		WorkingDir: "/work",
	}, &container.HostConfig{
		Resources: container.Resources{
			CPUCount: 1,
			Memory:   1024 * 1024 * 1024,
		},
		NetworkMode: "none",
	}, nil, nil, fmt.Sprintf("contest-%s-%d", sanitize(job.Key), time.Now().UnixNano()))
	if err != nil {
		return fail(errors.Wrapf(err, "failed to create container for %s", job.Key))
	}
	id := resp.ID
	defer func() {
		err := cont.ContainerRemove(context.Background(), id,
			types.ContainerRemoveOptions{Force: true})
		if err != nil {
			contest.Debug.Print(err)
		}
	}()

	for _, t := range job.Push {
		if err := copyIn(ctx, cont, id, t); err != nil {
			return fail(errors.Wrapf(err, "failed to stage %s", t.Remote))
		}
	}

	if err := cont.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fail(errors.Wrapf(err, "failed to start container for %s", job.Key))
	}

	var status int
	okC, errC := cont.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errC:
		return fail(errors.Wrapf(err, "container for %s signalled an error", job.Key))
	case body := <-okC:
		status = int(body.StatusCode)
	}

	logs, err := cont.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return fail(errors.Wrapf(err, "failed to collect output for %s", job.Key))
	}
	var buf bytes.Buffer
	_, err = stdcopy.StdCopy(&buf, &buf, logs)
	logs.Close()
	if err != nil {
		return fail(err)
	}

	for _, t := range job.Pull {
		if err := copyOut(ctx, cont, id, t); err != nil {
			contest.Debug.Printf("Job %s: no %s: %s", job.Key, t.Remote, err)
		}
	}

	return &Result{Key: job.Key, Status: status, Output: buf.String()}
}

// Stage one local file into the container.  The daemon only accepts
// tar streams, so the file is wrapped into a single-entry archive.
func copyIn(ctx context.Context, cont *client.Client, id string, t Transfer) error {
	data, err := os.ReadFile(t.Local)
	if err != nil {
		return err
	}
	buf, err := tarSingle(path.Join("work", path.Base(t.Remote)), data)
	if err != nil {
		return err
	}
	return cont.CopyToContainer(ctx, id, "/", buf, types.CopyToContainerOptions{})
}

// Retrieve one file from the container.  The daemon hands back a tar
// stream; only the first regular file in it is of interest.
func copyOut(ctx context.Context, cont *client.Client, id string, t Transfer) error {
	rd, _, err := cont.CopyFromContainer(ctx, id, path.Join("/work", t.Remote))
	if err != nil {
		return err
	}
	defer rd.Close()

	data, err := untarSingle(rd)
	if err != nil {
		return errors.Wrapf(err, "no usable archive for %s", t.Remote)
	}
	return os.WriteFile(t.Local, data, 0644)
}

// Wrap one file into a tar stream under the given entry name.
func tarSingle(name string, data []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	err := tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	})
	if err != nil {
		return nil, err
	}
	if _, err := tw.Write(data); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// Extract the first regular file from a tar stream.
func untarSingle(rd io.Reader) ([]byte, error) {
	tr := tar.NewReader(rd)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errors.New("no regular file in archive")
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		return io.ReadAll(tr)
	}
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
