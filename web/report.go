// Report generator
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

package web

import (
	"archive/tar"
	"compress/gzip"
	"embed"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"

	contest "go-contest"
	"go-contest/cmd"
)

//go:embed *.tmpl
var html embed.FS

var (
	// Custom template functions
	funcs = template.FuncMap{
		"crashed": func(g contest.Game) bool {
			return g.Score == contest.CrashSentinel
		},
		"won": func(team string, g contest.Game) bool {
			return g.Winner != "" && g.Winner == team
		},
	}

	// Template manager
	tmpl = template.Must(template.New("").Funcs(funcs).ParseFS(html, "*.tmpl"))
)

type runPage struct {
	RunID     string
	Organizer string
	Teams     int
	Table     []*contest.Stats
	Games     []contest.Game
	Archive   string
}

type indexPage struct {
	Organizer string
	Runs      []string
}

// WriteReport renders the run's results page under the report
// directory, bundles the logs and replays next to it, and refreshes
// the index page linking all runs by date.
func WriteReport(st *cmd.State, conf *cmd.Conf) error {
	dir := filepath.Join(conf.Web.Output, "results_"+st.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	archive := "recorded_games_" + st.RunID + ".tar"
	err := pack(filepath.Join(dir, archive), st.ResultsDir, conf.Contest.CompressLogs)
	if err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(dir, "results.html"))
	if err != nil {
		return err
	}
	err = tmpl.ExecuteTemplate(file, "results.tmpl", &runPage{
		RunID:     st.RunID,
		Organizer: conf.Contest.Organizer,
		Teams:     len(st.Teams),
		Table:     st.Standings.Table(),
		Games:     st.Standings.Games(),
		Archive:   archive,
	})
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	return writeIndex(conf.Web.Output, conf.Contest.Organizer)
}

// Regenerate the page pointing at every archived run.
func writeIndex(www, organizer string) error {
	entries, err := os.ReadDir(www)
	if err != nil {
		return err
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)

	file, err := os.Create(filepath.Join(www, "results.html"))
	if err != nil {
		return err
	}
	err = tmpl.ExecuteTemplate(file, "index.tmpl", &indexPage{
		Organizer: organizer,
		Runs:      runs,
	})
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Bundle the contents of dir into a tar file, optionally gzipped.
// The archive keeps the original name either way, like the recorded
// game bundles always have.
func pack(dest, dir string, compress bool) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}

	var (
		w  io.Writer = file
		gz *gzip.Writer
	)
	if compress {
		gz = gzip.NewWriter(file)
		w = gz
	}
	tw := tar.NewWriter(w)

	err = func() error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return err
			}
			err = tw.WriteHeader(&tar.Header{
				Name:    e.Name(),
				Mode:    0644,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
			if err != nil {
				return err
			}
			if _, err := tw.Write(data); err != nil {
				return err
			}
		}
		return nil
	}()

	// An unflushed tar trailer or gzip footer means a corrupt
	// bundle, so the close errors count.
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
