// Environment preparation
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

package intake

import (
	"archive/zip"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	contest "go-contest"
	"go-contest/cmd"
)

// PreparePlatform wipes the environment directory and sets up a
// fresh copy of the game engine and its layouts.  It returns the
// layout set for the run: up to fixed layouts sampled from the
// layout archive, plus random freshly-seeded ones.
func PreparePlatform(contestZip, layoutsZip string, fixed, random uint) ([]contest.Layout, error) {
	if err := os.RemoveAll(cmd.EnvDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cmd.EnvDir, 0755); err != nil {
		return nil, err
	}

	// The engine archive carries the environment directory itself.
	if err := unzip(contestZip, "."); err != nil {
		return nil, errors.Wrapf(err, "cannot extract %s", contestZip)
	}
	if err := unzip(layoutsZip, filepath.Join(cmd.EnvDir, "layouts")); err != nil {
		return nil, errors.Wrapf(err, "cannot extract %s", layoutsZip)
	}

	names, err := layoutNames(layoutsZip)
	if err != nil {
		return nil, err
	}

	var layouts []contest.Layout
	if uint(len(names)) > fixed {
		rand.Shuffle(len(names), func(i, j int) {
			names[i], names[j] = names[j], names[i]
		})
		names = names[:fixed]
	}
	for _, n := range names {
		layouts = append(layouts, contest.Layout{Name: n})
	}
	// Seeds double as layout names, and the planner relies on
	// layout names being unique: a duplicate would produce two
	// matches with the same identity.
	if random > 9999 {
		return nil, errors.Errorf("cannot draw %d distinct layout seeds", random)
	}
	seen := make(map[int]bool, random)
	for uint(len(seen)) < random {
		seed := rand.Intn(9999) + 1
		if seen[seed] {
			continue
		}
		seen[seed] = true
		layouts = append(layouts, contest.Layout{
			// The engine generates a maze from the seed.
			Name:   fmt.Sprintf("RANDOM%d", seed),
			Random: true,
		})
	}
	return layouts, nil
}

func layoutNames(layoutsZip string) ([]string, error) {
	r, err := zip.OpenReader(layoutsZip)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(f.Name, ".lay"))
	}
	return names, nil
}

// BuildEnv bundles the prepared environment directory into the
// archive every job ships to its execution host.
func BuildEnv() error {
	file, err := os.Create(cmd.EnvArchive)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(file)
	err = filepath.Walk(cmd.EnvDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(cmd.EnvDir, p)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		return err
	})

	// A failed flush of the central directory would leave a
	// truncated archive behind, which every job would then ship.
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Extract a zip archive under dest, refusing entries that would
// escape it.
func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if rel, err := filepath.Rel(dest, target); err != nil ||
			rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return errors.Errorf("illegal path %q in %s", f.Name, src)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		in, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			in.Close()
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
