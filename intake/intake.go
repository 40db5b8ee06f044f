// Submission intake
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
	"encoding/csv"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	contest "go-contest"
	"go-contest/cmd"
)

// Submission archives are named s<student no>_<timestamp>.zip, for
// example s9999999_2017-05-13T20:32:43.342000+10:00.zip.
var submissionPattern = regexp.MustCompile(`^(s\d+)_(.+)?\.zip$`)

// The agent factory every submission must provide in its root.
const entryFile = "myTeam.py"

// The staff bundle is admitted outside the usual naming rules, so
// nobody gets to squat on its name.
const staffName = "staff_team"

// An Intake collects team submissions into the environment's teams
// directory.  When a team submits more than once, the newest archive
// by encoded timestamp wins.
type Intake struct {
	// Student to team mapping, from the registration CSV
	Names map[string]string
	// Admit students that registered no team
	AllowUnregistered bool

	teams     map[string]*contest.Team
	submitted map[string]time.Time
}

// LoadNames reads the registration CSV.  The header row names the
// columns; only STUDENT_ID and TEAM_NAME are used.
func LoadNames(file string) (map[string]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rows, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("%s: no header row", file)
	}

	student, team := -1, -1
	for i, col := range rows[0] {
		switch col {
		case "STUDENT_ID":
			student = i
		case "TEAM_NAME":
			team = i
		}
	}
	if student < 0 || team < 0 {
		return nil, errors.Errorf("%s: missing STUDENT_ID or TEAM_NAME column", file)
	}

	names := make(map[string]string)
	for _, row := range rows[1:] {
		if len(row) <= student || len(row) <= team {
			continue
		}
		id, name := row[student], sanitize(row[team])
		if name == staffName {
			log.Printf("%s is a reserved team name, skipping", staffName)
			continue
		}
		if id == "" || name == "" {
			continue
		}
		names[id] = name
	}
	return names, nil
}

// Team names end up in file names and shell commands, so slashes and
// blanks are replaced.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

// AddAll ingests every .zip submission under root.
func (in *Intake) AddAll(root, teamsDir string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		in.add(filepath.Join(root, e.Name()), teamsDir, false)
	}
	return nil
}

// AddStaff ingests the staff bundle.  Its file name is not required
// to follow the submission pattern.
func (in *Intake) AddStaff(file, teamsDir string) {
	in.add(file, teamsDir, true)
}

func (in *Intake) add(file, teamsDir string, lax bool) {
	if in.teams == nil {
		in.teams = make(map[string]*contest.Team)
		in.submitted = make(map[string]time.Time)
	}

	var (
		name  string
		stamp time.Time
	)
	match := submissionPattern.FindStringSubmatch(filepath.Base(file))
	if match != nil {
		id := match[1]
		if team, ok := in.Names[id]; ok {
			name = team
		} else if in.AllowUnregistered {
			name = id
		} else {
			log.Printf("Student not registered: %q (file %s), skipping", id, file)
			return
		}

		var err error
		stamp, err = parseStamp(match[2])
		if err != nil && !lax {
			log.Printf("Submission %s has an invalid timestamp, skipping", file)
			return
		}
	} else {
		if !lax {
			log.Printf("Submission %s does not correspond to any team, skipping", file)
			return
		}
		name = strings.TrimSuffix(filepath.Base(file), ".zip")
	}

	dest := filepath.Join(teamsDir, name)
	if prev, ok := in.teams[name]; ok {
		if stamp.IsZero() || !in.submitted[name].Before(stamp) {
			contest.Debug.Printf("Keeping earlier submission for %s", name)
			return
		}
		contest.Debug.Printf("Replacing submission for %s", prev.Name)
	}

	// Extract into a staging directory and swap on success, so a
	// corrupt replacement cannot destroy an admitted submission.
	staging := dest + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		log.Print(err)
		return
	}
	if err := unzip(file, staging); err != nil {
		log.Printf("Cannot extract %s: %s", file, err)
		os.RemoveAll(staging)
		return
	}
	if err := os.RemoveAll(dest); err != nil {
		log.Print(err)
		return
	}
	if err := os.Rename(staging, dest); err != nil {
		log.Print(err)
		return
	}
	in.teams[name] = &contest.Team{
		Name:      name,
		Entry:     path.Join(cmd.TeamsSubdir, name, entryFile),
		Submitted: stamp,
	}
	in.submitted[name] = stamp
}

// Teams returns the admitted teams, ordered by name so that a rerun
// over the same submissions plans the same match sequence.
func (in *Intake) Teams() []*contest.Team {
	teams := make([]*contest.Team, 0, len(in.teams))
	for _, t := range in.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool {
		return teams[i].Name < teams[j].Name
	})
	return teams
}

// Submission timestamps come in ISO 8601, fractional seconds and
// offset included.
func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}
