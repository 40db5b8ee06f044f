// Intake tests
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
	"os"
	"path/filepath"
	"testing"
)

// Write a minimal submission archive containing the agent factory.
func submission(t *testing.T, dir, name, agent string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(file)
	w, err := zw.Create(entryFile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(agent)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNames(t *testing.T) {
	file := filepath.Join(t.TempDir(), "teams.csv")
	err := os.WriteFile(file, []byte(
		"EMAIL,STUDENT_ID,TEAM_NAME\n"+
			"a@example.com,s1000001,The Ghosts\n"+
			"b@example.com,s1000002,pellet/hunters\n"+
			"c@example.com,s1000003,staff_team\n"+
			"d@example.com,,Empty Row\n"),
		0644)
	if err != nil {
		t.Fatal(err)
	}

	names, err := LoadNames(file)
	if err != nil {
		t.Fatal(err)
	}

	if got := names["s1000001"]; got != "The_Ghosts" {
		t.Errorf("s1000001 maps to %q, expected The_Ghosts", got)
	}
	if got := names["s1000002"]; got != "pellet_hunters" {
		t.Errorf("s1000002 maps to %q, expected pellet_hunters", got)
	}
	if _, ok := names["s1000003"]; ok {
		t.Error("the reserved staff name was admitted")
	}
	if len(names) != 2 {
		t.Errorf("%d mappings, expected 2", len(names))
	}
}

func TestIntake(t *testing.T) {
	subs := t.TempDir()
	teamsDir := t.TempDir()

	submission(t, subs, "s1000001_2024-05-13T20:32:43.342000+10:00.zip", "one")
	submission(t, subs, "s1000002_2024-05-13T21:00:00.000000+10:00.zip", "two")
	submission(t, subs, "README.txt.zip", "junk")

	in := &Intake{Names: map[string]string{
		"s1000001": "ghosts",
		"s1000002": "hunters",
	}}
	if err := in.AddAll(subs, teamsDir); err != nil {
		t.Fatal(err)
	}

	teams := in.Teams()
	if len(teams) != 2 {
		t.Fatalf("%d teams admitted, expected 2", len(teams))
	}
	// Teams come back sorted by name
	if teams[0].Name != "ghosts" || teams[1].Name != "hunters" {
		t.Errorf("unexpected teams: %v, %v", teams[0], teams[1])
	}
	if teams[0].Entry != "teams/ghosts/myTeam.py" {
		t.Errorf("entry point %q, expected teams/ghosts/myTeam.py", teams[0].Entry)
	}

	for _, team := range []string{"ghosts", "hunters"} {
		agent := filepath.Join(teamsDir, team, entryFile)
		if _, err := os.Stat(agent); err != nil {
			t.Errorf("no agent factory for %s: %s", team, err)
		}
	}
}

func TestIntakeNewestWins(t *testing.T) {
	subs := t.TempDir()
	teamsDir := t.TempDir()
	in := &Intake{Names: map[string]string{"s1000001": "ghosts"}}

	early := submission(t, subs, "s1000001_2024-05-13T08:00:00+10:00.zip", "early")
	late := submission(t, subs, "s1000001_2024-05-13T22:00:00+10:00.zip", "late")

	in.add(late, teamsDir, false)
	in.add(early, teamsDir, false)

	if got := len(in.Teams()); got != 1 {
		t.Fatalf("%d teams admitted, expected 1", got)
	}
	data, err := os.ReadFile(filepath.Join(teamsDir, "ghosts", entryFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "late" {
		t.Errorf("agent is %q, expected the later submission", data)
	}
}

func TestIntakeCorruptReplacement(t *testing.T) {
	subs := t.TempDir()
	teamsDir := t.TempDir()
	in := &Intake{Names: map[string]string{"s1000001": "ghosts"}}

	early := submission(t, subs, "s1000001_2024-05-13T08:00:00+10:00.zip", "early")
	late := filepath.Join(subs, "s1000001_2024-05-13T22:00:00+10:00.zip")
	if err := os.WriteFile(late, []byte("not a zip archive"), 0644); err != nil {
		t.Fatal(err)
	}

	in.add(early, teamsDir, false)
	in.add(late, teamsDir, false)

	// The corrupt replacement must not have evicted the admitted
	// submission.
	if got := len(in.Teams()); got != 1 {
		t.Fatalf("%d teams admitted, expected 1", got)
	}
	data, err := os.ReadFile(filepath.Join(teamsDir, "ghosts", entryFile))
	if err != nil {
		t.Fatalf("admitted agent is gone: %s", err)
	}
	if string(data) != "early" {
		t.Errorf("agent is %q, expected the intact earlier submission", data)
	}
	if _, err := os.Stat(filepath.Join(teamsDir, "ghosts.staging")); !os.IsNotExist(err) {
		t.Error("staging directory was left behind")
	}
}

func TestIntakeUnregistered(t *testing.T) {
	subs := t.TempDir()
	sub := submission(t, subs, "s1000009_2024-05-13T08:00:00+10:00.zip", "lone")

	strict := &Intake{}
	strict.add(sub, t.TempDir(), false)
	if got := len(strict.Teams()); got != 0 {
		t.Errorf("%d unregistered teams admitted, expected 0", got)
	}

	lax := &Intake{AllowUnregistered: true}
	lax.add(sub, t.TempDir(), false)
	teams := lax.Teams()
	if len(teams) != 1 || teams[0].Name != "s1000009" {
		t.Errorf("unexpected teams %v, expected the student id", teams)
	}
}

func TestIntakeStaff(t *testing.T) {
	subs := t.TempDir()
	staff := submission(t, subs, "staff_team.zip", "staff")

	in := &Intake{}
	in.AddStaff(staff, t.TempDir())

	teams := in.Teams()
	if len(teams) != 1 || teams[0].Name != "staff_team" {
		t.Errorf("unexpected teams %v, expected staff_team", teams)
	}
}

func TestParseStamp(t *testing.T) {
	for _, test := range []struct {
		stamp string
		ok    bool
	}{
		{"2024-05-13T20:32:43.342000+10:00", true},
		{"2024-05-13T20:32:43+10:00", true},
		{"2024-05-13T20:32:43Z", true},
		{"yesterday", false},
		{"", false},
	} {
		_, err := parseStamp(test.stamp)
		if ok := err == nil; ok != test.ok {
			t.Errorf("parsing %q: ok=%v, expected %v", test.stamp, ok, test.ok)
		}
	}
}
