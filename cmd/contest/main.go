// Entry point
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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	contest "go-contest"
	"go-contest/cmd"
	"go-contest/db"
	"go-contest/exec"
	"go-contest/intake"
	"go-contest/sched"
	"go-contest/web"
)

// Archives the contest setup is built from.
const (
	contestZip = "contest.zip"
	layoutsZip = "layouts.zip"
	staffZip   = "staff_team.zip"
)

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	conf := cmd.LoadConf()
	if conf.Contest.Organizer == "" {
		log.Fatal("No organizer configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := cmd.MakeState()
	log.Printf("Contest run %s", st.RunID)

	// Set up a fresh game environment
	layouts, err := intake.PreparePlatform(contestZip, layoutsZip,
		conf.Contest.FixedLayouts, conf.Contest.RandomLayouts)
	if err != nil {
		log.Fatal(err)
	}

	// Collect the submissions
	in := &intake.Intake{AllowUnregistered: conf.Contest.AllowUnregistered}
	if conf.Contest.NamesFile != "" {
		in.Names, err = intake.LoadNames(conf.Contest.NamesFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	teamsDir := filepath.Join(cmd.EnvDir, cmd.TeamsSubdir)
	if err := os.MkdirAll(teamsDir, 0755); err != nil {
		log.Fatal(err)
	}
	if err := in.AddAll(conf.Contest.TeamsDir, teamsDir); err != nil {
		log.Fatal(err)
	}
	if conf.Contest.IncludeStaff {
		in.AddStaff(staffZip, teamsDir)
	}

	teams := in.Teams()
	log.Printf("%d teams, %d layouts", len(teams), len(layouts))
	if err := st.Seal(teams, layouts); err != nil {
		log.Fatal(err)
	}

	// Every job ships the same self-contained bundle
	if err := intake.BuildEnv(); err != nil {
		log.Fatal(err)
	}

	switch conf.Exec.Mode {
	case "local":
		err = sched.RunLocal(ctx, st, conf)
	case "ssh":
		gw := &exec.SSH{Timeout: conf.Exec.Timeout}
		err = sched.RunRemote(ctx, st, conf, gw, conf.Exec.Workers)
	case "docker":
		gw := &exec.Docker{Image: conf.Exec.Image}
		err = sched.RunRemote(ctx, st, conf, gw, conf.Exec.Workers)
	default:
		log.Fatalf("Unknown execution mode %q", conf.Exec.Mode)
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Played %d games", st.Standings.Played())

	// Archive the standings
	if conf.Database.File != "" {
		archive, err := db.Open(conf.Database.File)
		if err != nil {
			log.Fatal(err)
		}
		if err := archive.Archive(ctx, st, conf.Contest.Organizer); err != nil {
			log.Print(err)
		}
		archive.Close()
	}

	// Generate the report pages
	if err := web.WriteReport(st, conf); err != nil {
		log.Fatal(err)
	}
	contest.Debug.Println("Report written to", conf.Web.Output)

	// The logs and replays now live in the report bundle
	if err := os.RemoveAll(cmd.ResultsRoot); err != nil {
		log.Print(err)
	}
}
