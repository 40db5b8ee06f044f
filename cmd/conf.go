// Configuration
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

package cmd

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	contest "go-contest"
	"go-contest/exec"
)

const defconf = "go-contest.toml"

func init() {
	def := &defaultConfig

	flag.StringVar(&def.Contest.Organizer, "organizer", def.Contest.Organizer,
		"Name of the contest organizer, as shown in reports")
	flag.UintVar(&def.Contest.MaxSteps, "max-steps", def.Contest.MaxSteps,
		"Step ceiling for each game")
	flag.UintVar(&def.Contest.FixedLayouts, "fixed-layouts", def.Contest.FixedLayouts,
		"Number of layouts to pick from the layout archive")
	flag.UintVar(&def.Contest.RandomLayouts, "random-layouts", def.Contest.RandomLayouts,
		"Number of randomly seeded layouts to add")
	flag.StringVar(&def.Contest.TeamsDir, "teams", def.Contest.TeamsDir,
		"Directory containing the team submission archives")
	flag.StringVar(&def.Contest.NamesFile, "team-names", def.Contest.NamesFile,
		"CSV file mapping student identifiers to team names")
	flag.BoolVar(&def.Contest.IncludeStaff, "staff", def.Contest.IncludeStaff,
		"Enter the staff team into the contest")
	flag.BoolVar(&def.Contest.AllowUnregistered, "allow-unregistered", def.Contest.AllowUnregistered,
		"Admit submissions from students without a registered team")
	flag.BoolVar(&def.Contest.CompressLogs, "compress-logs", def.Contest.CompressLogs,
		"Compress the recorded game archive")

	flag.StringVar(&def.Exec.Mode, "mode", def.Exec.Mode,
		"Execution mode (local, ssh or docker)")
	flag.StringVar(&def.Exec.Image, "image", def.Exec.Image,
		"Container image for the docker mode")

	flag.StringVar(&def.Database.File, "db", def.Database.File,
		"File to use for the result database")
	flag.StringVar(&def.Web.Output, "output", def.Web.Output,
		"Directory the report pages are written to")

	flag.BoolVar(&debug, "debug", debug, "Enable debug output")
	flag.BoolVar(&silent, "silent", silent, "Disable verbose output")
	flag.BoolVar(&dump, "dump-config", dump, "Dump configuration to standard output")
	flag.StringVar(&cfile, "conf", cfile, "Path to configuration file")
}

type ContestConf struct {
	Organizer         string `toml:"organizer"`
	MaxSteps          uint   `toml:"max-steps"`
	FixedLayouts      uint   `toml:"fixed-layouts"`
	RandomLayouts     uint   `toml:"random-layouts"`
	TeamsDir          string `toml:"teams"`
	NamesFile         string `toml:"team-names,omitempty"`
	IncludeStaff      bool   `toml:"staff"`
	AllowUnregistered bool   `toml:"allow-unregistered"`
	CompressLogs      bool   `toml:"compress-logs"`
}

type ExecConf struct {
	Mode    string         `toml:"mode"`
	Image   string         `toml:"image,omitempty"`
	Timeout time.Duration  `toml:"timeout"`
	Workers []*exec.Worker `toml:"worker"`
}

type DatabaseConf struct {
	File string `toml:"file,omitempty"`
}

type WebConf struct {
	Output string `toml:"output"`
}

// Internal representation
type Conf struct {
	Contest  ContestConf  `toml:"contest"`
	Exec     ExecConf     `toml:"exec"`
	Database DatabaseConf `toml:"database"`
	Web      WebConf      `toml:"web"`
}

// Configuration object used by default
var defaultConfig = Conf{
	Contest: ContestConf{
		MaxSteps:      1200,
		FixedLayouts:  3,
		RandomLayouts: 4,
		TeamsDir:      "teams",
	},
	Exec: ExecConf{
		Mode:    "local",
		Timeout: time.Second * 20,
	},
	Database: DatabaseConf{
		File: "contest.db",
	},
	Web: WebConf{
		Output: "www",
	},
}

var (
	debug  = false
	silent = false
	dump   = false
	cfile  = defconf
)

// Open a configuration file and return it
func LoadConf() (c *Conf) {
	c = &defaultConfig
	file, err := os.Open(cfile)
	if err != nil {
		if !os.IsNotExist(err) || cfile != defconf {
			log.Fatal(err)
		}
	} else {
		loaded := defaultConfig
		_, err := toml.NewDecoder(file).Decode(&loaded)
		if err != nil {
			log.Print(err)
		} else {
			c = &loaded
		}
		file.Close()
	}

	switch {
	case debug:
		contest.Debug.SetOutput(os.Stderr)
		log.Default().SetFlags(log.LstdFlags | log.Lshortfile)
		contest.Debug.Println("Debug logging has been enabled")
	case silent:
		log.Default().SetOutput(io.Discard)
	}

	// Dump the configuration onto the disk if requested
	if dump {
		err = c.Dump(os.Stdout)
		if err != nil {
			log.Fatalln("Failed to dump configuration:", err)
		}
		os.Exit(0)
	}

	return c
}

// Serialise the configuration into a writer
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}
