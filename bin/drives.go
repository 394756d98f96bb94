/*
Velociraptor - Dig Deeper
Copyright (C) 2019-2025 Rapid7 Inc.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package main

import (
	"fmt"
	"os"

	"github.com/Velocidex/ordereddict"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/modtracker/tracker"
)

var (
	drives_command = app.Command("drives", "Show the device to drive letter map.")

	drives_command_format = drives_command.Flag("format", "Output format.").
				Default("table").Enum("table", "json", "jsonl")

	drives_command_translate = drives_command.Arg("path",
		"Device paths to translate.").Strings()
)

func doDrives() error {
	config_obj := load_config_or_die()

	module_tracker, err := tracker.NewModuleTracker(config_obj, tracker.Dependencies{})
	if err != nil {
		return err
	}
	defer module_tracker.Close()

	drives := module_tracker.Drives()

	if len(*drives_command_translate) > 0 {
		for _, path := range *drives_command_translate {
			translated, _ := drives.Translate(path)
			fmt.Printf("%v -> %v\n", path, translated)
		}
		return nil
	}

	rows := []*ordereddict.Dict{}
	for _, item := range drives.Items() {
		rows = append(rows, ordereddict.NewDict().
			Set("Letter", item.Letter).
			Set("Device", item.Device))
	}

	print_rows(os.Stdout, rows, []string{"Letter", "Device"}, *drives_command_format)
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case drives_command.FullCommand():
			err := doDrives()
			kingpin.FatalIfError(err, "drives")

		default:
			return false
		}
		return true
	})
}
