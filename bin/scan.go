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
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/tracker"
)

var (
	scan_command = app.Command("scan", "Enumerate the modules of running processes.")

	scan_command_pids = scan_command.Flag("pid", "Only scan this process (may be repeated).").
				Uint32List()

	scan_command_format = scan_command.Flag("format", "Output format.").
				Default("table").Enum("table", "json", "jsonl")

	scan_command_catalog = scan_command.Flag("catalog", "Show the module catalog instead of instances.").
				Bool()
)

func doScan() error {
	config_obj := load_config_or_die()
	maybe_serve_metrics(config_obj)

	ctx, cancel := install_sig_handler()
	defer cancel()

	module_tracker, err := tracker.NewModuleTracker(config_obj, tracker.Dependencies{})
	if err != nil {
		return err
	}
	defer module_tracker.Close()

	summary := module_tracker.Scan(ctx, *scan_command_pids)

	logger := logging.GetLogger(config_obj, &logging.ToolComponent)
	logger.Info("Scanned %v processes: %v modules in %v unique files",
		summary.Processes, len(module_tracker.Rows()),
		module_tracker.Catalog().Len())

	if *scan_command_catalog {
		print_rows(os.Stdout, module_tracker.DescriptorRows(),
			[]string{"Id", "Path", "Processes"}, *scan_command_format)
		return nil
	}

	print_rows(os.Stdout, module_tracker.Rows(), module_columns, *scan_command_format)
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case scan_command.FullCommand():
			err := doScan()
			kingpin.FatalIfError(err, "scan")

		default:
			return false
		}
		return true
	})
}
