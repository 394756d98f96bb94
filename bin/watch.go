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
	"context"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/modtracker/etw"
	"www.velocidex.com/golang/modtracker/json"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/tracker"
)

var (
	watch_command = app.Command("watch", "Follow image loads in real time (Windows only).")

	watch_command_duration = watch_command.Flag("duration",
		"Stop after this long (default: until interrupted).").Duration()

	watch_command_rescan = watch_command.Flag("rescan",
		"Also rescan all processes at this interval.").Duration()

	watch_command_format = watch_command.Flag("format", "Output format.").
				Default("table").Enum("table", "json", "jsonl")
)

func doWatch() error {
	config_obj := load_config_or_die()
	maybe_serve_metrics(config_obj)

	logger := logging.GetLogger(config_obj, &logging.ToolComponent)

	ctx, cancel := install_sig_handler()
	defer cancel()

	if *watch_command_duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *watch_command_duration)
		defer cancel()
	}

	module_tracker, err := tracker.NewModuleTracker(config_obj, tracker.Dependencies{})
	if err != nil {
		return err
	}
	defer module_tracker.Close()

	watcher, err := etw.NewImageLoadWatcher(config_obj, module_tracker.EventIngestor())
	if err != nil {
		return err
	}

	// Start watching before the first scan so nothing loaded in
	// between is missed.
	err = watcher.Start(ctx)
	if err != nil {
		return err
	}

	if *watch_command_rescan > 0 {
		go module_tracker.Scanner().Run(ctx, *watch_command_rescan)
	} else {
		module_tracker.Scan(ctx, nil)
	}

	logger.Info("Watching image loads, press Ctrl-C to stop.")
	<-ctx.Done()

	err = watcher.Close()
	if err != nil {
		logger.Error("Closing watcher: %v", err)
	}

	logger.Info("Watcher stats: %v", json.MustMarshalString(watcher.Stats()))

	print_rows(os.Stdout, module_tracker.Rows(), module_columns, *watch_command_format)
	return nil
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case watch_command.FullCommand():
			err := doWatch()
			kingpin.FatalIfError(err, "watch")

		default:
			return false
		}
		return true
	})
}
