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
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/logging"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("modtracker",
		"Tracks the executable modules mapped into every process.")

	config_path = app.Flag("config", "The configuration file.").Short('c').
			Envar("MODTRACKER_CONFIG").String()

	verbose_flag = app.Flag(
		"verbose", "Enable debug logging.").Short('v').
		Default("false").Bool()

	metrics_flag = app.Flag(
		"metrics", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:8003).").
		String()

	command_handlers []CommandHandler
)

func load_config_or_die() *config.Config {
	config_obj, err := config.LoadConfig(*config_path)
	kingpin.FatalIfError(err, "Unable to load config.")

	if *verbose_flag {
		config_obj.Logging.Level = "debug"
	}

	return config_obj
}

func maybe_serve_metrics(config_obj *config.Config) {
	if *metrics_flag == "" {
		return
	}

	logger := logging.GetLogger(config_obj, &logging.ToolComponent)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("Serving metrics on http://%v/metrics", *metrics_flag)
		err := http.ListenAndServe(*metrics_flag, mux)
		if err != nil {
			logger.Error("Metrics server: %v", err)
		}
	}()
}

func install_sig_handler() (context.Context, context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		select {
		case <-quit:
			cancel()

		case <-ctx.Done():
			return
		}
	}()

	return ctx, cancel
}

func main() {
	app.HelpFlag.Short('h')
	app.Version(constants.VERSION)
	app.UsageTemplate(kingpin.CompactUsageTemplate).DefaultEnvars()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}
}
