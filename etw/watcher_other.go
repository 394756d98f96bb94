//go:build !(windows && cgo && amd64)
// +build !windows !cgo !amd64

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
package etw

import (
	"context"

	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/utils"
)

type session_state struct{}

func NewImageLoadWatcher(
	config_obj *config.Config,
	ingestor *ingestion.EventIngestor) (*ImageLoadWatcher, error) {
	return nil, utils.Wrap(utils.NotImplementedError,
		"ETW is only available on windows/amd64 with cgo")
}

func (self *ImageLoadWatcher) Start(ctx context.Context) error {
	return utils.NotImplementedError
}

func (self *ImageLoadWatcher) Close() error {
	return nil
}
