//go:build windows && cgo && amd64
// +build windows,cgo,amd64

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

	"github.com/Velocidex/etw"
	"golang.org/x/sys/windows"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/utils"
)

type session_state struct {
	session *etw.Session
	guid    windows.GUID
}

func NewImageLoadWatcher(
	config_obj *config.Config,
	ingestor *ingestion.EventIngestor) (*ImageLoadWatcher, error) {
	if config_obj == nil || config_obj.ETW == nil {
		return nil, utils.Wrap(utils.InvalidConfigError, "No ETW config")
	}

	guid, err := windows.GUIDFromString(config_obj.ETW.ProviderGUID)
	if err != nil {
		return nil, utils.Wrapf(utils.InvalidConfigError,
			"provider_guid %v: %v", config_obj.ETW.ProviderGUID, err)
	}

	result := newImageLoadWatcher(config_obj, ingestor)
	result.guid = guid
	return result, nil
}

// Start opens the session and subscribes to the provider. Events are
// processed until the context is done or Close() is called.
func (self *ImageLoadWatcher) Start(ctx context.Context) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.session != nil {
		return nil
	}

	name := self.config_obj.ETW.SessionName
	session, err := etw.NewSession(name, self.handleEvent)
	if err != nil {
		// A previous run may have left the session behind.
		err = etw.KillSession(name)
		if err != nil {
			return err
		}
		session, err = etw.NewSession(name, self.handleEvent)
		if err != nil {
			return err
		}
	}

	err = session.SubscribeToProvider(etw.SessionOptions{
		Guid:            self.guid,
		Level:           etw.TraceLevel(self.config_obj.ETW.Level),
		MatchAnyKeyword: self.config_obj.ETW.AnyKeyword,
		MatchAllKeyword: self.config_obj.ETW.AllKeyword,
	})
	if err != nil {
		session.Close()
		return utils.Wrapf(err, "Can not add provider to session %v", name)
	}

	self.logger.Info("Added provider %v to session %v", self.guid.String(), name)

	self.session = session

	self.wg.Add(1)
	go func() {
		defer self.wg.Done()

		err := session.Process()
		if err != nil {
			self.logger.Error("Can not start session %v: %v", name, err)
		}
	}()

	utils.RegisterQPSCounter(ctx, metricETWEvents, metricETWEventRate)

	go func() {
		<-ctx.Done()
		self.Close()
	}()

	return nil
}

func (self *ImageLoadWatcher) Close() error {
	self.mu.Lock()
	session := self.session
	self.session = nil
	self.mu.Unlock()

	if session == nil {
		return nil
	}

	self.logger.Info("Closing session %v", self.config_obj.ETW.SessionName)
	err := session.Close()

	// Wait for the queued events to be delivered.
	self.wg.Wait()
	return err
}

func (self *ImageLoadWatcher) handleEvent(e *etw.Event) {
	defer utils.CheckForPanic("handleEvent")

	if e.Header.ProviderID != self.guid {
		return
	}

	var props interface{}
	data, err := e.EventProperties()
	if err == nil {
		props = data
	}

	self.processEvent(e.Header.ID, e.Header.ProcessID, e.Header.TimeStamp, props)
}
