package client

import (
	"errors"

	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
)

// Event is a single state-change push from the Discover server, decoded
// from its wire action (spec.md §4.9's "thereafter the server pushes each
// state change to all connected clients").
type Event struct {
	Action      wire.Action
	Device      *api.Device       // ActionDeviceAdd
	DeviceID    string            // ActionDeviceRemove, and the owner of BootOption
	BootOption  *api.BootOption   // ActionBootOptionAdd
	Status      *api.Status       // ActionStatus
	Config      *api.Config       // ActionConfig
	SystemInfo  *api.SystemInfo   // ActionSystemInfo
}

// EventTarget is returned by AddHandler and consumed by RemoveHandler,
// mirroring the teacher's client/events.go pub-sub shape.
type EventTarget struct {
	action   wire.Action // zero means "all actions"
	function func(Event)
}

// AddHandler registers function to be called for every event matching
// action, or every event if action is the zero value.
func (c *Client) AddHandler(action wire.Action, function func(Event)) (*EventTarget, error) {
	if function == nil {
		return nil, errors.New("client: a valid function must be provided")
	}

	target := &EventTarget{action: action, function: function}

	c.mu.Lock()
	c.targets = append(c.targets, target)
	c.mu.Unlock()

	return target, nil
}

// RemoveHandler unregisters a target previously returned by AddHandler.
func (c *Client) RemoveHandler(target *EventTarget) error {
	if target == nil {
		return errors.New("client: a valid event target must be provided")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.targets {
		if t == target {
			c.targets = append(c.targets[:i], c.targets[i+1:]...)
			return nil
		}
	}

	return errors.New("client: target not registered")
}

// decodeEvent converts a raw wire message into an Event, reporting false
// for actions this client doesn't model as a push event (e.g. Boot, which
// only ever flows client-to-server).
func decodeEvent(msg *wire.Message) (Event, bool) {
	d := wire.NewDecoder(msg.Payload)

	switch msg.Action {
	case wire.ActionDeviceAdd:
		dev, err := wire.DecodeDevice(d)
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, Device: dev, DeviceID: dev.ID}, true

	case wire.ActionDeviceRemove:
		id, err := d.String()
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, DeviceID: id}, true

	case wire.ActionBootOptionAdd:
		deviceID, err := d.String()
		if err != nil {
			return Event{}, false
		}
		opt, err := wire.DecodeBootOption(d)
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, DeviceID: deviceID, BootOption: opt}, true

	case wire.ActionStatus:
		st, err := wire.DecodeStatus(d)
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, Status: st}, true

	case wire.ActionConfig:
		cfg, err := wire.DecodeConfig(d)
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, Config: cfg}, true

	case wire.ActionSystemInfo:
		info, err := wire.DecodeSystemInfo(d)
		if err != nil {
			return Event{}, false
		}
		return Event{Action: msg.Action, SystemInfo: info}, true

	default:
		return Event{}, false
	}
}
