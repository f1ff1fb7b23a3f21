// Package userevent decodes the datagram grammar accepted on petitboot's
// user-event Unix socket (spec.md §4.5, §4.8): a NUL-separated
// "action@device-id" header followed by "key=value" parameter fields.
package userevent

import (
	"fmt"
	"strings"
)

// Action identifies the kind of event a datagram carries.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionBoot   Action = "boot"
	ActionDHCP   Action = "dhcp"
	ActionURL    Action = "url"
	ActionSync   Action = "sync"
	ActionPlugin Action = "plugin"
	ActionConf   Action = "conf"
)

var validActions = map[Action]bool{
	ActionAdd: true, ActionRemove: true, ActionBoot: true, ActionDHCP: true,
	ActionURL: true, ActionSync: true, ActionPlugin: true, ActionConf: true,
}

// MaxDatagram bounds a single user-event payload (spec.md §4.8).
const MaxDatagram = 1024

// Event is a decoded user-event datagram.
type Event struct {
	Action   Action
	DeviceID string
	Params   map[string]string
}

// Get returns a parameter value, or "" if absent.
func (e *Event) Get(key string) string {
	return e.Params[key]
}

// Decode parses a raw datagram payload per the grammar
// "action@device-id\0key1=value1\0key2=value2\0...". Trailing empty
// fields from a terminating NUL are ignored.
func Decode(payload []byte) (*Event, error) {
	if len(payload) > MaxDatagram {
		return nil, fmt.Errorf("userevent: datagram exceeds %d bytes", MaxDatagram)
	}

	fields := strings.Split(string(payload), "\x00")
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("userevent: empty datagram")
	}

	header := fields[0]
	at := strings.IndexByte(header, '@')
	if at < 0 {
		return nil, fmt.Errorf("userevent: missing '@' in header %q", header)
	}

	action := Action(header[:at])
	if !validActions[action] {
		return nil, fmt.Errorf("userevent: unknown action %q", action)
	}

	ev := &Event{
		Action:   action,
		DeviceID: header[at+1:],
		Params:   map[string]string{},
	}

	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			continue
		}
		ev.Params[f[:eq]] = f[eq+1:]
	}

	return ev, nil
}

// Encode renders an Event back to its wire form, for tests.
func Encode(ev *Event) []byte {
	var b strings.Builder
	b.WriteString(string(ev.Action))
	b.WriteByte('@')
	b.WriteString(ev.DeviceID)

	for k, v := range ev.Params {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	b.WriteByte(0)

	return []byte(b.String())
}
