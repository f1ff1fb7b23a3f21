package wire

import "github.com/petitboot/petitboot/shared/api"

// EncodeConfig serializes a Config message: scalars, the interface map and
// the ordered boot-priority list.
func EncodeConfig(c *api.Config) []byte {
	e := NewEncoder().
		Bool(c.AutobootEnabled).
		Uint32(uint32(c.AutobootTimeout)).
		Bool(c.ManualNetworkMode).
		Uint32(uint32(len(c.Interfaces)))

	for hw, ifc := range c.Interfaces {
		e.String(hw).
			Uint32(uint32(ifc.Mode)).
			String(ifc.Address).
			String(ifc.Gateway).
			Uint32(uint32(len(ifc.DNSServer)))
		for _, dns := range ifc.DNSServer {
			e.String(dns)
		}
		e.Bool(ifc.Ignore)
	}

	e.Uint32(uint32(len(c.BootPriorities)))
	for _, p := range c.BootPriorities {
		e.String(p.UUID).String(p.MAC).Uint32(uint32(p.Type)).Int32(int32(p.Priority))
	}

	e.String(c.IPMIBootOverride).
		String(c.HTTPProxy).
		String(c.HTTPSProxy).
		String(c.FTPProxy).
		Bool(c.AllowWrites).
		String(c.PreferredConsole).
		String(c.Language).
		Bool(c.SafeMode)

	return e.Payload()
}

// DecodeConfig is the inverse of EncodeConfig.
func DecodeConfig(d *Decoder) (*api.Config, error) {
	c := &api.Config{Interfaces: map[string]api.InterfaceConfig{}}
	var err error

	if c.AutobootEnabled, err = d.Bool(); err != nil {
		return nil, err
	}

	timeout, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	c.AutobootTimeout = int(timeout)

	if c.ManualNetworkMode, err = d.Bool(); err != nil {
		return nil, err
	}

	ifCount, err := d.Uint32()
	if err != nil {
		return nil, err
	}

	for i := uint32(0); i < ifCount; i++ {
		hw, err := d.String()
		if err != nil {
			return nil, err
		}

		var ifc api.InterfaceConfig
		mode, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		ifc.Mode = api.NetworkMode(mode)

		if ifc.Address, err = d.String(); err != nil {
			return nil, err
		}
		if ifc.Gateway, err = d.String(); err != nil {
			return nil, err
		}

		dnsCount, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < dnsCount; j++ {
			dns, err := d.String()
			if err != nil {
				return nil, err
			}
			ifc.DNSServer = append(ifc.DNSServer, dns)
		}

		if ifc.Ignore, err = d.Bool(); err != nil {
			return nil, err
		}

		c.Interfaces[hw] = ifc
	}

	prioCount, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < prioCount; i++ {
		var p api.BootPriorityEntry
		if p.UUID, err = d.String(); err != nil {
			return nil, err
		}
		if p.MAC, err = d.String(); err != nil {
			return nil, err
		}
		typ, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		p.Type = api.DeviceType(typ)

		prio, err := d.Int32()
		if err != nil {
			return nil, err
		}
		p.Priority = int(prio)

		c.BootPriorities = append(c.BootPriorities, p)
	}

	if c.IPMIBootOverride, err = d.String(); err != nil {
		return nil, err
	}
	if c.HTTPProxy, err = d.String(); err != nil {
		return nil, err
	}
	if c.HTTPSProxy, err = d.String(); err != nil {
		return nil, err
	}
	if c.FTPProxy, err = d.String(); err != nil {
		return nil, err
	}
	if c.AllowWrites, err = d.Bool(); err != nil {
		return nil, err
	}
	if c.PreferredConsole, err = d.String(); err != nil {
		return nil, err
	}
	if c.Language, err = d.String(); err != nil {
		return nil, err
	}
	if c.SafeMode, err = d.Bool(); err != nil {
		return nil, err
	}

	return c, nil
}

// EncodeSystemInfo serializes a SystemInfo snapshot.
func EncodeSystemInfo(s *api.SystemInfo) []byte {
	e := NewEncoder().
		String(s.Type).
		String(s.Identifier).
		String(s.FirmwareVersion).
		Uint32(uint32(len(s.Interfaces)))

	for _, ifc := range s.Interfaces {
		e.String(ifc.MAC).String(ifc.Name).Bool(ifc.LinkUp).String(ifc.Address)
	}

	e.Uint32(uint32(len(s.BlockDevices)))
	for _, bd := range s.BlockDevices {
		e.String(bd.Name).String(bd.UUID).String(bd.MountPoint)
	}

	return e.Payload()
}

// DecodeSystemInfo is the inverse of EncodeSystemInfo.
func DecodeSystemInfo(d *Decoder) (*api.SystemInfo, error) {
	s := &api.SystemInfo{}
	var err error

	if s.Type, err = d.String(); err != nil {
		return nil, err
	}
	if s.Identifier, err = d.String(); err != nil {
		return nil, err
	}
	if s.FirmwareVersion, err = d.String(); err != nil {
		return nil, err
	}

	ifCount, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < ifCount; i++ {
		var ifc api.InterfaceInfo
		if ifc.MAC, err = d.String(); err != nil {
			return nil, err
		}
		if ifc.Name, err = d.String(); err != nil {
			return nil, err
		}
		if ifc.LinkUp, err = d.Bool(); err != nil {
			return nil, err
		}
		if ifc.Address, err = d.String(); err != nil {
			return nil, err
		}
		s.Interfaces = append(s.Interfaces, ifc)
	}

	bdCount, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < bdCount; i++ {
		var bd api.BlockDeviceInfo
		if bd.Name, err = d.String(); err != nil {
			return nil, err
		}
		if bd.UUID, err = d.String(); err != nil {
			return nil, err
		}
		if bd.MountPoint, err = d.String(); err != nil {
			return nil, err
		}
		s.BlockDevices = append(s.BlockDevices, bd)
	}

	return s, nil
}
