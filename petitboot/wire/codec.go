package wire

import "github.com/petitboot/petitboot/shared/api"

// EncodeBootOption serializes a BootOption as seven strings (id, name,
// description, icon, boot_image, initrd, boot_args) plus the default flag,
// per spec.md §4.2. DeviceTree travels as an eighth string, an extension
// the wire table implies ("boot-option payload") but doesn't enumerate
// exhaustively; it is appended last so legacy readers that stop after
// seven strings still decode the fields spec.md names explicitly.
func EncodeBootOption(opt *api.BootOption) []byte {
	e := NewEncoder().
		String(opt.ID).
		String(opt.Name).
		String(opt.Description).
		String(opt.Icon).
		String(opt.BootImage).
		String(opt.Initrd).
		String(opt.BootArgs).
		Bool(opt.IsDefault).
		String(opt.DeviceTree)
	return e.Payload()
}

// DecodeBootOption is the inverse of EncodeBootOption.
func DecodeBootOption(d *Decoder) (*api.BootOption, error) {
	opt := &api.BootOption{}
	var err error

	if opt.ID, err = d.String(); err != nil {
		return nil, err
	}
	if opt.Name, err = d.String(); err != nil {
		return nil, err
	}
	if opt.Description, err = d.String(); err != nil {
		return nil, err
	}
	if opt.Icon, err = d.String(); err != nil {
		return nil, err
	}
	if opt.BootImage, err = d.String(); err != nil {
		return nil, err
	}
	if opt.Initrd, err = d.String(); err != nil {
		return nil, err
	}
	if opt.BootArgs, err = d.String(); err != nil {
		return nil, err
	}
	if opt.IsDefault, err = d.Bool(); err != nil {
		return nil, err
	}
	if opt.DeviceTree, err = d.String(); err != nil {
		return nil, err
	}

	return opt, nil
}

// EncodeDevice serializes a Device: id/name/description/icon strings, then
// a u32 count followed by that many boot-option payloads (spec.md §4.2).
func EncodeDevice(dev *api.Device) []byte {
	e := NewEncoder().
		String(dev.ID).
		String(dev.Name).
		String(dev.Description).
		String(dev.Icon).
		Uint32(uint32(len(dev.BootOptions)))

	for i := range dev.BootOptions {
		e.Bytes(EncodeBootOption(&dev.BootOptions[i]))
	}

	return e.Payload()
}

// DecodeDevice is the inverse of EncodeDevice.
func DecodeDevice(d *Decoder) (*api.Device, error) {
	dev := &api.Device{}
	var err error

	if dev.ID, err = d.String(); err != nil {
		return nil, err
	}
	if dev.Name, err = d.String(); err != nil {
		return nil, err
	}
	if dev.Description, err = d.String(); err != nil {
		return nil, err
	}
	if dev.Icon, err = d.String(); err != nil {
		return nil, err
	}

	count, err := d.Uint32()
	if err != nil {
		return nil, err
	}

	dev.BootOptions = make([]api.BootOption, 0, count)
	for i := uint32(0); i < count; i++ {
		opt, err := DecodeBootOption(d)
		if err != nil {
			return nil, err
		}
		dev.BootOptions = append(dev.BootOptions, *opt)
	}

	return dev, nil
}

// EncodeBootCommand serializes a client-issued boot request.
func EncodeBootCommand(cmd *api.BootCommand) []byte {
	e := NewEncoder().
		String(cmd.OptionID).
		String(cmd.BootImageFile).
		String(cmd.InitrdFile).
		String(cmd.DtbFile).
		String(cmd.BootArgs).
		String(cmd.ArgsSigFile).
		String(cmd.Console)
	return e.Payload()
}

// DecodeBootCommand is the inverse of EncodeBootCommand.
func DecodeBootCommand(d *Decoder) (*api.BootCommand, error) {
	cmd := &api.BootCommand{}
	var err error

	if cmd.OptionID, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.BootImageFile, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.InitrdFile, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.DtbFile, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.BootArgs, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.ArgsSigFile, err = d.String(); err != nil {
		return nil, err
	}
	if cmd.Console, err = d.String(); err != nil {
		return nil, err
	}

	return cmd, nil
}

// EncodeStatus serializes a Status message.
func EncodeStatus(s *api.Status) []byte {
	e := NewEncoder().
		Uint32(uint32(s.Type)).
		String(s.Message).
		Int32(int32(s.Progress)).
		String(s.Detail)
	return e.Payload()
}

// DecodeStatus is the inverse of EncodeStatus.
func DecodeStatus(d *Decoder) (*api.Status, error) {
	s := &api.Status{}

	t, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	s.Type = api.StatusType(t)

	if s.Message, err = d.String(); err != nil {
		return nil, err
	}

	progress, err := d.Int32()
	if err != nil {
		return nil, err
	}
	s.Progress = int(progress)

	if s.Detail, err = d.String(); err != nil {
		return nil, err
	}

	return s, nil
}

// EncodeAuthenticate serializes an Authenticate message.
func EncodeAuthenticate(a *api.Authenticate) []byte {
	e := NewEncoder().
		Uint32(uint32(a.Action)).
		String(a.Password).
		String(a.OldPassword).
		String(a.NewPassword).
		String(a.DeviceID).
		Bool(a.Response)
	return e.Payload()
}

// DecodeAuthenticate is the inverse of EncodeAuthenticate.
func DecodeAuthenticate(d *Decoder) (*api.Authenticate, error) {
	a := &api.Authenticate{}

	action, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	a.Action = api.AuthAction(action)

	if a.Password, err = d.String(); err != nil {
		return nil, err
	}
	if a.OldPassword, err = d.String(); err != nil {
		return nil, err
	}
	if a.NewPassword, err = d.String(); err != nil {
		return nil, err
	}
	if a.DeviceID, err = d.String(); err != nil {
		return nil, err
	}
	if a.Response, err = d.Bool(); err != nil {
		return nil, err
	}

	return a, nil
}
