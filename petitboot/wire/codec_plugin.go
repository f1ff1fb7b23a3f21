package wire

import "github.com/petitboot/petitboot/shared/api"

// EncodePluginOption serializes a PluginOption message.
func EncodePluginOption(p *api.PluginOption) []byte {
	e := NewEncoder().
		String(p.ID).
		String(p.Name).
		String(p.Version).
		String(p.Description).
		String(p.SourceURL)
	return e.Payload()
}

// DecodePluginOption is the inverse of EncodePluginOption.
func DecodePluginOption(d *Decoder) (*api.PluginOption, error) {
	p := &api.PluginOption{}
	var err error

	if p.ID, err = d.String(); err != nil {
		return nil, err
	}
	if p.Name, err = d.String(); err != nil {
		return nil, err
	}
	if p.Version, err = d.String(); err != nil {
		return nil, err
	}
	if p.Description, err = d.String(); err != nil {
		return nil, err
	}
	if p.SourceURL, err = d.String(); err != nil {
		return nil, err
	}

	return p, nil
}

// EncodeTempAutoboot serializes a TempAutoboot message.
func EncodeTempAutoboot(t *api.TempAutoboot) []byte {
	e := NewEncoder().
		Bool(t.Enabled).
		String(t.OptionID)
	return e.Payload()
}

// DecodeTempAutoboot is the inverse of EncodeTempAutoboot.
func DecodeTempAutoboot(d *Decoder) (*api.TempAutoboot, error) {
	t := &api.TempAutoboot{}
	var err error

	if t.Enabled, err = d.Bool(); err != nil {
		return nil, err
	}
	if t.OptionID, err = d.String(); err != nil {
		return nil, err
	}

	return t, nil
}
