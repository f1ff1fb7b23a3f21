package api

// PluginOption describes one installed plugin's user-facing toggle, sent
// to clients via PluginOptionAdd (spec.md §4.2). The retrieval pack's
// discover-server.c references PLUGIN_INSTALL/PLUGIN_OPTION_ADD but no
// header in this pack defines the wire layout, so the field set here is
// authored rather than mined: id/name/description for display, and the
// plugin's install URL for PluginsRemove-style bookkeeping.
type PluginOption struct {
	ID          string
	Name        string
	Version     string
	Description string
	SourceURL   string
}

// TempAutoboot is the payload for a client's TempAutoboot action: override
// the configured autoboot behaviour for the current boot cycle only,
// without touching the persisted Config. Like PluginOption, no concrete
// struct for this exists in the retrieval pack; the fields mirror the
// Config.AutobootEnabled/OptionID pair a client needs to pick (or veto) a
// one-shot default.
type TempAutoboot struct {
	Enabled  bool
	OptionID string
}
