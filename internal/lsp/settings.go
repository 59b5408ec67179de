package lsp

import (
	"encoding/json"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/standardbeagle/scalaidx/internal/types"
)

// DecodeSettings reads a settings object. Missing or malformed input yields the
// defaults, and a missing hoverEnabled inside an object counts as true.
// Unrecognized fields are ignored.
func DecodeSettings(raw json.RawMessage) types.Settings {
	var wire struct {
		HoverEnabled *bool `json:"hoverEnabled"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &wire) != nil {
		return types.DefaultSettings()
	}

	settings := types.DefaultSettings()
	if wire.HoverEnabled != nil {
		settings.HoverEnabled = *wire.HoverEnabled
	}
	return settings
}

// updateSettings replaces the settings snapshot wholesale. It never triggers a rebuild.
func (s *Server) updateSettings(params *protocol.DidChangeConfigurationParams) {
	if s.PullMode() {
		section := s.opts.SettingsSection
		var result []json.RawMessage
		if !s.call(methodWorkspaceConfiguration, protocol.ConfigurationParams{
			Items: []protocol.ConfigurationItem{{Section: &section}},
		}, &result) {
			return
		}

		var raw json.RawMessage
		if len(result) > 0 {
			raw = result[0]
		}
		s.applySettings(raw)
		return
	}

	// Push mode: a notification without any payload leaves settings untouched
	if params == nil || params.Settings == nil {
		return
	}
	s.applySettings(sectionOf(params.Settings, s.opts.SettingsSection))
}

func (s *Server) applySettings(raw json.RawMessage) {
	settings := DecodeSettings(raw)
	shown := string(raw)
	if len(raw) == 0 {
		shown = "null"
	}
	s.logMessage("settings changed: %s", shown)
	s.state.SetSettings(settings)
}

// sectionOf extracts settings[section] from an arbitrary notification payload
func sectionOf(payload any, section string) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var sections map[string]json.RawMessage
	if json.Unmarshal(data, &sections) != nil {
		return nil
	}
	raw := sections[section]
	if string(raw) == "null" {
		return nil
	}
	return raw
}
