// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

// API bundles the transport constructors with the settings that apply
// to every object it creates.
type API struct {
	settingEngine *SettingEngine
}

// NewAPI creates a new API object for keeping semi-global settings to
// the transport objects.
func NewAPI(options ...func(*API)) *API {
	a := &API{}

	for _, o := range options {
		o(a)
	}

	if a.settingEngine == nil {
		a.settingEngine = &SettingEngine{}
	}

	return a
}

// WithSettingEngine allows providing a SettingEngine to the API.
// Settings should not be changed after passing the engine to an API.
func WithSettingEngine(s SettingEngine) func(a *API) {
	return func(a *API) {
		a.settingEngine = &s
	}
}
