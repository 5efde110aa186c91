package application

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Setting keys persisted between sessions.
const (
	SettingLLMProvider = "llm_provider"
	SettingLLMModel    = "llm_model"
	SettingLLMAPIKey   = "llm_api_key"
	SettingLastAddress = "last_address"
	SettingLastChain   = "last_chain"
)

var knownSettings = map[string]bool{
	SettingLLMProvider: true,
	SettingLLMModel:    true,
	SettingLLMAPIKey:   true,
	SettingLastAddress: true,
	SettingLastChain:   true,
}

var ErrUnknownSetting = errors.New("unknown setting")

// KnownSetting reports whether key may be stored.
func KnownSetting(key string) bool {
	return knownSettings[key]
}

// KnownSettings lists every storable key in sorted order.
func KnownSettings() []string {
	return slices.Sorted(maps.Keys(knownSettings))
}

// SecretSetting reports whether the value of key must not be echoed back.
func SecretSetting(key string) bool {
	return key == SettingLLMAPIKey
}

// MaskSecret keeps the last four characters of value.
func MaskSecret(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
