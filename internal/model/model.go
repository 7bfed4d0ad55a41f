// Package model defines the static catalog of selectable chat models.
//
// Profiles are looked up by display name (the identifier the frontend shows
// and sends back). Unknown names fall back to the default profile rather than
// failing, so a stale client can never break a session.
package model

// Profile is an immutable catalog entry for one selectable model.
type Profile struct {
	// DisplayName is the user-facing identifier (e.g., "GPT-4o-mini").
	DisplayName string `json:"-"`

	// ProviderModelID is the provider-side model identifier (e.g., "gpt-4o-mini").
	ProviderModelID string `json:"id"`

	// Description is a short human-readable summary for the model picker.
	Description string `json:"description"`

	// SupportsVision reports whether the model accepts image content.
	SupportsVision bool `json:"supports_vision"`
}

// DefaultName is the display name of the default model profile.
const DefaultName = "GPT-4o-mini"

// catalog holds all selectable models, keyed by display name.
var catalog = map[string]Profile{
	"GPT-4o-mini": {
		DisplayName:     "GPT-4o-mini",
		ProviderModelID: "gpt-4o-mini",
		Description:     "Fast & efficient",
		SupportsVision:  true,
	},
	"GPT-4o": {
		DisplayName:     "GPT-4o",
		ProviderModelID: "gpt-4o",
		Description:     "High quality",
		SupportsVision:  true,
	},
	"GPT-4-turbo": {
		DisplayName:     "GPT-4-turbo",
		ProviderModelID: "gpt-4-turbo",
		Description:     "Balanced",
		SupportsVision:  true,
	},
	"o1-mini": {
		DisplayName:     "o1-mini",
		ProviderModelID: "o1-mini",
		Description:     "Advanced reasoning",
		SupportsVision:  false,
	},
}

// Lookup returns the profile for the given display name.
// Unknown or empty names fall back to the default profile.
func Lookup(displayName string) Profile {
	if p, ok := catalog[displayName]; ok {
		return p
	}
	return catalog[DefaultName]
}

// Default returns the default model profile.
func Default() Profile {
	return catalog[DefaultName]
}

// Catalog returns a copy of the full model catalog keyed by display name.
// The copy prevents callers from mutating the package-level catalog.
func Catalog() map[string]Profile {
	out := make(map[string]Profile, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}
