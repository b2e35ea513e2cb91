// Package settings owns the unified configuration document for the
// assistant extension: general preferences, feature flags, AI model
// selection, per-domain ticketing integrations, and UI layout state.
//
// DESIGN: One aggregate document under one store key. Secret fields
// (provider API keys, per-integration API keys) are encrypted before
// they reach the store and decrypted on the way out; plaintext secrets
// only ever exist in memory. Mutations are whole-document
// read-merge-write, serialized by the service.
package settings

// GeneralSettings holds plain, non-secret user preferences.
type GeneralSettings struct {
	Language string `json:"language"`
	Role     string `json:"role"`
}

// FeatureFlags are per-feature toggles for the in-page chatbot.
// RememberChatboxSize is tri-state: nil means the user never chose.
type FeatureFlags struct {
	RememberChatboxSize *bool `json:"rememberChatboxSize,omitempty"`
	AutoOpenChatbox     bool  `json:"autoOpenChatbox"`
	EnterToSend         bool  `json:"enterToSend"`
}

// ProviderKeys are the two named secret slots for AI provider
// credentials. Stored values are ciphertext; empty means unset.
type ProviderKeys struct {
	OpenAI string `json:"openAi"`
	Gemini string `json:"gemini"`
}

// AIModelSettings holds model selection plus provider credentials.
// PreferredModel should be a member of SelectedModels; the service
// auto-clears it on write when it is not.
type AIModelSettings struct {
	SelectedModels []string     `json:"selectedModels"`
	PreferredModel string       `json:"preferredModel"`
	ProviderKeys   ProviderKeys `json:"aiProviderKeys"`
}

// Backlog is one ticketing-system integration. APIKey is a secret slot.
// Namespace is filled in only after a successful connectivity test
// against the integration.
type Backlog struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	APIKey    string `json:"apiKey"`
	Note      string `json:"note"`
	Namespace string `json:"namespace"`
}

// Document is the aggregate settings document, persisted as a whole
// under a single store key.
type Document struct {
	General      GeneralSettings `json:"general"`
	Features     FeatureFlags    `json:"features"`
	AIModels     AIModelSettings `json:"aiModels"`
	Backlogs     []Backlog       `json:"backlog"`
	SidebarWidth int             `json:"sidebarWidth"`
}

// DefaultSidebarWidth is the initial chatbot sidebar width in pixels.
const DefaultSidebarWidth = 420

// Defaults returns the canonical default document. All secret slots and
// lists are empty, so the result is safe to persist as-is.
func Defaults() Document {
	return Document{
		General: GeneralSettings{
			Language: "en",
			Role:     "",
		},
		Features: FeatureFlags{
			RememberChatboxSize: nil,
			AutoOpenChatbox:     false,
			EnterToSend:         true,
		},
		AIModels: AIModelSettings{
			SelectedModels: []string{},
			PreferredModel: "",
			ProviderKeys:   ProviderKeys{},
		},
		Backlogs:     []Backlog{},
		SidebarWidth: DefaultSidebarWidth,
	}
}

// clone deep-copies the document so cached state never aliases slices
// handed to callers.
func (d Document) clone() Document {
	out := d
	if d.Features.RememberChatboxSize != nil {
		v := *d.Features.RememberChatboxSize
		out.Features.RememberChatboxSize = &v
	}
	if d.AIModels.SelectedModels != nil {
		out.AIModels.SelectedModels = make([]string, len(d.AIModels.SelectedModels))
		copy(out.AIModels.SelectedModels, d.AIModels.SelectedModels)
	}
	if d.Backlogs != nil {
		out.Backlogs = make([]Backlog, len(d.Backlogs))
		copy(out.Backlogs, d.Backlogs)
	}
	return out
}

// =============================================================================
// PARTIAL UPDATES
// =============================================================================
//
// Patch types use pointer fields so "omitted" and "set to zero value" are
// distinguishable. A nil field leaves the stored value untouched.

// GeneralPatch is a partial update for GeneralSettings.
type GeneralPatch struct {
	Language *string `json:"language"`
	Role     *string `json:"role"`
}

// FeaturesPatch is a partial update for FeatureFlags.
type FeaturesPatch struct {
	RememberChatboxSize *bool `json:"rememberChatboxSize"`
	AutoOpenChatbox     *bool `json:"autoOpenChatbox"`
	EnterToSend         *bool `json:"enterToSend"`
}

// ProviderKeysPatch is a nested partial update for the provider-key
// slots. Supplied non-empty values are encrypted before merging; a
// supplied empty string clears the slot; nil leaves it untouched.
type ProviderKeysPatch struct {
	OpenAI *string `json:"openAi"`
	Gemini *string `json:"gemini"`
}

// AIModelsPatch is a partial update for AIModelSettings. A nil
// SelectedModels leaves the stored list untouched; an empty non-nil
// slice clears it.
type AIModelsPatch struct {
	SelectedModels []string           `json:"selectedModels"`
	PreferredModel *string            `json:"preferredModel"`
	ProviderKeys   *ProviderKeysPatch `json:"aiProviderKeys"`
}

// BacklogInput is the caller-supplied shape for backlog updates. APIKey
// is plaintext here; the service encrypts it before storage. An empty
// APIKey on an existing domain keeps the previously stored ciphertext.
type BacklogInput struct {
	Domain    string `json:"domain"`
	APIKey    string `json:"apiKey"`
	Note      string `json:"note"`
	Namespace string `json:"namespace"`
}
