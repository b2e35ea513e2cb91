package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/deskpilot/settings-gateway/internal/kvstore"
	"github.com/deskpilot/settings-gateway/internal/utils"
)

// Legacy flat keys from the first-generation storage layout, where every
// preference lived under its own top-level key. The set is fixed; first-run
// initialization removes all of them whether or not they hold values.
const (
	legacyKeyLanguage       = "language"
	legacyKeyRole           = "userRole"
	legacyKeyRememberSize   = "rememberChatboxSize"
	legacyKeyAutoOpen       = "autoOpenChatbox"
	legacyKeyEnterToSend    = "enterToSend"
	legacyKeySelectedModels = "selectedModels"
	legacyKeyPreferredModel = "preferredModel"
	legacyKeyOpenAIKey      = "openAiApiKey"
	legacyKeyGeminiKey      = "geminiApiKey"
	legacyKeyBacklogs       = "backlogs"
	legacyKeyBacklogKeys    = "backlogApiKeys"
	legacyKeySidebarWidth   = "sidebarWidth"
)

// LegacyKeys returns the fixed legacy key set.
func LegacyKeys() []string {
	return []string{
		legacyKeyLanguage,
		legacyKeyRole,
		legacyKeyRememberSize,
		legacyKeyAutoOpen,
		legacyKeyEnterToSend,
		legacyKeySelectedModels,
		legacyKeyPreferredModel,
		legacyKeyOpenAIKey,
		legacyKeyGeminiKey,
		legacyKeyBacklogs,
		legacyKeyBacklogKeys,
		legacyKeySidebarWidth,
	}
}

// MigrationStrategy builds the initial aggregate document on first run,
// when no aggregate key exists yet. Implementations only read from the
// store; the service removes the legacy keys after the built document
// has been durably persisted, so a failed first write leaves every
// legacy value in place for the next attempt.
type MigrationStrategy interface {
	Migrate(ctx context.Context, store kvstore.Store) (Document, error)
}

// FreshStartMigration discards the legacy layout: the canonical defaults
// become the initial document and the legacy values are never read.
// This matches the shipped behavior of the extension, which never read
// the legacy values back.
type FreshStartMigration struct{}

func (FreshStartMigration) Migrate(ctx context.Context, store kvstore.Store) (Document, error) {
	return Defaults(), nil
}

// CarryOverMigration promotes the legacy flat values field by field into
// the new document. Legacy secrets are already ciphertext under the same
// cipher and are carried as-is.
type CarryOverMigration struct{}

func (CarryOverMigration) Migrate(ctx context.Context, store kvstore.Store) (Document, error) {
	legacy, err := store.Get(ctx, LegacyKeys())
	if err != nil {
		return Document{}, fmt.Errorf("read legacy settings: %w", err)
	}

	base, err := json.Marshal(Defaults())
	if err != nil {
		return Document{}, fmt.Errorf("marshal defaults: %w", err)
	}

	// Scalar promotions: legacy key -> document path.
	type promotion struct {
		key  string
		path string
		set  func(doc []byte, path string, v gjson.Result) ([]byte, error)
	}
	setString := func(doc []byte, path string, v gjson.Result) ([]byte, error) {
		return sjson.SetBytes(doc, path, v.String())
	}
	setBool := func(doc []byte, path string, v gjson.Result) ([]byte, error) {
		return sjson.SetBytes(doc, path, v.Bool())
	}

	promotions := []promotion{
		{legacyKeyLanguage, "general.language", setString},
		{legacyKeyRole, "general.role", setString},
		{legacyKeyRememberSize, "features.rememberChatboxSize", setBool},
		{legacyKeyAutoOpen, "features.autoOpenChatbox", setBool},
		{legacyKeyEnterToSend, "features.enterToSend", setBool},
		{legacyKeyPreferredModel, "aiModels.preferredModel", setString},
		{legacyKeyOpenAIKey, "aiModels.aiProviderKeys.openAi", setString},
		{legacyKeyGeminiKey, "aiModels.aiProviderKeys.gemini", setString},
	}
	for _, p := range promotions {
		raw, ok := legacy[p.key]
		if !ok {
			continue
		}
		v := gjson.ParseBytes(raw)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if base, err = p.set(base, p.path, v); err != nil {
			return Document{}, fmt.Errorf("promote %q: %w", p.key, err)
		}
	}

	if raw, ok := legacy[legacyKeySelectedModels]; ok {
		if v := gjson.ParseBytes(raw); v.IsArray() {
			if base, err = sjson.SetRawBytes(base, "aiModels.selectedModels", raw); err != nil {
				return Document{}, fmt.Errorf("promote %q: %w", legacyKeySelectedModels, err)
			}
		}
	}

	if raw, ok := legacy[legacyKeySidebarWidth]; ok {
		if v := gjson.ParseBytes(raw); v.Type == gjson.Number && v.Int() > 0 {
			if base, err = sjson.SetBytes(base, "sidebarWidth", int(v.Int())); err != nil {
				return Document{}, fmt.Errorf("promote %q: %w", legacyKeySidebarWidth, err)
			}
		}
	}

	backlogs := promoteLegacyBacklogs(legacy[legacyKeyBacklogs], legacy[legacyKeyBacklogKeys])
	if len(backlogs) > 0 {
		rawBacklogs, err := json.Marshal(backlogs)
		if err != nil {
			return Document{}, fmt.Errorf("marshal promoted backlogs: %w", err)
		}
		if base, err = sjson.SetRawBytes(base, "backlog", rawBacklogs); err != nil {
			return Document{}, fmt.Errorf("promote %q: %w", legacyKeyBacklogs, err)
		}
	}

	var doc Document
	if err := json.Unmarshal(base, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshal promoted document: %w", err)
	}

	log.Info().Int("backlogs", len(doc.Backlogs)).Msg("carried legacy settings into aggregate document")
	return doc, nil
}

// promoteLegacyBacklogs joins the legacy backlog list with the legacy
// per-domain credential map. The old list had no stable IDs and kept its
// encrypted keys in a separate "backlogApiKeys" object keyed by domain.
func promoteLegacyBacklogs(rawList, rawKeys json.RawMessage) []Backlog {
	list := gjson.ParseBytes(rawList)
	if !list.IsArray() {
		return nil
	}

	// Domains contain dots, which gjson would treat as path separators,
	// so collect the credential map by iteration instead of Get. Domains
	// are normalized on both sides so promoted records match later
	// merge-by-domain updates.
	keyByDomain := make(map[string]string)
	gjson.ParseBytes(rawKeys).ForEach(func(k, v gjson.Result) bool {
		keyByDomain[utils.NormalizeDomain(k.String())] = v.String()
		return true
	})

	var out []Backlog
	list.ForEach(func(_, item gjson.Result) bool {
		domain := utils.NormalizeDomain(item.Get("domain").String())
		if domain == "" {
			return true
		}
		id := item.Get("id").String()
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, Backlog{
			ID:        id,
			Domain:    domain,
			APIKey:    keyByDomain[domain],
			Note:      item.Get("note").String(),
			Namespace: item.Get("namespace").String(),
		})
		return true
	})
	return out
}
