package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/deskpilot/settings-gateway/internal/cipher"
	"github.com/deskpilot/settings-gateway/internal/kvstore"
	"github.com/deskpilot/settings-gateway/internal/utils"
)

// aggregateKey is the single store key holding the whole document.
const aggregateKey = "settings"

// Service owns the settings document: it loads, caches, migrates,
// encrypts, and mutates it. Construct one per process and hand it to
// consumers; there is no package-level instance.
type Service struct {
	store     kvstore.Store
	cipher    cipher.Cipher
	migration MigrationStrategy

	// mu serializes every read-modify-write cycle and guards the cache
	// pointer. Whole-document writes would otherwise clobber concurrent
	// unrelated-section updates.
	mu    sync.Mutex
	cache *Document
}

// Option configures a Service.
type Option func(*Service)

// WithMigration overrides the first-run migration strategy. The default
// is FreshStartMigration.
func WithMigration(m MigrationStrategy) Option {
	return func(s *Service) { s.migration = m }
}

// New creates a settings service over the given store and cipher.
func New(store kvstore.Store, ciph cipher.Cipher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		cipher:    ciph,
		migration: FreshStartMigration{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns the current document. Cache hits perform no I/O. A
// store read failure is logged and answered with the defaults; reads
// never fail hard, losing a preference read is cheap.
func (s *Service) GetAll(ctx context.Context) Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx).clone()
}

// SaveAll persists doc as the aggregate document and refreshes the
// cache. A write failure is returned and leaves the cache untouched, so
// the caller can retry without a re-read.
func (s *Service) SaveAll(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, doc)
}

// ClearCache drops the in-memory document without touching the store.
// The next GetAll re-reads.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
}

// loadLocked resolves the document: cache, then store, then first-run
// initialization. Callers must hold mu.
func (s *Service) loadLocked(ctx context.Context) Document {
	if s.cache != nil {
		return *s.cache
	}

	values, err := s.store.Get(ctx, []string{aggregateKey})
	if err != nil {
		log.Error().Err(err).Msg("settings read failed, serving defaults")
		return Defaults()
	}

	if raw, ok := values[aggregateKey]; ok {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Error().Err(err).Msg("stored settings are unreadable, serving defaults")
			return Defaults()
		}
		clone := doc.clone()
		s.cache = &clone
		return doc
	}

	// First run: no aggregate document yet.
	doc, err := s.migration.Migrate(ctx, s.store)
	if err != nil {
		log.Error().Err(err).Msg("settings migration failed, serving defaults")
		return Defaults()
	}
	if err := s.saveLocked(ctx, doc); err != nil {
		// Not cached and legacy keys untouched: the next read reruns the
		// migration against intact inputs.
		log.Warn().Err(err).Msg("could not persist initial settings")
		return doc
	}
	// The legacy layout is disposable only once the document is durable.
	if err := s.store.Remove(ctx, LegacyKeys()); err != nil {
		// Leftover legacy keys are harmless; the aggregate key wins from
		// here on.
		log.Warn().Err(err).Msg("could not remove legacy settings keys")
	}
	log.Info().Msg("initialized settings document")
	return doc
}

// saveLocked writes the full document and, on success, adopts it as the
// cache. Callers must hold mu.
func (s *Service) saveLocked(ctx context.Context, doc Document) error {
	raw, err := utils.MarshalNoEscape(doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.store.Set(ctx, map[string]json.RawMessage{aggregateKey: raw}); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	clone := doc.clone()
	s.cache = &clone
	return nil
}

// mutate runs one read-merge-write cycle under the service lock.
func (s *Service) mutate(ctx context.Context, apply func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadLocked(ctx).clone()
	if err := apply(&doc); err != nil {
		return err
	}
	return s.saveLocked(ctx, doc)
}

// =============================================================================
// SECTION ACCESSORS
// =============================================================================

// GetGeneral returns the general preferences section.
func (s *Service) GetGeneral(ctx context.Context) GeneralSettings {
	return s.GetAll(ctx).General
}

// GetFeatures returns the feature-flag section.
func (s *Service) GetFeatures(ctx context.Context) FeatureFlags {
	return s.GetAll(ctx).Features
}

// GetSidebarWidth returns the stored sidebar width in pixels.
func (s *Service) GetSidebarWidth(ctx context.Context) int {
	return s.GetAll(ctx).SidebarWidth
}

// GetAIModels returns the AI model section with both provider-key slots
// decrypted. Each slot is decrypted independently: a failed slot comes
// back empty and is logged, the sibling slot is unaffected.
func (s *Service) GetAIModels(ctx context.Context) AIModelSettings {
	sec := s.GetAll(ctx).AIModels
	sec.ProviderKeys.OpenAI = s.decryptSlot(ctx, "openAi", sec.ProviderKeys.OpenAI)
	sec.ProviderKeys.Gemini = s.decryptSlot(ctx, "gemini", sec.ProviderKeys.Gemini)
	return sec
}

// GetBacklogs returns all integration records, in stored order, with
// each APIKey decrypted independently.
func (s *Service) GetBacklogs(ctx context.Context) []Backlog {
	backlogs := s.GetAll(ctx).Backlogs
	for i := range backlogs {
		backlogs[i].APIKey = s.decryptSlot(ctx, "backlog:"+backlogs[i].Domain, backlogs[i].APIKey)
	}
	return backlogs
}

// decryptSlot opens one secret slot. Empty slots never reach the
// cipher. Failures yield an empty value so one corrupt slot can't take
// down the rest of the section.
func (s *Service) decryptSlot(ctx context.Context, slot, value string) string {
	if value == "" {
		return ""
	}
	plain, err := s.cipher.Decrypt(ctx, value)
	if err != nil {
		log.Warn().Err(err).Str("slot", slot).Str("value", utils.MaskSecret(value)).
			Msg("credential slot failed to decrypt")
		return ""
	}
	return plain
}

// encryptSlot seals a plaintext secret. Empty stays empty.
func (s *Service) encryptSlot(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	sealed, err := s.cipher.Encrypt(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return sealed, nil
}

// =============================================================================
// SECTION MUTATORS
// =============================================================================

// UpdateGeneral shallow-merges patch into the general section.
func (s *Service) UpdateGeneral(ctx context.Context, patch GeneralPatch) error {
	return s.mutate(ctx, func(doc *Document) error {
		if patch.Language != nil {
			doc.General.Language = *patch.Language
		}
		if patch.Role != nil {
			doc.General.Role = *patch.Role
		}
		return nil
	})
}

// UpdateFeatures shallow-merges patch into the feature-flag section.
func (s *Service) UpdateFeatures(ctx context.Context, patch FeaturesPatch) error {
	return s.mutate(ctx, func(doc *Document) error {
		if patch.RememberChatboxSize != nil {
			v := *patch.RememberChatboxSize
			doc.Features.RememberChatboxSize = &v
		}
		if patch.AutoOpenChatbox != nil {
			doc.Features.AutoOpenChatbox = *patch.AutoOpenChatbox
		}
		if patch.EnterToSend != nil {
			doc.Features.EnterToSend = *patch.EnterToSend
		}
		return nil
	})
}

// UpdateSidebarWidth stores a new sidebar width.
func (s *Service) UpdateSidebarWidth(ctx context.Context, width int) error {
	if width <= 0 {
		return fmt.Errorf("sidebar width must be positive, got %d", width)
	}
	return s.mutate(ctx, func(doc *Document) error {
		doc.SidebarWidth = width
		return nil
	})
}

// UpdateAIModels shallow-merges patch into the AI model section, with a
// nested shallow-merge for the provider-key slots. Supplied non-empty
// slot values are encrypted; supplied empty values clear the slot; nil
// slots stay untouched. A PreferredModel that is not a member of
// SelectedModels after the merge is cleared rather than persisted.
func (s *Service) UpdateAIModels(ctx context.Context, patch AIModelsPatch) error {
	return s.mutate(ctx, func(doc *Document) error {
		sec := &doc.AIModels

		if patch.SelectedModels != nil {
			sec.SelectedModels = lo.Uniq(patch.SelectedModels)
		}
		if patch.PreferredModel != nil {
			sec.PreferredModel = *patch.PreferredModel
		}

		if pk := patch.ProviderKeys; pk != nil {
			if pk.OpenAI != nil {
				sealed, err := s.encryptSlot(ctx, *pk.OpenAI)
				if err != nil {
					return err
				}
				sec.ProviderKeys.OpenAI = sealed
			}
			if pk.Gemini != nil {
				sealed, err := s.encryptSlot(ctx, *pk.Gemini)
				if err != nil {
					return err
				}
				sec.ProviderKeys.Gemini = sealed
			}
		}

		if sec.PreferredModel != "" && !lo.Contains(sec.SelectedModels, sec.PreferredModel) {
			log.Warn().Str("model", sec.PreferredModel).
				Msg("preferred model is not among selected models, clearing")
			sec.PreferredModel = ""
		}
		return nil
	})
}

// UpdateBacklogs reconciles the supplied records against storage,
// matching on domain rather than record ID. An existing domain is
// updated in place (an empty supplied APIKey keeps the stored
// ciphertext); an unknown domain is appended with a fresh ID. Repeating
// the same domain across calls therefore never duplicates it.
func (s *Service) UpdateBacklogs(ctx context.Context, inputs []BacklogInput) error {
	return s.mutate(ctx, func(doc *Document) error {
		for _, in := range inputs {
			domain := utils.NormalizeDomain(in.Domain)
			if domain == "" {
				return fmt.Errorf("backlog domain is required")
			}

			_, idx, found := lo.FindIndexOf(doc.Backlogs, func(b Backlog) bool {
				return b.Domain == domain
			})
			if found {
				rec := &doc.Backlogs[idx]
				rec.Note = in.Note
				rec.Namespace = in.Namespace
				if in.APIKey != "" {
					sealed, err := s.encryptSlot(ctx, in.APIKey)
					if err != nil {
						return err
					}
					rec.APIKey = sealed
				}
				continue
			}

			sealed, err := s.encryptSlot(ctx, in.APIKey)
			if err != nil {
				return err
			}
			doc.Backlogs = append(doc.Backlogs, Backlog{
				ID:        uuid.NewString(),
				Domain:    domain,
				APIKey:    sealed,
				Note:      in.Note,
				Namespace: in.Namespace,
			})
		}
		return nil
	})
}

// AddBacklog appends a new integration record with a fresh ID and
// returns the ID. Unlike UpdateBacklogs it does not merge by domain.
func (s *Service) AddBacklog(ctx context.Context, in BacklogInput) (string, error) {
	domain := utils.NormalizeDomain(in.Domain)
	if domain == "" {
		return "", fmt.Errorf("backlog domain is required")
	}

	id := uuid.NewString()
	err := s.mutate(ctx, func(doc *Document) error {
		sealed, err := s.encryptSlot(ctx, in.APIKey)
		if err != nil {
			return err
		}
		doc.Backlogs = append(doc.Backlogs, Backlog{
			ID:        id,
			Domain:    domain,
			APIKey:    sealed,
			Note:      in.Note,
			Namespace: in.Namespace,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveBacklog deletes the record with the given ID. Removing an
// unknown ID is a no-op.
func (s *Service) RemoveBacklog(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.Backlogs = lo.Reject(doc.Backlogs, func(b Backlog, _ int) bool {
			return b.ID == id
		})
		return nil
	})
}

// ResetAll clears the entire backing store, drops the cache, and
// reinitializes with the canonical defaults.
func (s *Service) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = nil
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear settings store: %w", err)
	}
	if err := s.saveLocked(ctx, Defaults()); err != nil {
		return err
	}
	log.Info().Msg("settings reset to defaults")
	return nil
}
