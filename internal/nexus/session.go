// Package nexus tracks the NexusMods session: whether the API key has been
// validated yet, whether it is valid, and whether the account is premium.
package nexus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/caedis/mod-updater/internal/helper"
	"github.com/caedis/mod-updater/internal/logging"
	"github.com/caedis/mod-updater/internal/metadata"
	"github.com/caedis/mod-updater/internal/schedule"
)

// Session is safe for concurrent use. Validation runs in the background
// while the engine polls Ready.
type Session struct {
	apiKey string

	ready   atomic.Bool
	valid   atomic.Bool
	premium atomic.Bool

	mu      sync.Mutex
	account string
}

// NewSession returns an unvalidated session for apiKey.
func NewSession(apiKey string) *Session {
	return &Session{apiKey: apiKey}
}

// Token is the API key sent with NexusMods requests.
func (s *Session) Token() string {
	return s.apiKey
}

// Ready reports whether validation has finished, successfully or not.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Valid reports whether the API key was accepted.
func (s *Session) Valid() bool {
	return s.valid.Load()
}

// Premium reports whether the account may resolve direct download links.
func (s *Session) Premium() bool {
	return s.valid.Load() && s.premium.Load()
}

// Account is the validated account name.
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// MarkValidated records a successful validation.
func (s *Session) MarkValidated(account string, premium bool) {
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	s.premium.Store(premium)
	s.valid.Store(true)
	s.ready.Store(true)
}

// MarkInvalid records a failed or skipped validation.
func (s *Session) MarkInvalid() {
	s.mu.Lock()
	s.account = ""
	s.mu.Unlock()
	s.premium.Store(false)
	s.valid.Store(false)
	s.ready.Store(true)
}

// Validate checks the API key through the helper's validate-key command.
// Without a key the session is immediately ready and invalid.
func (s *Session) Validate(ctx context.Context, r helper.Runner, poller *schedule.Poller, parser metadata.Parser) error {
	if s.apiKey == "" {
		logging.Debugf("Verbose: nexus session skipped reason=no-api-key\n")
		s.MarkInvalid()
		return nil
	}

	h, err := r.Start(ctx, helper.ValidateArgs(s.apiKey)...)
	if err != nil {
		s.MarkInvalid()
		return fmt.Errorf("validating NexusMods API key: %w", err)
	}
	if err := helper.Await(ctx, poller, h, helper.MetadataPolls, nil); err != nil {
		s.MarkInvalid()
		return fmt.Errorf("validating NexusMods API key: %w", err)
	}

	fields, err := parser.Parse(h.Output(), metadata.Request{Source: metadata.NexusValidate})
	if err != nil {
		s.MarkInvalid()
		logging.Debugf("Verbose: nexus validate output=%q\n", h.Output())
		return fmt.Errorf("NexusMods API key rejected: %w", err)
	}

	s.MarkValidated(fields.AccountName, fields.Premium)
	logging.Debugf("Verbose: nexus session valid account=%s premium=%t\n", fields.AccountName, fields.Premium)
	return nil
}
