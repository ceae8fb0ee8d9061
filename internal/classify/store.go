package classify

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/Network-Direction/chatbot/internal/types"
)

// RuleStore holds the live RuleSet for one plugin and supports wholesale
// replacement on reload. Readers never block: Current returns whichever
// set was installed last, and a failed reload leaves the previous set in
// place.
type RuleStore struct {
	path    string
	current atomic.Pointer[RuleSet]
	logger  *slog.Logger
}

// NewRuleStore loads the rule document at path. An unreadable or
// unparsable document at startup is fatal; there is no previous set to
// fall back to.
func NewRuleStore(path string, logger *slog.Logger) (*RuleStore, error) {
	s := &RuleStore{path: path, logger: logger}
	rs, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current.Store(rs)
	return s, nil
}

// Current returns the live rule set. The returned value is immutable.
func (s *RuleStore) Current() *RuleSet {
	return s.current.Load()
}

// Reload re-reads the document from disk and swaps it in atomically.
// On failure the previous set stays live and the error is logged and
// returned.
func (s *RuleStore) Reload() error {
	rs, err := s.read()
	if err != nil {
		s.logger.Error("rule reload failed, keeping previous rules",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return err
	}
	s.current.Store(rs)
	s.logger.Info("rules reloaded",
		slog.String("path", s.path),
		slog.Int("filters", len(rs.Filters)),
		slog.Int("kinds", len(rs.Kinds)))
	return nil
}

func (s *RuleStore) read() (*RuleSet, error) {
	doc, err := os.ReadFile(s.path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "reading rule document", err)
	}
	return Parse(doc)
}
