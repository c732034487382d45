package staging

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// Dedup rule names, recorded on the DuplicateError for operator logs.
const (
	RuleNameCity   = "name+city"
	RuleSamePhone  = "phone"
	RuleStreetCity = "street+city"
)

// checkStagedDuplicate looks for an existing staged record matching the
// candidate. Returns a DuplicateError naming the match, or nil.
func checkStagedDuplicate(ctx context.Context, s Store, e *model.ScrapedEstablishment) error {
	matches, err := s.FindStagedMatches(ctx, KeyFor(e))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	m := &matches[0]
	logDivergence(e, &m.Establishment, m.ID)
	return &DuplicateError{
		MatchedStagedID: m.ID,
		Rule:            matchRule(e, KeyFor(&m.Establishment)),
	}
}

// checkBusinessDuplicate looks for a published business matching the
// candidate. Promotion runs this against the live catalog only.
func checkBusinessDuplicate(ctx context.Context, s Store, e *model.ScrapedEstablishment) error {
	matches, err := s.FindBusinessMatches(ctx, KeyFor(e))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	m := &matches[0]
	return &DuplicateError{
		MatchedBusinessID: m.ID,
		Rule: matchRule(e, DedupKey{
			Name: m.Name, City: m.City, Phone: m.Phone, Street: m.Street,
		}),
	}
}

// matchRule names the first rule that fired between a candidate and a
// matched key.
func matchRule(e *model.ScrapedEstablishment, matched DedupKey) string {
	switch {
	case e.Name != "" && strings.EqualFold(e.Name, matched.Name) && strings.EqualFold(e.City, matched.City):
		return RuleNameCity
	case e.Phone != "" && e.Phone == matched.Phone:
		return RuleSamePhone
	default:
		return RuleStreetCity
	}
}

// logDivergence records fields where a duplicate candidate disagrees with
// the record it matched. Divergent values are never merged automatically;
// the log line is the handoff to a human.
func logDivergence(candidate, existing *model.ScrapedEstablishment, existingID string) {
	var fields []zap.Field
	if candidate.Phone != "" && existing.Phone != "" && candidate.Phone != existing.Phone {
		fields = append(fields, zap.String("phone_new", candidate.Phone), zap.String("phone_existing", existing.Phone))
	}
	if candidate.Website != "" && existing.Website != "" && candidate.Website != existing.Website {
		fields = append(fields, zap.String("website_new", candidate.Website), zap.String("website_existing", existing.Website))
	}
	if candidate.Street != "" && existing.Street != "" && !strings.EqualFold(candidate.Street, existing.Street) {
		fields = append(fields, zap.String("street_new", candidate.Street), zap.String("street_existing", existing.Street))
	}
	if len(fields) == 0 {
		return
	}

	fields = append(fields,
		zap.String("staged_id", existingID),
		zap.String("name", candidate.Name),
		zap.String("source", candidate.Source.String()),
	)
	zap.L().Warn("duplicate candidate has divergent fields, manual merge needed", fields...)
}
