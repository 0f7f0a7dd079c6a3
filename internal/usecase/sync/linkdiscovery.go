package sync

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// suggestionThreshold is the minimum name-similarity score for an untracked
// runtime workflow to produce a link suggestion instead of a new identity.
const suggestionThreshold = 0.8

// suggestLink scores an untracked runtime workflow against canonicals that
// have no mapping in this environment and records the best match as an open
// suggestion. Returns true when a suggestion was created (or already open).
func (s *Service) suggestLink(ctx context.Context, env ports.Environment, summary ports.RuntimeWorkflowSummary, canonicals []ports.CanonicalWorkflow, mappedCanonicals map[string]struct{}) (bool, error) {
	var (
		best      ports.CanonicalWorkflow
		bestScore float64
	)
	for _, canonical := range canonicals {
		if _, mapped := mappedCanonicals[canonical.CanonicalID]; mapped {
			continue
		}
		if score := nameSimilarity(summary.Name, canonical.DisplayName); score > bestScore {
			best, bestScore = canonical, score
		}
	}
	if bestScore < suggestionThreshold {
		return false, nil
	}

	open, err := s.workflows.ListLinkSuggestions(ctx, env.TenantID, env.ID, drift.SuggestionOpen)
	if err != nil {
		return false, errs.Wrap(err, "list open suggestions")
	}
	for _, sg := range open {
		if sg.N8NWorkflowID == summary.ID && sg.CanonicalID == best.CanonicalID {
			return true, nil
		}
	}

	if _, err := s.workflows.CreateLinkSuggestion(ctx, ports.LinkSuggestion{
		ID:            uuid.NewString(),
		TenantID:      env.TenantID,
		EnvironmentID: env.ID,
		CanonicalID:   best.CanonicalID,
		N8NWorkflowID: summary.ID,
		WorkflowName:  summary.Name,
		Score:         bestScore,
		Status:        drift.SuggestionOpen,
		CreatedAt:     s.now(),
	}); err != nil {
		return false, errs.Wrap(err, "create link suggestion")
	}

	logging.Info(ctx, "link suggestion created",
		slog.String("canonical_id", best.CanonicalID),
		slog.String("n8n_workflow_id", summary.ID),
		slog.Float64("score", bestScore),
	)
	return true, nil
}

// AcceptLinkSuggestion links the suggested mapping and marks the suggestion
// accepted.
func (s *Service) AcceptLinkSuggestion(ctx context.Context, tenantID, suggestionID, acceptedBy string) error {
	suggestion, err := s.workflows.GetLinkSuggestion(ctx, tenantID, suggestionID)
	if err != nil {
		return errs.Wrap(err, "load suggestion")
	}
	if suggestion.Status != drift.SuggestionOpen {
		return errs.Newf("suggestion %s is %s, only open suggestions can be accepted", suggestionID, suggestion.Status)
	}

	now := s.now()
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.workflows.UpsertEnvMap(txCtx, ports.EnvMap{
			TenantID:       suggestion.TenantID,
			EnvironmentID:  suggestion.EnvironmentID,
			CanonicalID:    suggestion.CanonicalID,
			N8NWorkflowID:  suggestion.N8NWorkflowID,
			LinkedAt:       &now,
			LinkedByUserID: acceptedBy,
			Status:         "linked",
		}); err != nil {
			return errs.Wrap(err, "link mapping")
		}
		return s.workflows.ResolveLinkSuggestion(txCtx, tenantID, suggestionID, drift.SuggestionAccepted, acceptedBy, now)
	})
}

// RejectLinkSuggestion marks the suggestion rejected; the next environment
// sync will mint a fresh identity for the runtime workflow.
func (s *Service) RejectLinkSuggestion(ctx context.Context, tenantID, suggestionID, rejectedBy string) error {
	suggestion, err := s.workflows.GetLinkSuggestion(ctx, tenantID, suggestionID)
	if err != nil {
		return errs.Wrap(err, "load suggestion")
	}
	if suggestion.Status != drift.SuggestionOpen {
		return errs.Newf("suggestion %s is %s, only open suggestions can be rejected", suggestionID, suggestion.Status)
	}
	return s.workflows.ResolveLinkSuggestion(ctx, tenantID, suggestionID, drift.SuggestionRejected, rejectedBy, s.now())
}

// ExpireStaleSuggestions sweeps open suggestions older than the cutoff.
func (s *Service) ExpireStaleSuggestions(ctx context.Context, tenantID string, maxAge time.Duration) (int64, error) {
	expired, err := s.workflows.ExpireOpenSuggestionsBefore(ctx, tenantID, s.now().Add(-maxAge))
	if err != nil {
		return 0, errs.Wrap(err, "expire stale suggestions")
	}
	return expired, nil
}

// nameSimilarity is token Jaccard over lowercased alphanumeric words. Cheap
// and adequate for human-named workflows; no fuzzy edit distance needed.
func nameSimilarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		set[tok] = struct{}{}
	}

	union := make(map[string]struct{}, len(ta)+len(tb))
	for _, tok := range ta {
		union[tok] = struct{}{}
	}
	intersection := 0
	seen := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			intersection++
		}
		union[tok] = struct{}{}
	}
	return float64(intersection) / float64(len(union))
}

func tokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}
