// Package transactions ingests scans: duplicate detection, score mutation,
// deletion with full-replay recomputation, and the domain events each of
// those emits.
package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scanquest/orchestrator/internal/catalog"
	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/scoring"
	"github.com/scanquest/orchestrator/internal/session"
)

// Rejection reasons carried on rejected transactions
const (
	ReasonUnknownToken  = "UNKNOWN_TOKEN"
	ReasonUnknownTeam   = "UNKNOWN_TEAM"
	ReasonNoSession     = "NO_ACTIVE_SESSION"
	ReasonSessionPaused = "SESSION_PAUSED"
	ReasonSessionEnded  = "SESSION_ENDED"
)

// Processor applies scan commands against the current session. All mutations
// run inside the session manager's lock, so concurrent scans from different
// stations cannot race on score or duplicate-set updates.
type Processor struct {
	log      logger.Logger
	catalog  *catalog.Catalog
	sessions *session.Manager
	bus      *events.Bus
}

// New creates a transaction processor
func New(log logger.Logger, cat *catalog.Catalog, sessions *session.Manager, bus *events.Bus) *Processor {
	return &Processor{log: log, catalog: cat, sessions: sessions, bus: bus}
}

// ScanRequest is one token presentation from a station
type ScanRequest struct {
	TokenID    string    `json:"token_id"`
	TeamID     string    `json:"team_id"`
	DeviceID   string    `json:"device_id"`
	DeviceType string    `json:"device_type"`
	Mode       string    `json:"mode"`
	Timestamp  time.Time `json:"timestamp"`
	Summary    string    `json:"summary,omitempty"`
}

// ScanResult is the outcome of one scan: the recorded transaction plus the
// team's score when it changed.
type ScanResult struct {
	Transaction models.Transaction `json:"transaction"`
	Score       *models.TeamScore  `json:"score,omitempty"`
	// Group id when this scan completed a token group
	GroupCompleted string `json:"group_completed,omitempty"`
	GroupBonus     int    `json:"group_bonus,omitempty"`
}

// GroupCompletedPayload is the group:completed event body
type GroupCompletedPayload struct {
	TeamID  string `json:"team_id"`
	GroupID string `json:"group_id"`
	Bonus   int    `json:"bonus"`
}

// DeleteResult is the outcome of a transaction deletion
type DeleteResult struct {
	Deleted models.Transaction `json:"deleted"`
	Score   *models.TeamScore  `json:"score"`
}

// ProcessScan validates, dedupes, and scores one scan. Rejections and
// duplicates are domain outcomes, not errors: they come back as transactions
// with the matching status and only ever reach the submitting device.
func (p *Processor) ProcessScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.TokenID == "" {
		return nil, errors.Validation("token id is required")
	}
	if req.DeviceID == "" {
		return nil, errors.Validation("device id is required")
	}
	if req.Mode == "" {
		req.Mode = models.ModeScoring
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx := models.Transaction{
		ID:         uuid.NewString(),
		TokenID:    req.TokenID,
		TeamID:     req.TeamID,
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Mode:       req.Mode,
		Timestamp:  ts,
		Summary:    req.Summary,
	}

	result := &ScanResult{}
	err := p.sessions.Mutate(ctx, func(s *models.Session) error {
		p.applyScan(s, req, tx, result)
		// Publishing under the session lock keeps score deltas on the bus in
		// the same order the scans were applied.
		p.emitScanEvents(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyScan runs the scan pipeline against the live session. Callers hold the
// session lock.
func (p *Processor) applyScan(s *models.Session, req ScanRequest, tx models.Transaction, result *ScanResult) {
	token, known := p.catalog.Get(req.TokenID)

	// Unknown tokens are rejected but still recorded for audit when a
	// live session can hold them.
	if !known {
		tx.Status = models.TxRejected
		tx.RejectionReason = ReasonUnknownToken
		if s != nil && s.Status == models.SessionActive {
			s.Transactions = append(s.Transactions, tx)
		}
		result.Transaction = tx
		return
	}

	switch {
	case s == nil:
		tx.Status = models.TxRejected
		tx.RejectionReason = ReasonNoSession
		result.Transaction = tx
		return
	case s.Status == models.SessionEnded:
		tx.Status = models.TxRejected
		tx.RejectionReason = ReasonSessionEnded
		result.Transaction = tx
		return
	case s.Status == models.SessionPaused:
		// Paused sessions reject scans outright; nothing is queued for
		// replay on resume.
		tx.Status = models.TxRejected
		tx.RejectionReason = ReasonSessionPaused
		result.Transaction = tx
		return
	}

	// Scans only count for teams playing this session. Accepting a stray team
	// would score points no full sync ever reports.
	if !contains(s.Teams, req.TeamID) {
		tx.Status = models.TxRejected
		tx.RejectionReason = ReasonUnknownTeam
		s.Transactions = append(s.Transactions, tx)
		result.Transaction = tx
		return
	}

	// Duplicate check: this device first, then any device's accepted claim
	if original := p.findOriginal(s, req.DeviceID, req.TokenID); original != "" {
		tx.Status = models.TxDuplicate
		tx.OriginalTransactionID = original
		s.Transactions = append(s.Transactions, tx)
		result.Transaction = tx
		return
	}

	tx.Status = models.TxAccepted
	if req.Mode == models.ModeScoring {
		tx.Points = scoring.TokenValue(token)
	}
	s.Transactions = append(s.Transactions, tx)
	s.Metadata.ScannedTokensByDevice[req.DeviceID] = append(
		s.Metadata.ScannedTokensByDevice[req.DeviceID], req.TokenID)

	score := s.Scores[req.TeamID]
	if score == nil {
		score = &models.TeamScore{TeamID: req.TeamID, CompletedGroups: []string{}}
		s.Scores[req.TeamID] = score
	}
	score.BaseScore += tx.Points
	score.TokensScanned++
	score.LastUpdate = time.Now()

	if token.GroupID != "" && !contains(score.CompletedGroups, token.GroupID) {
		accepted := acceptedTokens(s, req.TeamID)
		members := p.catalog.GroupMembers(token.GroupID)
		if scoring.GroupComplete(members, accepted) {
			bonus := scoring.GroupBonus(members, accepted)
			score.BonusPoints += bonus
			score.CompletedGroups = append(score.CompletedGroups, token.GroupID)
			result.GroupCompleted = token.GroupID
			result.GroupBonus = bonus
		}
	}
	score.CurrentScore = score.BaseScore + score.BonusPoints

	sc := *score
	sc.CompletedGroups = append([]string(nil), score.CompletedGroups...)
	result.Transaction = tx
	result.Score = &sc
}

// findOriginal returns the transaction id of the prior claim on the token, or
// "" when the token is unclaimed. The submitting device's own accepted
// transaction wins over another device's.
func (p *Processor) findOriginal(s *models.Session, deviceID, tokenID string) string {
	deviceScanned := contains(s.Metadata.ScannedTokensByDevice[deviceID], tokenID)
	for _, t := range s.Transactions {
		if t.TokenID != tokenID || t.Status != models.TxAccepted {
			continue
		}
		if deviceScanned && t.DeviceID == deviceID {
			return t.ID
		}
		if !deviceScanned {
			return t.ID
		}
	}
	return ""
}

func (p *Processor) emitScanEvents(result *ScanResult) {
	tx := result.Transaction

	switch tx.Status {
	case models.TxAccepted:
		p.log.Info("Scan accepted", "token_id", tx.TokenID, "team_id", tx.TeamID,
			"device_id", tx.DeviceID, "points", tx.Points)
		p.bus.Publish(events.TransactionNew, tx)
	case models.TxDuplicate:
		p.log.Debug("Duplicate scan", "token_id", tx.TokenID, "device_id", tx.DeviceID,
			"original", tx.OriginalTransactionID)
	case models.TxRejected:
		p.log.Debug("Scan rejected", "token_id", tx.TokenID, "device_id", tx.DeviceID,
			"reason", tx.RejectionReason)
	}

	// Every submitter learns its own outcome; duplicates and rejections must
	// not pollute the shared feed.
	p.bus.PublishTo(tx.DeviceID, events.TransactionResult, result)

	if result.GroupCompleted != "" {
		p.log.Info("Group completed", "team_id", tx.TeamID, "group_id", result.GroupCompleted,
			"bonus", result.GroupBonus)
		p.bus.Publish(events.GroupCompleted, GroupCompletedPayload{
			TeamID:  tx.TeamID,
			GroupID: result.GroupCompleted,
			Bonus:   result.GroupBonus,
		})
	}
	if result.Score != nil {
		p.bus.Publish(events.ScoreUpdated, *result.Score)
	}
}

// DeleteTransaction removes a transaction from the log and the owning
// device's scanned set, re-enabling future scans of that token, then rebuilds
// the team's score by replaying the remaining log from scratch. Incremental
// subtraction is deliberately avoided: group-bonus state depends on exact set
// membership and drifts under arithmetic shortcuts.
func (p *Processor) DeleteTransaction(ctx context.Context, transactionID string) (*DeleteResult, error) {
	result := &DeleteResult{}
	err := p.sessions.Mutate(ctx, func(s *models.Session) error {
		if s == nil {
			return errors.SessionState("no session in progress")
		}
		if s.Status == models.SessionEnded {
			return errors.SessionState("session has ended, transaction log is frozen")
		}

		idx := -1
		for i, t := range s.Transactions {
			if t.ID == transactionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.NotFoundf("transaction %s not found", transactionID)
		}

		deleted := s.Transactions[idx]
		s.Transactions = append(s.Transactions[:idx], s.Transactions[idx+1:]...)

		if deleted.Status == models.TxAccepted {
			s.Metadata.ScannedTokensByDevice[deleted.DeviceID] =
				remove(s.Metadata.ScannedTokensByDevice[deleted.DeviceID], deleted.TokenID)
		}

		score := p.RebuildScore(s, deleted.TeamID)
		s.Scores[deleted.TeamID] = score

		sc := *score
		sc.CompletedGroups = append([]string(nil), score.CompletedGroups...)
		result.Deleted = deleted
		result.Score = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Transaction deleted", "transaction_id", transactionID,
		"token_id", result.Deleted.TokenID, "team_id", result.Deleted.TeamID)
	p.bus.Publish(events.TransactionDeleted, result.Deleted)
	p.bus.Publish(events.ScoreUpdated, *result.Score)
	return result, nil
}

// RebuildScore replays the session's transaction log for one team and
// returns the resulting score. The live score must match this at any
// quiescent point.
func (p *Processor) RebuildScore(s *models.Session, teamID string) *models.TeamScore {
	score := &models.TeamScore{TeamID: teamID, CompletedGroups: []string{}, LastUpdate: time.Now()}
	if s == nil {
		return score
	}

	accepted := make(map[string]bool)
	groupsSeen := make(map[string]bool)
	for _, t := range s.Transactions {
		if t.TeamID != teamID || t.Status != models.TxAccepted {
			continue
		}
		score.BaseScore += t.Points
		score.TokensScanned++
		accepted[t.TokenID] = true
		if tok, ok := p.catalog.Get(t.TokenID); ok && tok.GroupID != "" {
			groupsSeen[tok.GroupID] = true
		}
	}

	for groupID := range groupsSeen {
		members := p.catalog.GroupMembers(groupID)
		if scoring.GroupComplete(members, accepted) {
			score.BonusPoints += scoring.GroupBonus(members, accepted)
			score.CompletedGroups = append(score.CompletedGroups, groupID)
		}
	}

	score.CurrentScore = score.BaseScore + score.BonusPoints
	return score
}

// AdjustScore applies a manual bonus-point delta to a team (game-master
// override). The reason is logged and travels with the score event.
func (p *Processor) AdjustScore(ctx context.Context, teamID string, delta int, reason string) (*models.TeamScore, error) {
	if teamID == "" {
		return nil, errors.Validation("team id is required")
	}

	var updated models.TeamScore
	err := p.sessions.Mutate(ctx, func(s *models.Session) error {
		if s == nil || s.Status == models.SessionEnded {
			return errors.SessionState("no active or paused session")
		}
		score := s.Scores[teamID]
		if score == nil {
			return errors.NotFoundf("team %s not found in session", teamID)
		}
		score.BonusPoints += delta
		score.CurrentScore = score.BaseScore + score.BonusPoints
		score.LastUpdate = time.Now()
		updated = *score
		updated.CompletedGroups = append([]string(nil), score.CompletedGroups...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Score adjusted", "team_id", teamID, "delta", delta, "reason", reason)
	p.bus.Publish(events.ScoreUpdated, updated)
	return &updated, nil
}

// ResetScores zeroes every team's score entry. The transaction log is left
// intact; this is an explicit game-master override of the replay-derived
// totals.
func (p *Processor) ResetScores(ctx context.Context) ([]string, error) {
	var teams []string
	err := p.sessions.Mutate(ctx, func(s *models.Session) error {
		if s == nil {
			return errors.SessionState("no session in progress")
		}
		for teamID, score := range s.Scores {
			*score = models.TeamScore{TeamID: teamID, CompletedGroups: []string{}, LastUpdate: time.Now()}
			teams = append(teams, teamID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Scores reset", "teams", len(teams))
	p.bus.Publish(events.ScoresReset, map[string][]string{"teams": teams})
	return teams, nil
}

// acceptedTokens collects the token ids a team holds accepted claims on
func acceptedTokens(s *models.Session, teamID string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range s.Transactions {
		if t.TeamID == teamID && t.Status == models.TxAccepted {
			out[t.TokenID] = true
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	removed := false
	for _, s := range list {
		if s == v && !removed {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out
}
