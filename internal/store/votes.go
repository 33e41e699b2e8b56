// Vote ledger: per-topic tallies with one-vote-per-user enforcement.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"collab/internal/logging"
	"collab/internal/types"
)

// FoldChoice normalizes a raw vote spelling to its canonical value. The
// accepted spellings are the canonical English terms plus the Portuguese ones
// the chat command language uses (sim, não/nao, abster).
func FoldChoice(raw string) (types.VoteChoice, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "sim":
		return types.ChoiceYes, true
	case "no", "não", "nao":
		return types.ChoiceNo, true
	case "abstain", "abster":
		return types.ChoiceAbstain, true
	}
	return "", false
}

// CastVote records one user's vote on a topic and returns the updated tally.
// Rejections (invalid choice, duplicate voter) leave the tally unchanged. The
// read-modify-write cycle is atomic per topic: a transaction under the
// per-topic lock, so counts never drift from the vote records.
func (s *LocalStore) CastVote(topic, user, choice string) (*types.VoteTally, error) {
	canonical, ok := FoldChoice(choice)
	if !ok {
		return nil, fmt.Errorf("vote %q on %q: %w", choice, topic, ErrInvalidChoice)
	}

	lock := s.topicLock(topic)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow("SELECT 1 FROM votes WHERE topic = ? AND user = ?", topic, user).Scan(&exists)
	switch {
	case err == nil:
		return nil, fmt.Errorf("vote by %q on %q: %w", user, topic, ErrDuplicateVote)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check existing vote: %w", err)
	}

	// New topics start at zero before the vote is applied.
	if _, err := tx.Exec("INSERT OR IGNORE INTO vote_tallies (topic) VALUES (?)", topic); err != nil {
		return nil, fmt.Errorf("failed to initialize tally: %w", err)
	}

	var column string
	switch canonical {
	case types.ChoiceYes:
		column = "yes"
	case types.ChoiceNo:
		column = "no"
	case types.ChoiceAbstain:
		column = "abstain"
	}
	if _, err := tx.Exec("UPDATE vote_tallies SET "+column+" = "+column+" + 1 WHERE topic = ?", topic); err != nil {
		return nil, fmt.Errorf("failed to increment tally: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO votes (topic, user, choice) VALUES (?, ?, ?)", topic, user, string(canonical)); err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to persist vote: %w", err)
	}

	tally, err := s.loadTally(topic)
	if err != nil {
		return nil, err
	}

	// Audit after the mutation is durable.
	s.actions.Record(logging.Action{
		Type:  logging.ActionVote,
		Topic: topic,
		User:  user,
		Vote:  string(canonical),
	})
	logging.Get(logging.CategoryStore).Debug("vote recorded: topic=%s user=%s choice=%s", topic, user, canonical)

	return tally, nil
}

// GetTally returns the tally for a topic, or ErrNotFound.
func (s *LocalStore) GetTally(topic string) (*types.VoteTally, error) {
	lock := s.topicLock(topic)
	lock.Lock()
	defer lock.Unlock()
	return s.loadTally(topic)
}

func (s *LocalStore) loadTally(topic string) (*types.VoteTally, error) {
	tally := &types.VoteTally{Topic: topic}
	err := s.db.QueryRow(
		"SELECT yes, no, abstain FROM vote_tallies WHERE topic = ?", topic,
	).Scan(&tally.Yes, &tally.No, &tally.Abstain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tally for %q: %w", topic, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tally: %w", err)
	}

	// rowid order preserves insertion order of the vote list.
	rows, err := s.db.Query("SELECT user, choice FROM votes WHERE topic = ? ORDER BY rowid", topic)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec types.VoteRecord
		var choice string
		if err := rows.Scan(&rec.User, &choice); err != nil {
			return nil, err
		}
		rec.Choice = types.VoteChoice(choice)
		tally.Votes = append(tally.Votes, rec)
	}
	return tally, rows.Err()
}

// ListTopics returns all topics that have a tally.
func (s *LocalStore) ListTopics() ([]string, error) {
	rows, err := s.db.Query("SELECT topic FROM vote_tallies ORDER BY topic")
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// deleteTally removes a topic's tally and vote records inside tx.
func deleteTally(tx *sql.Tx, topic string) error {
	if _, err := tx.Exec("DELETE FROM vote_tallies WHERE topic = ?", topic); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM votes WHERE topic = ?", topic)
	return err
}
