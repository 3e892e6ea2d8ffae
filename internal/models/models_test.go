package models

import (
	"testing"
	"time"
)

func TestSessionClone_Nil(t *testing.T) {
	var s *Session
	if s.Clone() != nil {
		t.Error("nil session should clone to nil")
	}
}

func TestSessionClone_DeepCopy(t *testing.T) {
	end := time.Now()
	s := &Session{
		ID:     "sess-1",
		Teams:  []string{"red"},
		Status: SessionActive,
		EndTime: &end,
		Transactions: []Transaction{{ID: "tx-1", Points: 500}},
		Scores: map[string]*TeamScore{
			"red": {TeamID: "red", CurrentScore: 500, CompletedGroups: []string{"Truth"}},
		},
		Metadata: SessionMetadata{
			ScannedTokensByDevice: map[string][]string{"station-1": {"tok001"}},
		},
	}

	c := s.Clone()
	c.Teams[0] = "tampered"
	c.Transactions[0].Points = 0
	c.Scores["red"].CurrentScore = 0
	c.Scores["red"].CompletedGroups[0] = "tampered"
	c.Metadata.ScannedTokensByDevice["station-1"][0] = "tampered"
	*c.EndTime = end.Add(time.Hour)

	if s.Teams[0] != "red" {
		t.Error("Teams shared between clone and original")
	}
	if s.Transactions[0].Points != 500 {
		t.Error("Transactions shared between clone and original")
	}
	if s.Scores["red"].CurrentScore != 500 {
		t.Error("Scores shared between clone and original")
	}
	if s.Scores["red"].CompletedGroups[0] != "Truth" {
		t.Error("CompletedGroups shared between clone and original")
	}
	if s.Metadata.ScannedTokensByDevice["station-1"][0] != "tok001" {
		t.Error("Metadata shared between clone and original")
	}
	if !s.EndTime.Equal(end) {
		t.Error("EndTime shared between clone and original")
	}
}
