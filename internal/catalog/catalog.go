// Package catalog holds the loaded token definitions. Pure lookup, no
// mutation after load.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/scoring"
)

// Catalog indexes tokens by id and by derived group id
type Catalog struct {
	tokens map[string]models.Token
	groups map[string][]models.Token
}

// New builds a catalog from already-parsed token definitions, deriving each
// token's group id and multiplier from its raw group label.
func New(tokens []models.Token) *Catalog {
	c := &Catalog{
		tokens: make(map[string]models.Token, len(tokens)),
		groups: make(map[string][]models.Token),
	}
	for _, t := range tokens {
		t.GroupID = scoring.ExtractGroupID(t.GroupLabel)
		t.GroupMultiplier = scoring.ParseGroupMultiplier(t.GroupLabel)
		c.tokens[t.ID] = t
		if t.GroupID != "" {
			c.groups[t.GroupID] = append(c.groups[t.GroupID], t)
		}
	}
	return c
}

// Get returns the token with the given id
func (c *Catalog) Get(id string) (models.Token, bool) {
	t, ok := c.tokens[id]
	return t, ok
}

// Len returns the number of loaded tokens
func (c *Catalog) Len() int {
	return len(c.tokens)
}

// All returns every token, ordered by id
func (c *Catalog) All() []models.Token {
	out := make([]models.Token, 0, len(c.tokens))
	for _, t := range c.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupMembers returns every token sharing the given group id
func (c *Catalog) GroupMembers(groupID string) []models.Token {
	return c.groups[groupID]
}

// tokenFile matches the on-disk tokens.json entry shape
type tokenFile struct {
	Image           *string `json:"image"`
	Audio           *string `json:"audio"`
	Video           *string `json:"video"`
	ProcessingImage *string `json:"processingImage"`
	ValueRating     int     `json:"SF_ValueRating"`
	MemoryType      string  `json:"SF_MemoryType"`
	Group           string  `json:"SF_Group"`
}

// LoadFile reads a tokens.json file (map of token id to entry) and returns
// the parsed token definitions.
func LoadFile(path string) ([]models.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes the tokens.json payload
func Parse(raw []byte) ([]models.Token, error) {
	var entries map[string]tokenFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}

	tokens := make([]models.Token, 0, len(entries))
	for id, e := range entries {
		t := models.Token{
			ID:          id,
			ValueRating: e.ValueRating,
			MemoryType:  e.MemoryType,
			GroupLabel:  e.Group,
		}
		if e.Image != nil {
			t.MediaRefs.Image = *e.Image
		}
		if e.Audio != nil {
			t.MediaRefs.Audio = *e.Audio
		}
		if e.Video != nil {
			t.MediaRefs.Video = *e.Video
		}
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens, nil
}
