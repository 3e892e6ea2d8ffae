package models

import "time"

// SessionStatus is the lifecycle state of a game session
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
)

// TransactionStatus is the outcome of a scan submission
type TransactionStatus string

const (
	TxAccepted  TransactionStatus = "accepted"
	TxRejected  TransactionStatus = "rejected"
	TxDuplicate TransactionStatus = "duplicate"
)

// Scan modes. Informational scans still claim the token but award no points.
const (
	ModeScoring       = "scoring"
	ModeInformational = "informational"
)

// Device types
const (
	DeviceStation = "station"
	DeviceAdmin   = "admin"
	DeviceDisplay = "display"
)

// Token is one loaded token definition. Immutable after catalog load.
type Token struct {
	ID          string    `json:"id"`
	ValueRating int       `json:"value_rating"`
	MemoryType  string    `json:"memory_type"`
	GroupLabel  string    `json:"group_label,omitempty"`
	MediaRefs   MediaRefs `json:"media,omitempty"`

	// Derived from GroupLabel at load time
	GroupID         string `json:"group_id,omitempty"`
	GroupMultiplier int    `json:"group_multiplier,omitempty"`
}

// MediaRefs holds the asset paths associated with a token
type MediaRefs struct {
	Image string `json:"image,omitempty"`
	Audio string `json:"audio,omitempty"`
	Video string `json:"video,omitempty"`
}

// Transaction records one token presented by one device for one team
type Transaction struct {
	ID              string            `json:"id"`
	TokenID         string            `json:"token_id"`
	TeamID          string            `json:"team_id"`
	DeviceID        string            `json:"device_id"`
	DeviceType      string            `json:"device_type"`
	Mode            string            `json:"mode"`
	Timestamp       time.Time         `json:"timestamp"`
	Status          TransactionStatus `json:"status"`
	Points          int               `json:"points"`
	Summary         string            `json:"summary,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	// Set when Status is duplicate: the transaction that claimed the token first
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
}

// TeamScore is a team's running point total for the current session.
// Always equal to a full replay of the session's accepted transactions.
type TeamScore struct {
	TeamID          string    `json:"team_id"`
	BaseScore       int       `json:"base_score"`
	BonusPoints     int       `json:"bonus_points"`
	CurrentScore    int       `json:"current_score"`
	TokensScanned   int       `json:"tokens_scanned"`
	CompletedGroups []string  `json:"completed_groups"`
	LastUpdate      time.Time `json:"last_update"`
}

// SessionMetadata holds derived indices rebuilt from the transaction log
type SessionMetadata struct {
	// device id -> token ids that device has scanned this session
	ScannedTokensByDevice map[string][]string `json:"scanned_tokens_by_device"`
}

// Session is one complete run of the game. At most one session is active
// across the whole process at any instant.
type Session struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Teams        []string              `json:"teams"`
	Status       SessionStatus         `json:"status"`
	StartTime    time.Time             `json:"start_time"`
	EndTime      *time.Time            `json:"end_time,omitempty"`
	Transactions []Transaction         `json:"transactions"`
	Scores       map[string]*TeamScore `json:"scores"`
	Metadata     SessionMetadata       `json:"metadata"`
}

// Clone returns a deep copy of the session, safe to hand to readers while
// writers keep mutating the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Teams = append([]string(nil), s.Teams...)
	c.Transactions = append([]Transaction(nil), s.Transactions...)
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	c.Scores = make(map[string]*TeamScore, len(s.Scores))
	for id, score := range s.Scores {
		sc := *score
		sc.CompletedGroups = append([]string(nil), score.CompletedGroups...)
		c.Scores[id] = &sc
	}
	c.Metadata.ScannedTokensByDevice = make(map[string][]string, len(s.Metadata.ScannedTokensByDevice))
	for dev, tokens := range s.Metadata.ScannedTokensByDevice {
		c.Metadata.ScannedTokensByDevice[dev] = append([]string(nil), tokens...)
	}
	return &c
}

// ConnectionStatus of a registered device
type ConnectionStatus string

const (
	DeviceConnected    ConnectionStatus = "connected"
	DeviceDisconnected ConnectionStatus = "disconnected"
)

// Device is any connected station, admin console, or shared display.
// Records are retained after disconnect so transaction attribution stays valid.
type Device struct {
	DeviceID         string           `json:"device_id"`
	DeviceType       string           `json:"device_type"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	Name             string           `json:"name"`
	ConnectedAt      time.Time        `json:"connected_at"`
}

// DisplayMode is the shared presentation screen's current state
type DisplayMode string

const (
	ModeIdleLoop   DisplayMode = "IDLE_LOOP"
	ModeVideo      DisplayMode = "VIDEO"
	ModeScoreboard DisplayMode = "SCOREBOARD"
)

// VideoStatus of a queued video item
type VideoStatus string

const (
	VideoPending   VideoStatus = "pending"
	VideoPlaying   VideoStatus = "playing"
	VideoCompleted VideoStatus = "completed"
	VideoFailed    VideoStatus = "failed"
)

// VideoQueueItem is one requested video playback
type VideoQueueItem struct {
	ID            string      `json:"id"`
	TokenID       string      `json:"token_id"`
	RequestedBy   string      `json:"requested_by"`
	RequestTime   time.Time   `json:"request_time"`
	Status        VideoStatus `json:"status"`
	PlaybackStart *time.Time  `json:"playback_start,omitempty"`
	PlaybackEnd   *time.Time  `json:"playback_end,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// DisplayState is the presentation display's full state
type DisplayState struct {
	Mode          DisplayMode      `json:"mode"`
	ReturnsToMode DisplayMode      `json:"returns_to_mode"`
	CurrentVideo  *VideoQueueItem  `json:"current_video,omitempty"`
	Queue         []VideoQueueItem `json:"queue"`
}

// WSMessage is the envelope for every message pushed to stations
type WSMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
