package repository

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// SessionRecord is the persisted JSON shape shared by every session store backend.
type SessionRecord struct {
	PlayerUUID         string           `json:"playerUuid"`
	PlayerName         string           `json:"playerName"`
	StartTime          int64            `json:"startTime"`
	Duration           int              `json:"duration"`
	ActiveProfiles     []string         `json:"activeProfiles"`
	SavedInventory     []domain.Item    `json:"savedInventory"`
	SavedArmor         []domain.Item    `json:"savedArmor"`
	SavedEnderChest    []domain.Item    `json:"savedEnderChest"`
	SavedGameMode      string           `json:"savedGameMode,omitempty"`
	SavedLocation      *domain.Location `json:"savedLocation,omitempty"`
	SavedHealth        float64          `json:"savedHealth"`
	SavedFoodLevel     int              `json:"savedFoodLevel"`
	SavedExp           float32          `json:"savedExp"`
	SavedLevel         int              `json:"savedLevel"`
	OriginalGroups     []string         `json:"originalGroups"`
	TemporaryGroupName string           `json:"temporaryGroupName"`
	Active             bool             `json:"active"`
	EndTime            *int64           `json:"endTime,omitempty"`
}

// NewSessionRecord flattens a session into its persisted form.
func NewSessionRecord(s domain.Session) SessionRecord {
	rec := SessionRecord{
		PlayerUUID:         s.PrincipalID.String(),
		PlayerName:         s.DisplayName,
		StartTime:          s.StartTime.UnixMilli(),
		Duration:           s.Duration,
		ActiveProfiles:     slices.Clone(s.ActiveProfiles),
		SavedInventory:     slices.Clone(s.Snapshot.Inventory),
		SavedArmor:         slices.Clone(s.Snapshot.Armor),
		SavedEnderChest:    slices.Clone(s.Snapshot.EnderChest),
		SavedGameMode:      s.Snapshot.GameMode,
		SavedHealth:        s.Snapshot.Health,
		SavedFoodLevel:     s.Snapshot.FoodLevel,
		SavedExp:           s.Snapshot.Exp,
		SavedLevel:         s.Snapshot.Level,
		OriginalGroups:     slices.Clone(s.Snapshot.OriginalGroups),
		TemporaryGroupName: s.TemporaryGroup,
		Active:             s.Active,
	}
	if s.Snapshot.Location != nil {
		loc := *s.Snapshot.Location
		rec.SavedLocation = &loc
	}
	if s.EndTime != nil {
		end := s.EndTime.UnixMilli()
		rec.EndTime = &end
	}
	return rec
}

// Session rebuilds the domain session from the record.
func (r SessionRecord) Session() (domain.Session, error) {
	id, err := uuid.Parse(r.PlayerUUID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: player uuid: %v", ErrCorruptSession, err)
	}
	if r.Duration < 0 {
		return domain.Session{}, fmt.Errorf("%w: negative duration", ErrCorruptSession)
	}

	s := domain.Session{
		PrincipalID:    id,
		DisplayName:    r.PlayerName,
		StartTime:      time.UnixMilli(r.StartTime).UTC(),
		Duration:       r.Duration,
		ActiveProfiles: slices.Clone(r.ActiveProfiles),
		Snapshot: domain.Snapshot{
			Inventory:      slices.Clone(r.SavedInventory),
			Armor:          slices.Clone(r.SavedArmor),
			EnderChest:     slices.Clone(r.SavedEnderChest),
			GameMode:       r.SavedGameMode,
			Health:         r.SavedHealth,
			FoodLevel:      r.SavedFoodLevel,
			Exp:            r.SavedExp,
			Level:          r.SavedLevel,
			OriginalGroups: slices.Clone(r.OriginalGroups),
		},
		TemporaryGroup: r.TemporaryGroupName,
		Active:         r.Active,
	}
	if r.SavedLocation != nil {
		loc := *r.SavedLocation
		s.Snapshot.Location = &loc
	}
	if r.EndTime != nil {
		end := time.UnixMilli(*r.EndTime).UTC()
		s.EndTime = &end
	}
	return s, nil
}

// MarshalSession encodes a session as a JSON record.
func MarshalSession(s domain.Session) ([]byte, error) {
	b, err := json.Marshal(NewSessionRecord(s))
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return b, nil
}

// UnmarshalSession decodes a JSON record. Any decoding problem is reported as ErrCorruptSession.
func UnmarshalSession(data []byte) (*domain.Session, error) {
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	s, err := rec.Session()
	if err != nil {
		return nil, err
	}
	return &s, nil
}
