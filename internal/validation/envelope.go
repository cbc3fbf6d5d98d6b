package validation

import (
	"demo-ingest/internal/domain"

	"github.com/goccy/go-json"
)

// BatchEnvelope is the body of an event ingestion request. The batch fields
// are optional for every event type; an absent envelope means a single batch.
type BatchEnvelope struct {
	Data         json.RawMessage `json:"data"`
	BatchIndex   *int            `json:"batch_index,omitempty"`
	IsLast       *bool           `json:"is_last,omitempty"`
	TotalBatches *int            `json:"total_batches,omitempty"`
}

type BatchInfo struct {
	Index  int
	Total  int
	IsLast bool
}

// Batch resolves the envelope defaults and checks the envelope is self-consistent.
func (e BatchEnvelope) Batch() (BatchInfo, error) {
	info := BatchInfo{Index: 1, Total: 1, IsLast: true}
	if e.BatchIndex != nil {
		info.Index = *e.BatchIndex
	}
	if e.TotalBatches != nil {
		info.Total = *e.TotalBatches
	}
	if e.IsLast != nil {
		info.IsLast = *e.IsLast
	} else {
		info.IsLast = info.Index == info.Total
	}

	var errs []FieldError
	if info.Index < 1 {
		errs = append(errs, FieldError{Field: "batch_index", Tag: "min", Param: "1", Value: info.Index, Message: "must be at least 1"})
	}
	if info.Total < 1 {
		errs = append(errs, FieldError{Field: "total_batches", Tag: "min", Param: "1", Value: info.Total, Message: "must be at least 1"})
	}
	if len(errs) == 0 && info.Index > info.Total {
		errs = append(errs, FieldError{Field: "batch_index", Tag: "ltefield", Param: "total_batches", Value: info.Index, Message: "must not exceed total_batches"})
	}
	if len(errs) == 0 && info.IsLast && info.Index != info.Total {
		errs = append(errs, FieldError{Field: "is_last", Tag: "eqfield", Param: "total_batches", Value: info.IsLast, Message: "is only allowed on the final batch"})
	}
	if len(errs) > 0 {
		return BatchInfo{}, &BatchError{Fields: errs}
	}
	return info, nil
}

// MatchMetadata is the match header and roster reported by the parser.
type MatchMetadata struct {
	Map              string         `json:"map" validate:"required,known_map"`
	WinningTeamScore int            `json:"winning_team_score" validate:"min=0"`
	LosingTeamScore  int            `json:"losing_team_score" validate:"min=0,ltefield=WinningTeamScore"`
	MatchType        string         `json:"match_type" validate:"required,oneof=hltv matchmaking faceit esportal other"`
	TotalRounds      int            `json:"total_rounds" validate:"min=1"`
	PlaybackTicks    int64          `json:"playback_ticks" validate:"min=0"`
	Players          []RosterPlayer `json:"players" validate:"required,min=1,unique=SteamID,dive"`
}

type RosterPlayer struct {
	SteamID string `json:"steam_id" validate:"required,max=32"`
	Name    string `json:"name" validate:"max=128"`
	Team    string `json:"team" validate:"required,oneof=A B"`
}

// ValidateMatchMetadata validates the metadata and converts it to domain values.
func (v *Validator) ValidateMatchMetadata(m MatchMetadata) (domain.MatchMeta, []domain.RosterEntry, error) {
	if err := v.ValidateStruct(m, ""); err != nil {
		return domain.MatchMeta{}, nil, err
	}

	meta := domain.MatchMeta{
		Map:              m.Map,
		WinningTeamScore: m.WinningTeamScore,
		LosingTeamScore:  m.LosingTeamScore,
		MatchType:        domain.MatchType(m.MatchType),
		TotalRounds:      m.TotalRounds,
		PlaybackTicks:    m.PlaybackTicks,
	}
	roster := make([]domain.RosterEntry, len(m.Players))
	for i, p := range m.Players {
		roster[i] = domain.RosterEntry{SteamID: p.SteamID, Name: p.Name, Team: domain.Team(p.Team)}
	}
	return meta, roster, nil
}
