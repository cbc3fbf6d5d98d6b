package validation

import (
	"errors"
	"strings"
	"testing"

	"demo-ingest/internal/domain"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGunfight() map[string]interface{} {
	return map[string]interface{}{
		"round_number":   3,
		"round_time":     42.5,
		"tick_timestamp": 10240,
		"player_1": map[string]interface{}{
			"steam_id":        "76561198000000001",
			"side":            "CT",
			"hp_start":        100,
			"armor":           100,
			"flashed":         false,
			"weapon":          "m4a1",
			"equipment_value": 4100,
			"position":        map[string]interface{}{"x": -1200.5, "y": 300, "z": 12},
		},
		"player_2": map[string]interface{}{
			"steam_id":        "76561198000000006",
			"side":            "T",
			"hp_start":        76,
			"armor":           0,
			"flashed":         true,
			"weapon":          "ak47",
			"equipment_value": 2700,
			"position":        map[string]interface{}{"x": -900, "y": 410, "z": 12},
		},
		"distance":           331.2,
		"headshot":           true,
		"wallbang":           false,
		"penetrated_objects": 0,
		"victor_steam_id":    "76561198000000001",
		"damage_dealt":       112,
	}
}

func validGrenade() map[string]interface{} {
	return map[string]interface{}{
		"round_number":     2,
		"round_time":       12,
		"tick_timestamp":   5000,
		"player_steam_id":  "76561198000000002",
		"grenade_type":     "flashbang",
		"throw_type":       "lineup",
		"player_aim":       map[string]interface{}{"x": 0.5, "y": -0.25, "z": 1},
		"player_position":  map[string]interface{}{"x": 100, "y": 200, "z": 0},
		"grenade_position": map[string]interface{}{"x": 900, "y": -10000, "z": 64},
		"damage_dealt":     0,
		"flash_duration":   2.4,
		"affected_players": []interface{}{
			map[string]interface{}{"steam_id": "76561198000000007", "flash_duration": 2.4},
			map[string]interface{}{"steam_id": "76561198000000008", "damage_taken": 0},
		},
	}
}

func validDamage() map[string]interface{} {
	return map[string]interface{}{
		"round_number":      1,
		"round_time":        300,
		"tick_timestamp":    0,
		"attacker_steam_id": "76561198000000001",
		"victim_steam_id":   "76561198000000006",
		"damage":            1000,
		"armor_damage":      0,
		"health_damage":     100,
		"headshot":          false,
		"weapon":            "awp",
	}
}

func validRound() map[string]interface{} {
	return map[string]interface{}{
		"round_number":   1,
		"round_time":     0,
		"tick_timestamp": 128,
		"event_type":     "end",
		"winner":         "CT",
		"duration":       95,
	}
}

func encode(t *testing.T, records ...map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	return data
}

// set walks a dotted path and overwrites the leaf.
func set(record map[string]interface{}, path string, value interface{}) map[string]interface{} {
	parts := strings.Split(path, ".")
	cur := record
	for _, p := range parts[:len(parts)-1] {
		cur = cur[p].(map[string]interface{})
	}
	cur[parts[len(parts)-1]] = value
	return record
}

func TestValidateBatch_AcceptsValidRecords(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		event  domain.EventName
		record map[string]interface{}
	}{
		{"gunfight", domain.EventGunfight, validGunfight()},
		{"grenade", domain.EventGrenade, validGrenade()},
		{"damage", domain.EventDamage, validDamage()},
		{"round", domain.EventRound, validRound()},
		{"round start without winner", domain.EventRound, map[string]interface{}{
			"round_number": 1, "round_time": 0, "tick_timestamp": 0, "event_type": "start",
		}},
		{"grenade without optional fields", domain.EventGrenade, func() map[string]interface{} {
			r := validGrenade()
			delete(r, "flash_duration")
			delete(r, "affected_players")
			return r
		}()},
		{"gunfight at range boundaries", domain.EventGunfight, func() map[string]interface{} {
			r := validGunfight()
			set(r, "player_1.position.x", -10000)
			set(r, "player_2.position.z", 10000)
			set(r, "player_1.equipment_value", 10000)
			set(r, "distance", 10000)
			set(r, "penetrated_objects", 100)
			set(r, "damage_dealt", 1000)
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := v.ValidateBatch(tt.event, encode(t, tt.record, tt.record))
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, tt.event, events[0].Name())
		})
	}
}

func TestValidateBatch_RejectsSingleOutOfRangeField(t *testing.T) {
	v := New()

	tests := []struct {
		event  domain.EventName
		record func() map[string]interface{}
		path   string
		value  interface{}
		field  string
	}{
		{domain.EventGunfight, validGunfight, "round_number", 0, "round_number"},
		{domain.EventGunfight, validGunfight, "tick_timestamp", -1, "tick_timestamp"},
		{domain.EventGunfight, validGunfight, "round_time", 300.5, "round_time"},
		{domain.EventGunfight, validGunfight, "player_1.hp_start", 101, "player_1.hp_start"},
		{domain.EventGunfight, validGunfight, "player_2.armor", -1, "player_2.armor"},
		{domain.EventGunfight, validGunfight, "player_1.equipment_value", 10001, "player_1.equipment_value"},
		{domain.EventGunfight, validGunfight, "player_2.position.y", -10000.1, "player_2.position.y"},
		{domain.EventGunfight, validGunfight, "distance", 10001, "distance"},
		{domain.EventGunfight, validGunfight, "damage_dealt", 1001, "damage_dealt"},
		{domain.EventGunfight, validGunfight, "penetrated_objects", 101, "penetrated_objects"},
		{domain.EventGunfight, validGunfight, "victor_steam_id", "76561198000000009", "victor_steam_id"},
		{domain.EventGrenade, validGrenade, "grenade_type", "c4", "grenade_type"},
		{domain.EventGrenade, validGrenade, "throw_type", "bounce", "throw_type"},
		{domain.EventGrenade, validGrenade, "player_aim.z", 1.01, "player_aim.z"},
		{domain.EventGrenade, validGrenade, "grenade_position.x", 10001, "grenade_position.x"},
		{domain.EventGrenade, validGrenade, "damage_dealt", 1001, "damage_dealt"},
		{domain.EventGrenade, validGrenade, "flash_duration", 10.5, "flash_duration"},
		{domain.EventDamage, validDamage, "damage", 1001, "damage"},
		{domain.EventDamage, validDamage, "armor_damage", -5, "armor_damage"},
		{domain.EventDamage, validDamage, "health_damage", 2000, "health_damage"},
		{domain.EventDamage, validDamage, "weapon", strings.Repeat("w", 51), "weapon"},
		{domain.EventRound, validRound, "event_type", "freeze", "event_type"},
		{domain.EventRound, validRound, "winner", "SPEC", "winner"},
		{domain.EventRound, validRound, "duration", 0, "duration"},
		{domain.EventRound, validRound, "duration", 301, "duration"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event)+"/"+tt.path, func(t *testing.T) {
			bad := set(tt.record(), tt.path, tt.value)
			_, err := v.ValidateBatch(tt.event, encode(t, tt.record(), bad))
			require.Error(t, err)

			var batchErr *BatchError
			require.True(t, errors.As(err, &batchErr))
			assert.Equal(t, []string{"data[1]." + tt.field}, batchErr.FieldNames())
		})
	}
}

func TestValidateBatch_GunfightVictorMustBeADuelist(t *testing.T) {
	v := New()

	for _, victor := range []string{"76561198000000001", "76561198000000006"} {
		_, err := v.ValidateBatch(domain.EventGunfight, encode(t, set(validGunfight(), "victor_steam_id", victor)))
		assert.NoError(t, err, "victor %s", victor)
	}

	bad := set(validGunfight(), "victor_steam_id", "zzz")
	_, err := v.ValidateBatch(domain.EventGunfight, encode(t, bad))

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Fields, 1)
	assert.Equal(t, "data[0].victor_steam_id", batchErr.Fields[0].Field)
	assert.Equal(t, "duelist", batchErr.Fields[0].Tag)
	assert.Equal(t, "must be player_1 or player_2", batchErr.Fields[0].Message)
}

func TestValidateBatch_AffectedPlayerFieldsAreChecked(t *testing.T) {
	v := New()
	record := validGrenade()
	record["affected_players"] = []interface{}{
		map[string]interface{}{"steam_id": "76561198000000007", "flash_duration": 11},
	}

	_, err := v.ValidateBatch(domain.EventGrenade, encode(t, record))

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []string{"data[0].affected_players[0].flash_duration"}, batchErr.FieldNames())
}

func TestValidateBatch_RejectsWholeBatch(t *testing.T) {
	v := New()
	bad := set(validDamage(), "damage", 5000)

	events, err := v.ValidateBatch(domain.EventDamage, encode(t, validDamage(), bad, validDamage()))

	require.Error(t, err)
	assert.Nil(t, events)
}

func TestValidateBatch_RejectsMalformedData(t *testing.T) {
	v := New()

	for _, data := range []string{``, `null`, `{}`, `[]`, `[{"round_number":"one"}]`} {
		_, err := v.ValidateBatch(domain.EventRound, []byte(data))
		var batchErr *BatchError
		assert.True(t, errors.As(err, &batchErr), "data %q", data)
	}
}

func TestUnknownEventName(t *testing.T) {
	v := New()

	for _, name := range []string{"kill", "", "Gunfight", "rounds"} {
		_, err := ParseEventName(name)
		require.Error(t, err)

		var unknown *UnknownEventError
		require.True(t, errors.As(err, &unknown))
		assert.True(t, strings.HasSuffix(err.Error(), "must be one of round, gunfight, grenade, damage"))

		_, err = v.ValidateBatch(domain.EventName(name), encode(t, validRound()))
		assert.True(t, errors.As(err, &unknown))
	}

	for _, name := range domain.EventNames {
		parsed, err := ParseEventName(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, parsed)
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestBatchEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		env     BatchEnvelope
		want    BatchInfo
		wantErr string
	}{
		{"defaults to single batch", BatchEnvelope{}, BatchInfo{Index: 1, Total: 1, IsLast: true}, ""},
		{"first of two", BatchEnvelope{BatchIndex: intPtr(1), TotalBatches: intPtr(2), IsLast: boolPtr(false)}, BatchInfo{Index: 1, Total: 2}, ""},
		{"last of two", BatchEnvelope{BatchIndex: intPtr(2), TotalBatches: intPtr(2), IsLast: boolPtr(true)}, BatchInfo{Index: 2, Total: 2, IsLast: true}, ""},
		{"is_last inferred", BatchEnvelope{BatchIndex: intPtr(3), TotalBatches: intPtr(3)}, BatchInfo{Index: 3, Total: 3, IsLast: true}, ""},
		{"zero index", BatchEnvelope{BatchIndex: intPtr(0)}, BatchInfo{}, "batch_index"},
		{"zero total", BatchEnvelope{TotalBatches: intPtr(0)}, BatchInfo{}, "total_batches"},
		{"index beyond total", BatchEnvelope{BatchIndex: intPtr(3), TotalBatches: intPtr(2)}, BatchInfo{}, "batch_index"},
		{"early is_last", BatchEnvelope{BatchIndex: intPtr(1), TotalBatches: intPtr(2), IsLast: boolPtr(true)}, BatchInfo{}, "is_last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.env.Batch()
			if tt.wantErr != "" {
				var batchErr *BatchError
				require.True(t, errors.As(err, &batchErr))
				assert.Equal(t, []string{tt.wantErr}, batchErr.FieldNames())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func validMetadata() MatchMetadata {
	players := make([]RosterPlayer, 0, 10)
	for i := 0; i < 10; i++ {
		team := "A"
		if i >= 5 {
			team = "B"
		}
		players = append(players, RosterPlayer{
			SteamID: "7656119800000000" + string(rune('0'+i)),
			Name:    "player",
			Team:    team,
		})
	}
	return MatchMetadata{
		Map:              "de_dust2",
		WinningTeamScore: 16,
		LosingTeamScore:  14,
		MatchType:        "matchmaking",
		TotalRounds:      30,
		PlaybackTicks:    245000,
		Players:          players,
	}
}

func TestValidateMatchMetadata(t *testing.T) {
	v := New()

	meta, roster, err := v.ValidateMatchMetadata(validMetadata())
	require.NoError(t, err)
	assert.Equal(t, "de_dust2", meta.Map)
	assert.Equal(t, domain.MatchTypeMatchmaking, meta.MatchType)
	assert.Len(t, roster, 10)
	assert.Equal(t, domain.TeamB, roster[9].Team)

	tests := []struct {
		name   string
		mutate func(m *MatchMetadata)
		field  string
	}{
		{"unknown map", func(m *MatchMetadata) { m.Map = "de_cache_2" }, "map"},
		{"losing above winning", func(m *MatchMetadata) { m.LosingTeamScore = 17 }, "losing_team_score"},
		{"unknown match type", func(m *MatchMetadata) { m.MatchType = "scrim" }, "match_type"},
		{"bad team", func(m *MatchMetadata) { m.Players[0].Team = "C" }, "players[0].team"},
		{"duplicate player", func(m *MatchMetadata) { m.Players[1].SteamID = m.Players[0].SteamID }, "players"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(&m)
			_, _, err := v.ValidateMatchMetadata(m)

			var batchErr *BatchError
			require.True(t, errors.As(err, &batchErr))
			assert.Contains(t, batchErr.FieldNames(), tt.field)
		})
	}
}
