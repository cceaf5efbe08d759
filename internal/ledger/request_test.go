package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/model"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind model.CorrectionKind
	}{
		{"create", `{"kind":"CREATE","reason":"r","userId":"u","locationId":"l","type":"CLOCK_IN","timestamp":"2024-06-03T09:00:00Z"}`, model.CorrectionCreate},
		{"edit", `{"kind":"edit","reason":"r","entryId":"e","type":"CLOCK_OUT"}`, model.CorrectionEdit},
		{"shift", `{"kind":"Shift","reason":"r","entryIds":["a"],"shiftMinutes":30}`, model.CorrectionShift},
		{"delete", `{"kind":"delete","reason":"r","entryIds":["a"]}`, model.CorrectionDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, req.Kind())
			assert.NoError(t, req.Validate())
		})
	}

	t.Run("create fields", func(t *testing.T) {
		req, err := DecodeRequest([]byte(tests[0].body))
		require.NoError(t, err)
		create, ok := req.(*CreateRequest)
		require.True(t, ok)
		assert.Equal(t, model.EntryClockIn, create.Type)
		assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), create.Timestamp.UTC())
	})
}

func TestDecodeRequest_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing kind", `{"reason":"r"}`, "kind"},
		{"unknown kind", `{"kind":"APPROVE"}`, "kind"},
		{"malformed", `{"kind":`, "body"},
		{"wrong type", `{"kind":"SHIFT","entryIds":"a"}`, "entryIds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			var ee *errors.EnhancedError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.field, ee.GetContext()["field"])
		})
	}
}

func TestValidate(t *testing.T) {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	blank := "  "
	bad := model.EntryType("LUNCH")

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"blank reason", &DeleteRequest{Base: Base{Reason: " \t"}, EntryIDs: []string{"a"}}, "reason"},
		{"no entries", &DeleteRequest{Base: Base{Reason: "r"}}, "entryIds"},
		{"duplicate entries", &DeleteRequest{Base: Base{Reason: "r"}, EntryIDs: []string{"a", "a"}}, "entryIds"},
		{"zero shift", &ShiftRequest{Base: Base{Reason: "r"}, EntryIDs: []string{"a"}}, "shiftMinutes"},
		{"shift too far", &ShiftRequest{Base: Base{Reason: "r"}, EntryIDs: []string{"a"}, ShiftMinutes: MaxShiftMinutes + 1}, "shiftMinutes"},
		{"create without time", &CreateRequest{Base: Base{Reason: "r"}, UserID: "u", LocationID: "l", Type: model.EntryClockIn}, "timestamp"},
		{"create bad type", &CreateRequest{Base: Base{Reason: "r"}, UserID: "u", LocationID: "l", Type: bad, Timestamp: at}, "type"},
		{"edit nothing", &EditRequest{Base: Base{Reason: "r"}, EntryID: "e"}, "timestamp"},
		{"edit bad type", &EditRequest{Base: Base{Reason: "r"}, EntryID: "e", Type: &bad}, "type"},
		{"edit blank location", &EditRequest{Base: Base{Reason: "r"}, EntryID: "e", LocationID: &blank}, "locationId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			var ee *errors.EnhancedError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.field, ee.GetContext()["field"])
		})
	}
}

func TestAffectedKeys(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	lateEvening := time.Date(2024, 6, 4, 3, 45, 0, 0, time.UTC).UnixMilli() // 23:45 EDT on 06-03
	old := &EntryState{OrgID: "o", UserID: "u", LocationID: "l", At: lateEvening}
	sameDay := &EntryState{OrgID: "o", UserID: "u", LocationID: "l", At: lateEvening - 3_600_000}
	nextDay := &EntryState{OrgID: "o", UserID: "u", LocationID: "l", At: lateEvening + 30*60_000}

	t.Run("create", func(t *testing.T) {
		keys := AffectedKeys(nil, old, ny).Keys()
		require.Len(t, keys, 1)
		assert.Equal(t, "2024-06-03", keys[0].Date.String())
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, 1, AffectedKeys(old, nil, ny).Len())
	})

	t.Run("same day deduplicated", func(t *testing.T) {
		assert.Equal(t, 1, AffectedKeys(old, sameDay, ny).Len())
	})

	t.Run("across midnight", func(t *testing.T) {
		keys := AffectedKeys(old, nextDay, ny).Keys()
		require.Len(t, keys, 2)
		assert.Equal(t, "2024-06-03", keys[0].Date.String())
		assert.Equal(t, "2024-06-04", keys[1].Date.String())
	})

	t.Run("zone decides the day", func(t *testing.T) {
		keys := AffectedKeys(nil, old, time.UTC).Keys()
		require.Len(t, keys, 1)
		assert.Equal(t, "2024-06-04", keys[0].Date.String())
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Zero(t, AffectedKeys(nil, nil, ny).Len())
	})
}

func TestCorrectionStates(t *testing.T) {
	loc, moved := "l1", "l2"
	oldTs, newTs := int64(1000), int64(2000)

	old, updated := CorrectionStates(&entities.EntryCorrection{
		OrgID: "o", UserID: "u", OldTimestamp: &oldTs, NewTimestamp: &newTs, OldLocationID: &loc, NewLocationID: &moved,
	})
	require.NotNil(t, old)
	require.NotNil(t, updated)
	assert.Equal(t, "l1", old.LocationID)
	assert.Equal(t, "l2", updated.LocationID)

	_, updated = CorrectionStates(&entities.EntryCorrection{OldTimestamp: &oldTs, NewTimestamp: &newTs, OldLocationID: &loc})
	require.NotNil(t, updated)
	assert.Equal(t, "l1", updated.LocationID, "location falls back to the old one")

	old, updated = CorrectionStates(&entities.EntryCorrection{OldTimestamp: &oldTs, OldLocationID: &loc})
	assert.NotNil(t, old)
	assert.Nil(t, updated, "tombstone has no new state")
}
