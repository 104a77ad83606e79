// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khayashi/sasayaki/internal/account"
)

/*
TestStoredTime_Scan exercises the driver-facing scanner, in particular the
rule that zone-less text timestamps are interpreted as UTC rather than the
server's local zone.
*/
func TestStoredTime_Scan(t *testing.T) {
	t.Run("nil_is_invalid", func(t *testing.T) {
		var st account.StoredTime
		require.NoError(t, st.Scan(nil))
		assert.False(t, st.Valid)
	})

	t.Run("time_passthrough", func(t *testing.T) {
		now := time.Now()
		var st account.StoredTime
		require.NoError(t, st.Scan(now))
		assert.True(t, st.Valid)
		assert.True(t, st.Time.Equal(now))
	})

	t.Run("zoneless_string_is_utc", func(t *testing.T) {
		var st account.StoredTime
		require.NoError(t, st.Scan("2026-08-30 14:05:00"))
		require.True(t, st.Valid)

		expected := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)
		assert.True(t, st.Time.Equal(expected), "got %v", st.Time)
	})

	t.Run("rfc3339_string", func(t *testing.T) {
		var st account.StoredTime
		require.NoError(t, st.Scan("2026-08-30T14:05:00Z"))
		require.True(t, st.Valid)
		assert.Equal(t, 14, st.Time.UTC().Hour())
	})

	t.Run("garbage_errors", func(t *testing.T) {
		var st account.StoredTime
		assert.Error(t, st.Scan("not-a-timestamp"))
	})
}

/*
TestStoredTime_JSON checks that an unset value serializes as null instead of
the zero timestamp.
*/
func TestStoredTime_JSON(t *testing.T) {
	var unset account.StoredTime
	data, err := unset.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	set := account.StoredTimeOf(time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC))
	data, err = set.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-08-30")
}
