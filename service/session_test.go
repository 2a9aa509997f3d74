package service

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSchedule_Defaults(t *testing.T) {
	s := NewSchedule(0, -time.Second)
	require.Equal(t, DefaultStartLead, s.StartLead)
	require.Equal(t, DefaultDuration, s.Duration)

	s = NewSchedule(time.Minute, time.Hour)
	require.Equal(t, time.Minute, s.StartLead)
	require.Equal(t, time.Hour, s.Duration)
}

func TestSchedule_Window(t *testing.T) {
	s := NewSchedule(DefaultStartLead, DefaultDuration)
	now := testNow.Unix()

	start, end := s.Window(testNow, nil, nil)
	require.Equal(t, now+120, start.Int64())
	require.Equal(t, now+7320, end.Int64())

	start, end = s.Window(testNow, big.NewInt(now+500), nil)
	require.Equal(t, now+500, start.Int64())
	require.Equal(t, now+7700, end.Int64())

	start, end = s.Window(testNow, nil, big.NewInt(now+900))
	require.Equal(t, now+120, start.Int64())
	require.Equal(t, now+900, end.Int64())

	start, end = s.Window(testNow, big.NewInt(now+1), big.NewInt(now+2))
	require.Equal(t, now+1, start.Int64())
	require.Equal(t, now+2, end.Int64())
}

func TestValidateWindow(t *testing.T) {
	now := testNow.Unix()

	require.Nil(t, validateWindow(testNow, big.NewInt(now+1), big.NewInt(now+2)))

	err := validateWindow(testNow, big.NewInt(now), big.NewInt(now-1))
	require.NotNil(t, err)
	require.Equal(t, KindInvalidWindow, err.Kind)
	require.Equal(t, "start must be future", err.Message)

	err = validateWindow(testNow, big.NewInt(now+5), big.NewInt(now-5))
	require.NotNil(t, err)
	require.Equal(t, "end must be future", err.Message)

	err = validateWindow(testNow, big.NewInt(now+5), big.NewInt(now+5))
	require.NotNil(t, err)
	require.Equal(t, "end must follow start", err.Message)
}
