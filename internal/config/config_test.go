package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsVerify(t *testing.T) {
	require.NoError(t, DefaultOptions.Verify())
}

func TestVerifyRejectsCleaningIntervalNotShorterThanExpiration(t *testing.T) {
	o := DefaultOptions
	o.CleaningIntervalMinutes = 72 * 60
	o.ChannelExpirationHours = 72
	require.ErrorIs(t, o.Verify(), ErrCleaningInterval)
}

func TestMergeFromOverridesFields(t *testing.T) {
	o := DefaultOptions
	err := o.MergeFrom(Options{
		Host:                    "0.0.0.0",
		Port:                    9000,
		DBFile:                  ":memory:",
		AllowList:               false,
		CleaningIntervalMinutes: DefaultOptions.CleaningIntervalMinutes,
		ChannelExpirationHours:  DefaultOptions.ChannelExpirationHours,
		Logging:                 DefaultOptions.Logging,
	})
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", o.Host)
	require.Equal(t, uint(9000), o.Port)
	require.Equal(t, ":memory:", o.DBFile)
	require.False(t, o.AllowList)
}

func TestAppAllowedWithEmptyListAllowsAnything(t *testing.T) {
	o := DefaultOptions
	require.True(t, o.AppAllowed("anything"))
}

func TestAppAllowedWithListRestricts(t *testing.T) {
	o := DefaultOptions
	o.AppIDs = []string{"app1", "app2"}
	require.True(t, o.AppAllowed("app1"))
	require.False(t, o.AppAllowed("app3"))
}

func TestEqualsComparesAppIDs(t *testing.T) {
	a := DefaultOptions
	a.AppIDs = []string{"x"}
	b := DefaultOptions
	b.AppIDs = []string{"x"}
	require.True(t, a.Equals(b))

	b.AppIDs = []string{"y"}
	require.False(t, a.Equals(b))
}
