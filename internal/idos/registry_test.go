package idos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistry_GroupsByCanonicalForm(t *testing.T) {
	reg := NewRegistry([]Record{
		{Key: "k1", IDOS: "X Y"},
		{Key: "k2", IDOS: "x-y"},
		{Key: "k3"},
		{Key: "k4", IDOS: "ç"},
	})

	require.True(t, reg.IsClaimed("X-Y"))
	require.Equal(t, []string{"k1", "k2"}, reg.Claimants("X-Y"))
	require.False(t, reg.IsClaimed("K3"))
	require.Equal(t, []string{"k4"}, reg.Claimants("ç"), "unnormalizable values keep their raw claim")
	require.Equal(t, 2, reg.Len())
}

func TestRegistry_ClaimIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)

	reg.Claim("A", "k1")
	reg.Claim("A", "k1")

	require.Equal(t, []string{"k1"}, reg.Claimants("A"))
}

func TestRegistry_ClaimMovesPreviousClaim(t *testing.T) {
	reg := NewRegistry([]Record{{Key: "k1", IDOS: "a b"}})
	require.True(t, reg.IsClaimed("A-B"))

	reg.Claim("A-B-1", "k1")

	require.False(t, reg.IsClaimed("A-B"))
	require.Equal(t, []string{"k1"}, reg.Claimants("A-B-1"))
}

func TestRegistry_ClaimantsReturnsCopy(t *testing.T) {
	reg := NewRegistry([]Record{{Key: "k1", IDOS: "A"}})

	got := reg.Claimants("A")
	got[0] = "mutated"

	require.Equal(t, []string{"k1"}, reg.Claimants("A"))
}

func TestRegistry_Contested(t *testing.T) {
	reg := NewRegistry([]Record{
		{Key: "k1", IDOS: "ab"},
		{Key: "k2", IDOS: "AB"},
		{Key: "k3", IDOS: "C D"},
		{Key: "k4", IDOS: "C D"},
	})

	// k2 stores AB verbatim and will keep it.
	require.True(t, reg.contested("AB", "k1", false))
	require.False(t, reg.contested("AB", "k2", true))

	// Neither k3 nor k4 stores C-D verbatim; the earlier one wins.
	require.False(t, reg.contested("C-D", "k3", false))
	reg.Claim("C-D", "k3")
	require.True(t, reg.contested("C-D", "k4", false))
}
