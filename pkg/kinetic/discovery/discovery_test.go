package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryObserveAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.Empty(t, reg.Drives())

	reg.Observe(Drive{WorldWideName: "wwn-1", Addr: "10.0.0.1:8123"})
	reg.Observe(Drive{WorldWideName: "wwn-2", Addr: "10.0.0.2:8123"})

	require.Len(t, reg.Drives(), 2)

	d, ok := reg.Lookup("wwn-1")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:8123", d.Addr)

	_, ok = reg.Lookup("missing")
	require.False(t, ok)
}

func TestRegistryObserveRefreshesExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Observe(Drive{WorldWideName: "wwn-1", Addr: "10.0.0.1:8123"})
	reg.Observe(Drive{WorldWideName: "wwn-1", Addr: "10.0.0.1:9999"})

	require.Len(t, reg.Drives(), 1)
	d, ok := reg.Lookup("wwn-1")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:9999", d.Addr)
}

func TestBannerToDrive(t *testing.T) {
	banner := Banner{
		Port:          8123,
		WorldWideName: "wwn-abc",
		NetworkInterfaces: []NetworkInterface{
			{IPv4Addr: "192.168.1.5"},
		},
	}
	d := bannerToDrive(banner)
	require.Equal(t, "wwn-abc", d.WorldWideName)
	require.Equal(t, "192.168.1.5:8123", d.Addr)
}

func TestBannerToDriveNoInterfaces(t *testing.T) {
	d := bannerToDrive(Banner{Port: 8123, WorldWideName: "wwn-x"})
	require.Equal(t, ":8123", d.Addr)
}
