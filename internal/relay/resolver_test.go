package relay

import (
	"testing"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestResolve_SingleCandidate(t *testing.T) {
	driver := map[uint32]radio.DriverNodeInfo{
		0xaabbccdd: {Num: 0xaabbccdd},
	}
	num, ok := Resolve(0xdd, 0x11111111, driver, nil)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xaabbccdd), num)
}

func TestResolve_NoQualifyingCandidate(t *testing.T) {
	num, ok := Resolve(0xdd, 0x11111111, nil, nil)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), num)
}

func TestResolve_ExcludesSource(t *testing.T) {
	driver := map[uint32]radio.DriverNodeInfo{
		0x111111dd: {Num: 0x111111dd},
	}
	num, ok := Resolve(0xdd, 0x111111dd, driver, nil)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), num)
}

func TestResolve_TieBreakByLastHeard(t *testing.T) {
	now := time.Now()
	driver := map[uint32]radio.DriverNodeInfo{
		0xaaaaaadd: {Num: 0xaaaaaadd, LastHeard: now.Add(-time.Hour)},
		0xbbbbbbdd: {Num: 0xbbbbbbdd, LastHeard: now},
	}
	num, ok := Resolve(0xdd, 0x11111111, driver, nil)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xbbbbbbdd), num, "most recently heard candidate wins")

	// Swap ordering: now the other candidate is most recent.
	driver[0xaaaaaadd] = radio.DriverNodeInfo{Num: 0xaaaaaadd, LastHeard: now}
	driver[0xbbbbbbdd] = radio.DriverNodeInfo{Num: 0xbbbbbbdd, LastHeard: now.Add(-time.Hour)}
	num, ok = Resolve(0xdd, 0x11111111, driver, nil)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xaaaaaadd), num)
}

func TestResolve_TieBreakBySNRThenStoreFallbackByPacketCount(t *testing.T) {
	now := time.Now()
	driver := map[uint32]radio.DriverNodeInfo{
		0xaaaaaadd: {Num: 0xaaaaaadd, LastHeard: now, SNR: 2.0},
		0xbbbbbbdd: {Num: 0xbbbbbbdd, LastHeard: now, SNR: 5.0},
	}
	num, ok := Resolve(0xdd, 0x11111111, driver, nil)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xbbbbbbdd), num, "higher SNR wins when last-heard ties")

	storeNodes := []store.Node{
		{Num: 0xaaaaaadd, TotalPackets: 3},
		{Num: 0xbbbbbbdd, TotalPackets: 9},
	}
	num, ok = Resolve(0xdd, 0x11111111, nil, storeNodes)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xbbbbbbdd), num, "higher store packet count wins among fallback candidates")
}

func TestResolve_StoreFallbackOnlyWhenDriverTableEmpty(t *testing.T) {
	driver := map[uint32]radio.DriverNodeInfo{
		0xaaaaaadd: {Num: 0xaaaaaadd},
	}
	storeNodes := []store.Node{
		{Num: 0xbbbbbbdd, TotalPackets: 1000},
	}
	num, ok := Resolve(0xdd, 0x11111111, driver, storeNodes)
	assert.True(t, ok)
	assert.Equal(t, uint32(0xaaaaaadd), num, "driver-table candidate wins even against a higher-packet-count store candidate")
}
