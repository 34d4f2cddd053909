package eloop

import (
	"testing"

	"github.com/raleighsl/fs/rcfg"
	"github.com/stretchr/testify/require"
)

func testConfig() *rcfg.Config {
	conf := rcfg.DefaultConfig()
	conf.MMPoolBlockMin = 64
	conf.MMPoolBlockMax = 256
	return conf
}

func TestArenaAllocRoundsUpToSizeClass(t *testing.T) {
	a := NewArena(testConfig())
	b := a.Alloc(10)
	require.Len(t, b, 10)
	require.GreaterOrEqual(t, cap(b), 64)
}

func TestArenaAllocBeyondBlockMaxBypassesClasses(t *testing.T) {
	a := NewArena(testConfig())
	b := a.Alloc(1024)
	require.Len(t, b, 1024)
}

func TestArenaFreeReusesBlock(t *testing.T) {
	a := NewArena(testConfig())
	before := a.Used()

	b := a.Alloc(64)
	afterFirstAlloc := a.Used()
	require.Greater(t, afterFirstAlloc, before)

	a.Free(b)
	b2 := a.Alloc(64)
	require.Equal(t, afterFirstAlloc, a.Used(), "reusing a freed block must not grow Used")
	require.Len(t, b2, 64)
}

func TestArenaAllocZeroesReusedBlock(t *testing.T) {
	a := NewArena(testConfig())
	b := a.Alloc(64)
	for i := range b {
		b[i] = 0xff
	}
	a.Free(b)

	b2 := a.Alloc(64)
	for _, v := range b2 {
		require.Zero(t, v)
	}
}
