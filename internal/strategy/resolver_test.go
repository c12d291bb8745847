package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ExactMatch(t *testing.T) {
	r := NewResolver()
	assert.True(t, r.Match("WEBB", "WEBB"))
	assert.True(t, r.Match("webb", "WEBB")) // normalización a mayúsculas
}

func TestResolver_PrefixMatch(t *testing.T) {
	r := NewResolver()
	// RAD <-> RADF: uno es prefijo del otro con largo >= 3.
	assert.True(t, r.Match("RAD", "RADF"))
	assert.True(t, r.Match("RADF", "RAD"))
	// Prefijos de 2 letras no alcanzan.
	assert.False(t, r.Match("RA", "RADFORD"))
}

func TestResolver_ConsonantSkeleton(t *testing.T) {
	r := NewResolver()
	// LIBRTY <-> LIBERTY: mismas consonantes, vocal inicial preservada.
	assert.True(t, r.Match("LIBRTY", "LIBERTY"))
}

func TestResolver_CompoundNames(t *testing.T) {
	r := NewResolver()
	assert.True(t, r.Match("ST-JOHNS", "StJohns"))
	assert.True(t, r.Match("UMASS-LOWELL", "MassLowell"))
}

func TestResolver_LeadingUPrefix(t *testing.T) {
	r := NewResolver()
	assert.True(t, r.Match("UCONN", "CONN"))
	assert.True(t, r.Match("CONN", "UCONN"))
}

func TestResolver_NoMatch(t *testing.T) {
	r := NewResolver()
	assert.False(t, r.Match("WEBB", "RADF"))
	assert.False(t, r.Match("", "RADF"))
}

func TestResolver_MemoizationTransparent(t *testing.T) {
	r := NewResolver()
	first := r.Match("RAD", "RADF")
	second := r.Match("RAD", "RADF")
	assert.Equal(t, first, second)
	assert.True(t, second)
}

func TestSplitTeamRun(t *testing.T) {
	r := NewResolver()
	// Ticker run WEBBRAD, provider away=WEBB home=RADF.
	away, home, ok := r.SplitTeamRun("WEBBRAD", "WEBB", "RADF")
	require.True(t, ok)
	assert.Equal(t, "WEBB", away)
	assert.Equal(t, "RAD", home)
}

func TestSplitTeamRun_NoResolution(t *testing.T) {
	r := NewResolver()
	_, _, ok := r.SplitTeamRun("WEBBRAD", "DUKE", "UNC")
	assert.False(t, ok)
}

func TestSplitTeamRun_OnlyResolvingCutChosen(t *testing.T) {
	r := NewResolver()
	// Solo el corte ARS|CHE resuelve ambas mitades contra ARSENAL/CHELSEA;
	// los demás (AR|SCHE, ARSC|HE, ...) dejan una mitad sin match.
	away, home, ok := r.SplitTeamRun("ARSCHE", "ARSENAL", "CHELSEA")
	require.True(t, ok)
	assert.Equal(t, "ARS", away)
	assert.Equal(t, "CHE", home)
}
