package groupchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, Options{})
	require.ErrorIs(t, err, ErrNoAgents)

	_, err = New(agents(newFake("Coder"), newFake("Coder")), Options{})
	require.ErrorIs(t, err, ErrDuplicateAgent)
}

func TestNew_Defaults(t *testing.T) {
	g, err := New(agents(newFake("a")), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRound, g.MaxRound())
	assert.False(t, g.AllowRepeatSpeaker())
}

func TestParseSpeakerSelection(t *testing.T) {
	m, err := ParseSpeakerSelection("Round_Robin")
	require.NoError(t, err)
	assert.Equal(t, RoundRobin, m)

	m, err = ParseSpeakerSelection("")
	require.NoError(t, err)
	assert.Equal(t, Auto, m)

	_, err = ParseSpeakerSelection("loudest")
	require.ErrorIs(t, err, ErrUnknownSpeakerSelection)
}

func TestNextAgentAndCandidates(t *testing.T) {
	up, pm, coder := newFake("User_proxy"), newFake("Product_manager"), newFake("Coder")
	g, err := New(agents(up, pm, coder), Options{})
	require.NoError(t, err)

	assert.Equal(t, "Product_manager", g.NextAgent(up).Name())
	assert.Equal(t, "User_proxy", g.NextAgent(coder).Name())
	assert.Equal(t, "User_proxy", g.NextAgent(nil).Name())

	var names []string
	for _, a := range g.Candidates(pm) {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"User_proxy", "Coder"}, names)

	g2, err := New(agents(up, pm), Options{AllowRepeatSpeaker: true})
	require.NoError(t, err)
	assert.Len(t, g2.Candidates(pm), 2)

	assert.Equal(t, "User_proxy: I am User_proxy.\nProduct_manager: I am Product_manager.", g2.Roles())
}
