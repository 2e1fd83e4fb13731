package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsElderSizeAboveRecommended(t *testing.T) {
	p := NetworkParams{ElderSize: 10, RecommendedSectionSize: 7}
	assert.ErrorIs(t, p.Validate(), ErrInvalidNetworkParams)
}

func TestValidateAcceptsTypicalValues(t *testing.T) {
	p := DefaultNetworkParams()
	assert.NoError(t, p.Validate())
	assert.Equal(t, 7, p.ElderSize)
	assert.Equal(t, 10, p.RecommendedSectionSize)
}

func TestDecodeAppliesDefaultsAndOverrides(t *testing.T) {
	doc := `
first = true
contacts = ["127.0.0.1:9000"]

[network]
elder_size = 5
recommended_section_size = 8
`
	cfg, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.True(t, cfg.First)
	assert.Equal(t, []string{"127.0.0.1:9000"}, cfg.Contacts)
	assert.Equal(t, 5, cfg.Network.ElderSize)
	assert.Equal(t, DefaultBootstrapTimeout, cfg.BootstrapTimeout)
}

func TestDecodeRejectsInvalidNetworkParams(t *testing.T) {
	doc := `
[network]
elder_size = 20
recommended_section_size = 10
`
	_, err := Decode(strings.NewReader(doc))
	assert.ErrorIs(t, err, ErrInvalidNetworkParams)
}
