package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractEngineInfo(t *testing.T) {
	engine, err := NewTesseractEngine(nil)
	require.NoError(t, err)

	info := engine.EngineInfo()
	assert.Equal(t, "tesseract", info.Name)
	assert.Equal(t, EngineTypeLocal, info.Type)
	assert.True(t, info.OfflineCapable)
	assert.False(t, info.RequiresAPIKey)
	assert.False(t, info.SupportsBBox)
	assert.False(t, info.SupportsHandwriting)
	assert.Nil(t, info.CostPerPage)
	assert.Nil(t, engine.EstimateCost(1024, 3))
	assert.True(t, engine.IsAvailable())
}

func TestTesseractSupportsLanguage(t *testing.T) {
	engine, err := NewTesseractEngine(nil)
	require.NoError(t, err)

	assert.True(t, engine.SupportsLanguage("en"))
	assert.True(t, engine.SupportsLanguage("EN"))
	assert.True(t, engine.SupportsLanguage("hi"))
	assert.False(t, engine.SupportsLanguage("xx"))
}

func TestTesseractLanguageCodes(t *testing.T) {
	// Every advertised language must resolve to a traineddata name.
	for _, lang := range tesseractLanguages {
		code, ok := tesseractLanguageCodes[lang]
		assert.True(t, ok, "no traineddata mapping for %q", lang)
		assert.NotEmpty(t, code)
	}

	assert.Equal(t, "eng", tesseractLanguageCodes["en"])
	assert.Equal(t, "chi_sim", tesseractLanguageCodes["zh"])
}
