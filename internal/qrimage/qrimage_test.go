package qrimage_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/qrimage"
)

func TestClampSize(t *testing.T) {
	cases := map[int]int{
		-5:    qrimage.DefaultSize,
		0:     qrimage.DefaultSize,
		10:    qrimage.MinSize,
		300:   300,
		50000: qrimage.MaxSize,
	}
	for in, want := range cases {
		assert.Equal(t, want, qrimage.ClampSize(in), in)
	}
}

func TestPNG_DecodesAtRequestedSize(t *testing.T) {
	raw, err := qrimage.PNG("GatePass|8c7e2f1a-0000-4000-8000-000000000001", 200)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, 200, b.Dx())
	assert.Equal(t, b.Dx(), b.Dy())
}

func TestPNG_EmptyPayload(t *testing.T) {
	_, err := qrimage.PNG("", 200)
	assert.Error(t, err)
}

func TestImage_IsSquare(t *testing.T) {
	img, err := qrimage.Image("GatePass|abc", 128)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, b.Dx(), b.Dy())
	assert.Positive(t, b.Dx())
}
