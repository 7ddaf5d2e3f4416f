package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramed_ReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		stream  []byte
		want    uint16
		wantErr error
	}{
		{name: "valid frame", stream: []byte{0xFF, 0x04, 0xD2, 0xD5}, want: 1234},
		{name: "max distance", stream: []byte{0xFF, 0xFF, 0xFE, 0xFC}, want: 65534},
		{name: "no marker", stream: []byte{0x04, 0xD2, 0xD5}, wantErr: ErrNoFrame},
		{name: "silent", stream: nil, wantErr: ErrNoFrame},
		{name: "short frame", stream: []byte{0xFF, 0x04}, wantErr: ErrNoFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &SimPort{Stream: func() []byte { return tt.stream }}
			f := NewFramed(port, 0)

			got, err := f.ReadFrame(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFramed_DiscardsStaleInput(t *testing.T) {
	port := &SimPort{Stream: SimFrameStream(func() (uint16, bool) { return 500, true })}
	port.Feed([]byte{0x12, 0x34})

	got, err := NewFramed(port, 0).ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(500), got)
}
