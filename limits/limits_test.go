package limits

import (
	"errors"
	"testing"
)

func TestValidateDimensions(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		wantErr error
	}{
		{"minimum", 1, 1, nil},
		{"hd", 1280, 720, nil},
		{"maximum", MaxFrameWidth, MaxFrameHeight, nil},
		{"zero width", 0, 720, ErrInvalidDimensions},
		{"negative height", 640, -1, ErrInvalidDimensions},
		{"too wide", MaxFrameWidth + 1, 720, ErrInvalidDimensions},
		{"too tall", 1280, MaxFrameHeight + 1, ErrInvalidDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDimensions(tt.width, tt.height)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ValidateDimensions(%d, %d) = %v, want nil", tt.width, tt.height, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateDimensions(%d, %d) = %v, want %v", tt.width, tt.height, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBufferSize(t *testing.T) {
	if err := ValidateBufferSize(4*3*2, 3, 2); err != nil {
		t.Errorf("exact buffer rejected: %v", err)
	}
	if err := ValidateBufferSize(4*3*2-1, 3, 2); !errors.Is(err, ErrBufferSize) {
		t.Errorf("short buffer: got %v, want ErrBufferSize", err)
	}
	if err := ValidateBufferSize(4*3*2+4, 3, 2); !errors.Is(err, ErrBufferSize) {
		t.Errorf("long buffer: got %v, want ErrBufferSize", err)
	}
	if err := ValidateBufferSize(0, 0, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("empty frame: got %v, want ErrInvalidDimensions", err)
	}
}

func TestBufferSize(t *testing.T) {
	if got := BufferSize(1280, 720); got != 1280*720*4 {
		t.Errorf("BufferSize(1280, 720) = %d, want %d", got, 1280*720*4)
	}
}
