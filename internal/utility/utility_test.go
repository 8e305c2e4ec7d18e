package utility

import (
	"regexp"
	"strconv"
	"testing"
)

func TestRandomColorHex(t *testing.T) {
	hexPattern := regexp.MustCompile(`^#[0-9a-f]{6}$`)

	for i := 0; i < 100; i++ {
		color := RandomColorHex()
		if !hexPattern.MatchString(color) {
			t.Errorf("RandomColorHex() = %q, want matching #rrggbb pattern", color)
		}
	}
}

func TestRandomColorHex_ChannelRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		color := RandomColorHex()
		for _, part := range []string{color[1:3], color[3:5], color[5:7]} {
			v, err := strconv.ParseUint(part, 16, 8)
			if err != nil {
				t.Fatalf("parsing %q: %v", color, err)
			}
			if v < 4 || v > 251 {
				t.Errorf("channel %d of %q outside [4, 251]", v, color)
			}
		}
	}
}
