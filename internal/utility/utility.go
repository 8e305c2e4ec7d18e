package utility

import (
	"fmt"
	"math/rand/v2"
)

// RandomColorHex returns a #rrggbb color with each channel kept away from the
// extremes so avatars stay readable on light and dark backgrounds.
func RandomColorHex() string {
	channel := func() int { return 4 + rand.IntN(248) }
	return fmt.Sprintf("#%02x%02x%02x", channel(), channel(), channel())
}
