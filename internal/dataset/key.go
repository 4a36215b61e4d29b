package dataset

import (
	"strconv"
	"time"
)

// KeyPrefix starts every frame key.
const KeyPrefix = "sim_"

// KeyTimeLayout is the fixed-width timestamp embedded in a key.
const KeyTimeLayout = "20060102150405"

// FrameKey builds the key of a capture from its wall-clock time and the
// run's monotonically increasing trail counter. The fixed-width timestamp
// followed by a strictly increasing trail keeps keys unique within a run.
func FrameKey(at time.Time, trail uint64) string {
	return KeyPrefix + at.Format(KeyTimeLayout) + strconv.FormatUint(trail, 10)
}

// ImageName is the file name the host stores a capture under.
func ImageName(key string) string {
	return key + ".png"
}
