package assemble

import "time"

// Raw timestamps in the message store count from the Apple epoch,
// 2001-01-01 00:00:00 UTC. Older schema generations store seconds since
// that epoch, newer ones store nanoseconds. A second-resolution value for
// any plausible date stays below 10^10, while nanosecond values for dates
// after 2001 sit above 10^16, so a single magnitude threshold separates
// the two encodings.
const nanosecondThreshold = int64(1e12)

var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// EpochEncoding identifies how a raw timestamp value is encoded.
type EpochEncoding int

const (
	EpochSeconds EpochEncoding = iota
	EpochNanoseconds
)

func (e EpochEncoding) String() string {
	if e == EpochNanoseconds {
		return "nanoseconds"
	}
	return "seconds"
}

// DetectEpochEncoding classifies a raw timestamp value by magnitude.
func DetectEpochEncoding(raw int64) EpochEncoding {
	if raw >= nanosecondThreshold {
		return EpochNanoseconds
	}
	return EpochSeconds
}

// AppleTime converts a raw store timestamp to an absolute time.
func AppleTime(raw int64) time.Time {
	switch DetectEpochEncoding(raw) {
	case EpochNanoseconds:
		return appleEpoch.Add(time.Duration(raw) * time.Nanosecond)
	default:
		return appleEpoch.Add(time.Duration(raw) * time.Second)
	}
}
