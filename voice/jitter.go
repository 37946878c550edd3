package voice

import "time"

const (
	DefaultMaxLag   = 50 * time.Millisecond
	DefaultMaxAhead = 200 * time.Millisecond
)

// JitterPolicy bounds a peer's playback cursor relative to the mixer
// clock. There are no sequence numbers: a late chunk is simply played
// relative to now.
type JitterPolicy struct {
	MaxLag   time.Duration
	MaxAhead time.Duration
}

var DefaultJitter = JitterPolicy{MaxLag: DefaultMaxLag, MaxAhead: DefaultMaxAhead}

// Schedule returns when a chunk of length dur starts and where the cursor
// moves to afterwards. A cursor that fell more than MaxLag behind (the
// peer ran dry) or ran more than MaxAhead ahead (backlog) restarts at
// now; the backlog is dropped to bound latency. The start is never
// before now nor more than MaxAhead after it.
func (p JitterPolicy) Schedule(cursor, now, dur time.Duration) (start, next time.Duration) {
	if cursor < now-p.MaxLag || cursor > now+p.MaxAhead {
		cursor = now
	}

	start = max(cursor, now)
	return start, start + dur
}
