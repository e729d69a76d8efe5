// Package beam holds the window-advance and result-record bookkeeping
// shared by the frequency- and time-domain beamformers.
package beam

import (
	"math"
	"time"
)

// SlownessFloor keeps apparent velocity finite at the grid origin.
const SlownessFloor = 1e-8

// MatlabDayEpoch is the day count between 0001-01-01 and 1970-01-01.
const MatlabDayEpoch = 719162

// Backazimuth converts a slowness vector into (backazimuth in degrees,
// absolute slowness). The backazimuth is measured clockwise from north and
// normalized to [0, 360); the slowness magnitude is floored at
// SlownessFloor.
func Backazimuth(sx, sy float64) (baz, slow float64) {
	slow = math.Hypot(sx, sy)
	if slow < SlownessFloor {
		slow = SlownessFloor
	}
	az := 180 * math.Atan2(sx, sy) / math.Pi
	baz = math.Mod(az+180, 360)
	if baz < 0 {
		baz += 360
	}
	return baz, slow
}

// UnixSeconds returns t as fractional seconds since the Unix epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// MatlabDays converts fractional Unix seconds into fractional days since
// 0001-01-01, the convention used by matplotlib date axes.
func MatlabDays(unixSec float64) float64 {
	return unixSec/86400 + MatlabDayEpoch
}

// Windows iterates the sliding analysis windows over [start, end). The
// first window always runs; iteration stops once the following window
// would end past the requested end time.
type Windows struct {
	nsamp, nstep int
	fs           float64
	end          float64

	offset int
	start  float64
	done   bool
}

// NewWindows builds the iterator for windows of nsamp samples advancing by
// nstep samples at sampling rate fs, starting at start.
func NewWindows(start, end time.Time, fs float64, nsamp, nstep int) *Windows {
	return &Windows{
		nsamp: nsamp,
		nstep: nstep,
		fs:    fs,
		end:   UnixSeconds(end),
		start: UnixSeconds(start),
	}
}

// Next reports the sample offset and start time (Unix seconds) of the next
// window, or ok=false when iteration is over.
func (w *Windows) Next() (offset int, startUnix float64, ok bool) {
	if w.done {
		return 0, 0, false
	}
	offset, startUnix = w.offset, w.start
	if w.start+float64(w.nsamp+w.nstep)/w.fs > w.end {
		w.done = true
	}
	w.offset += w.nstep
	w.start += float64(w.nstep) / w.fs
	return offset, startUnix, true
}
