// Package session resolves session identity and owns the on-disk session
// directory layout: sessions/<id>/{failures.jsonl, alerts.json,
// session-info.json} under the tracking root, moved intact to
// archive/<date>/<id>/ on archival.
package session

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// File names inside a session directory.
const (
	FailuresFile = "failures.jsonl"
	AlertsFile   = "alerts.json"
	InfoFile     = "session-info.json"
)

// BootClock resolves a stable boot time for the host or container,
// used to disambiguate reused parent PIDs after a restart. The value is
// memoized: two calls returning different values within one process
// would fragment a session, so stability matters more than accuracy.
//
// One BootClock is constructed per process and passed to the components
// that need it.
type BootClock struct {
	once  sync.Once
	epoch time.Time
}

// Epoch returns the resolved boot time. It never fails; each fallback
// degrades precision but always yields a usable value.
//
// Resolution order:
//  1. /proc/uptime (containers, most accurate)
//  2. btime from /proc/stat
//  3. this process's own start time (stat of /proc/self)
//  4. current time, cached for the process lifetime
func (b *BootClock) Epoch() time.Time {
	b.once.Do(func() {
		if t, ok := bootFromUptime(); ok {
			b.epoch = t
			return
		}
		if t, ok := bootFromStat(); ok {
			b.epoch = t
			return
		}
		if t, ok := processStart(); ok {
			log.Warn().Msg("could not determine boot time, using process start time; session will not persist across hook invocations")
			b.epoch = t
			return
		}
		log.Warn().Msg("could not determine boot or process start time, caching current time")
		b.epoch = time.Now()
	})
	return b.epoch
}

// bootFromUptime derives boot time from /proc/uptime.
func bootFromUptime() (time.Time, bool) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return time.Time{}, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return time.Time{}, false
	}
	uptime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Now().Add(-time.Duration(uptime * float64(time.Second))), true
}

// bootFromStat reads the btime line from /proc/stat.
func bootFromStat() (time.Time, bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return time.Time{}, false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "btime" {
			sec, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return time.Time{}, false
			}
			return time.Unix(sec, 0), true
		}
	}
	return time.Time{}, false
}

// processStart approximates this process's start time from the creation
// of its /proc entry.
func processStart() (time.Time, bool) {
	st, err := os.Stat("/proc/self")
	if err != nil {
		return time.Time{}, false
	}
	return st.ModTime(), true
}
