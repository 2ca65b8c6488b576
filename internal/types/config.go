package types

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// Settings drives the archive loader. It is loaded once at startup (YAML file, then
// environment overrides) and treated as an immutable snapshot afterwards.
//
// Debug forces archiving on every request for the matching granularity (day, range, or
// every other period), bypassing the existence lookup and invalidation entirely.
// InvalidateBeforeArchiving applies remembered invalidations before re-archiving a tuple
// that already has (unusable) archives.
// BrowserArchiving makes segment-less requests archive every plugin in one pass.
// The *ArchiveTTLSeconds fields bound how old an archive of an in-progress period may be.
// SitesWithoutTracker and SitesArchiveWithoutVisits seed the extension-provided site lists.
type Settings struct {
	Debug                     DebugSettings `yaml:"debug" envPrefix:"DEBUG_"`
	InvalidateBeforeArchiving bool          `yaml:"invalidate_before_archiving" env:"INVALIDATE_BEFORE_ARCHIVING"`
	BrowserArchiving          bool          `yaml:"browser_archiving" env:"BROWSER_ARCHIVING"`

	TodayArchiveTTLSeconds  int `yaml:"today_archive_ttl_seconds" env:"TODAY_ARCHIVE_TTL_SECONDS"`
	PeriodArchiveTTLSeconds int `yaml:"period_archive_ttl_seconds" env:"PERIOD_ARCHIVE_TTL_SECONDS"`
	RangeArchiveTTLSeconds  int `yaml:"range_archive_ttl_seconds" env:"RANGE_ARCHIVE_TTL_SECONDS"`
	MinVisitTimeTTLSeconds  int `yaml:"min_visit_time_ttl_seconds" env:"MIN_VISIT_TIME_TTL_SECONDS"`

	Lock LockSettings `yaml:"lock" envPrefix:"LOCK_"`

	SitesWithoutTracker       []int `yaml:"sites_without_tracker" env:"SITES_WITHOUT_TRACKER" envSeparator:","`
	SitesArchiveWithoutVisits []int `yaml:"sites_archive_without_visits" env:"SITES_ARCHIVE_WITHOUT_VISITS" envSeparator:","`

	// Sites seeds the site directory of memory-backed deployments.
	Sites []Site `yaml:"sites"`
}

type DebugSettings struct {
	AlwaysArchiveDataDay    bool `yaml:"always_archive_data_day" env:"ALWAYS_ARCHIVE_DATA_DAY"`
	AlwaysArchiveDataPeriod bool `yaml:"always_archive_data_period" env:"ALWAYS_ARCHIVE_DATA_PERIOD"`
	AlwaysArchiveDataRange  bool `yaml:"always_archive_data_range" env:"ALWAYS_ARCHIVE_DATA_RANGE"`
}

// LockPolicy decides what a worker does when another worker already archives the same tuple.
type LockPolicy string

const (
	// LockPolicySkip returns immediately without a result.
	LockPolicySkip LockPolicy = "skip"
	// LockPolicyWait polls until the lock frees (bounded by WaitSeconds), then re-checks for
	// an archive produced by the other worker before computing.
	LockPolicyWait LockPolicy = "wait"
)

type LockSettings struct {
	// TTLSeconds is the expiry the lock backend applies to a held lock, so a crashed holder
	// cannot block a tuple forever.
	TTLSeconds  int        `yaml:"ttl_seconds" env:"TTL_SECONDS"`
	Policy      LockPolicy `yaml:"policy" env:"POLICY"`
	WaitSeconds int        `yaml:"wait_seconds" env:"WAIT_SECONDS"`
	PollMillis  int        `yaml:"poll_millis" env:"POLL_MILLIS"`
}

const (
	DefaultTodayArchiveTTLSeconds = 900
	DefaultMinVisitTimeTTLSeconds = 3600
	DefaultLockTTLSeconds         = 3600
	DefaultLockWaitSeconds        = 60
	DefaultLockPollMillis         = 500
)

func DefaultSettings() Settings {
	return Settings{
		TodayArchiveTTLSeconds:  DefaultTodayArchiveTTLSeconds,
		PeriodArchiveTTLSeconds: DefaultTodayArchiveTTLSeconds,
		RangeArchiveTTLSeconds:  DefaultTodayArchiveTTLSeconds,
		MinVisitTimeTTLSeconds:  DefaultMinVisitTimeTTLSeconds,
		Lock: LockSettings{
			TTLSeconds:  DefaultLockTTLSeconds,
			Policy:      LockPolicySkip,
			WaitSeconds: DefaultLockWaitSeconds,
			PollMillis:  DefaultLockPollMillis,
		},
	}
}

// LoadSettings reads defaults, then the YAML file at path (if any), then environment
// overrides, and validates the result.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, Err(ErrConfiguration, err, "read settings %s", path)
		}
		if err := yaml.Unmarshal(b, &s); err != nil {
			return Settings{}, Err(ErrConfiguration, err, "parse settings %s", path)
		}
	}
	if err := env.Parse(&s); err != nil {
		return Settings{}, Err(ErrConfiguration, err, "parse env")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.TodayArchiveTTLSeconds < 0 || s.PeriodArchiveTTLSeconds < 0 || s.RangeArchiveTTLSeconds < 0 {
		return Err(ErrConfiguration, nil, "archive ttl values must be non-negative")
	}
	if s.MinVisitTimeTTLSeconds <= 0 {
		return Err(ErrConfiguration, nil, "min_visit_time_ttl_seconds must be positive")
	}
	if s.Lock.TTLSeconds <= 0 {
		return Err(ErrConfiguration, nil, "lock.ttl_seconds must be positive")
	}
	switch s.Lock.Policy {
	case LockPolicySkip:
	case LockPolicyWait:
		if s.Lock.WaitSeconds <= 0 || s.Lock.PollMillis <= 0 {
			return Err(ErrConfiguration, nil, "lock.wait_seconds and lock.poll_millis must be positive for policy %q", s.Lock.Policy)
		}
	default:
		return Err(ErrConfiguration, nil, "unknown lock.policy %q", s.Lock.Policy)
	}
	for _, id := range append(append([]int{}, s.SitesWithoutTracker...), s.SitesArchiveWithoutVisits...) {
		if id <= 0 {
			return Err(ErrConfiguration, nil, "site ids must be positive, got %d", id)
		}
	}
	seen := make(map[int]bool, len(s.Sites))
	for _, site := range s.Sites {
		if site.ID <= 0 {
			return Err(ErrConfiguration, nil, "site ids must be positive, got %d", site.ID)
		}
		if seen[site.ID] {
			return Err(ErrConfiguration, nil, "duplicate site %d", site.ID)
		}
		seen[site.ID] = true
		if site.Timezone != "" {
			if _, err := time.LoadLocation(site.Timezone); err != nil {
				return Err(ErrConfiguration, err, "site %d timezone", site.ID)
			}
		}
	}
	return nil
}

// ForcedFor reports whether the debug override demands re-archiving periods of label.
func (d DebugSettings) ForcedFor(label PeriodLabel) bool {
	switch label {
	case PeriodDay:
		return d.AlwaysArchiveDataDay
	case PeriodRange:
		return d.AlwaysArchiveDataRange
	default:
		return d.AlwaysArchiveDataPeriod
	}
}

// InProgressTTL is how old an archive of an in-progress period of label may be.
func (s Settings) InProgressTTL(label PeriodLabel) time.Duration {
	switch label {
	case PeriodDay:
		return time.Duration(s.TodayArchiveTTLSeconds) * time.Second
	case PeriodRange:
		return time.Duration(s.RangeArchiveTTLSeconds) * time.Second
	default:
		return time.Duration(s.PeriodArchiveTTLSeconds) * time.Second
	}
}

func (s Settings) MinVisitTimeTTL() time.Duration {
	return time.Duration(s.MinVisitTimeTTLSeconds) * time.Second
}

func (l LockSettings) TTL() time.Duration { return time.Duration(l.TTLSeconds) * time.Second }

func (l LockSettings) Wait() time.Duration { return time.Duration(l.WaitSeconds) * time.Second }

func (l LockSettings) Poll() time.Duration { return time.Duration(l.PollMillis) * time.Millisecond }

func (s Settings) String() string {
	return fmt.Sprintf("settings{invalidate_before_archiving=%t browser_archiving=%t lock=%s}",
		s.InvalidateBeforeArchiving, s.BrowserArchiving, s.Lock.Policy)
}
