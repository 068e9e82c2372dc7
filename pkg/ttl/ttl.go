// Package ttl classifies financial-data API requests into cache lifetimes.
//
// Endpoints fall into three regimes:
//
//   - reference data (ticker metadata, index and option contract definitions)
//     changes rarely and gets long lifetimes
//   - historical data for a period that has already closed is immutable and is
//     cached permanently
//   - live data (snapshots, last trade, "today" windows) is never cached
//
// Rules are evaluated in a fixed priority order and the first match wins.
// Classification depends only on the request shape and the supplied clock.
package ttl

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // America/New_York must resolve in minimal images
)

// Cache lifetimes used by the classifier.
const (
	None      time.Duration = 0
	Minutes5                = 5 * time.Minute
	Minutes15               = 15 * time.Minute
	Minutes30               = 30 * time.Minute
	Hour                    = time.Hour
	Hours2                  = 2 * time.Hour
	Hours4                  = 4 * time.Hour
	Hours6                  = 6 * time.Hour
	Hours12                 = 12 * time.Hour
	Day                     = 24 * time.Hour
	Week                    = 7 * Day
	Permanent               = 365 * Day
)

// Default is the lifetime of any GET path no rule recognizes.
const Default = Minutes5

// DateLayout is the ISO-8601 calendar date layout compared against date
// parameters. Values are compared lexicographically.
const DateLayout = "2006-01-02"

var (
	optionContractPattern = regexp.MustCompile(`^/v1/reference/options/contracts/[^/]+$`)
	indexPattern          = regexp.MustCompile(`^/v1/reference/indices/[^/]+$`)
	tickerPattern         = regexp.MustCompile(`^/v1/reference/tickers/[^/]+$`)
	pathDatePattern       = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Classification is the outcome of classifying a request.
type Classification struct {
	// TTL is the cache lifetime; None means the response must not be cached.
	TTL time.Duration

	// Rule names the rule that produced TTL.
	Rule string
}

// Cacheable reports whether the classification allows caching.
func (c Classification) Cacheable() bool {
	return c.TTL > None
}

// Seconds returns the lifetime in whole seconds.
func (c Classification) Seconds() int64 {
	return int64(c.TTL / time.Second)
}

// request is the view of an inbound request the rules match against.
type request struct {
	path     string
	query    url.Values
	now      time.Time
	pastData bool
}

type rule struct {
	name  string
	match func(r request) bool
	ttl   func(r request) time.Duration
}

func fixed(d time.Duration) func(request) time.Duration {
	return func(request) time.Duration { return d }
}

func contains(parts ...string) func(r request) bool {
	return func(r request) bool {
		for _, p := range parts {
			if !strings.Contains(r.path, p) {
				return false
			}
		}
		return true
	}
}

func historical(match func(r request) bool) func(r request) bool {
	return func(r request) bool {
		return r.pastData && match(r)
	}
}

// rules is evaluated top to bottom. Specific reference paths come before the
// generic collections so the collections cannot shadow them.
var rules = []rule{
	{
		name:  "ticker-types",
		match: func(r request) bool { return r.path == "/v1/reference/tickers/types" },
		ttl:   fixed(Week),
	},
	{
		name:  "option-contract",
		match: func(r request) bool { return optionContractPattern.MatchString(r.path) },
		ttl:   fixed(Permanent),
	},
	{
		name:  "index",
		match: func(r request) bool { return indexPattern.MatchString(r.path) },
		ttl:   fixed(Day),
	},
	{
		name: "ticker",
		match: func(r request) bool {
			return tickerPattern.MatchString(r.path) && !strings.Contains(r.path, "?")
		},
		ttl: fixed(Hours6),
	},
	{
		name: "tickers",
		match: func(r request) bool {
			return r.path == "/v1/reference/tickers" || strings.HasPrefix(r.path, "/v1/reference/tickers?")
		},
		ttl: fixed(Hours4),
	},
	{
		name:  "option-contracts",
		match: func(r request) bool { return r.path == "/v1/reference/options/contracts" },
		ttl:   fixed(Hours2),
	},
	{
		name:  "indices",
		match: func(r request) bool { return r.path == "/v1/reference/indices" },
		ttl:   fixed(Hours12),
	},
	{
		name: "company",
		match: func(r request) bool {
			return strings.Contains(r.path, "/v1/meta/symbols/") && strings.HasSuffix(r.path, "/company")
		},
		ttl: fixed(Hours6),
	},
	{
		name: "analysts",
		match: func(r request) bool {
			return strings.Contains(r.path, "/v1/meta/symbols/") && strings.HasSuffix(r.path, "/analysts")
		},
		ttl: fixed(Hour),
	},
	{
		name:  "historical-aggregates",
		match: historical(contains("/v1/aggs/ticker/", "/range/")),
		ttl:   fixed(Permanent),
	},
	{
		name: "historical-open-close",
		match: historical(func(r request) bool {
			return strings.Contains(r.path, "/v1/open-close/") && !strings.Contains(r.path, "/today")
		}),
		ttl: fixed(Permanent),
	},
	{
		name:  "historical-trades",
		match: historical(contains("/v1/trades/")),
		ttl:   fixed(Permanent),
	},
	{
		name:  "historical-quotes",
		match: historical(contains("/v1/quotes/")),
		ttl:   fixed(Permanent),
	},
	{
		name:  "historical-treasury-yields",
		match: historical(contains("/v1/indicators/treasury-yields")),
		ttl:   fixed(Permanent),
	},
	{
		name:  "conversion",
		match: contains("/v1/conversion/"),
		ttl: func(r request) time.Duration {
			if IsMarketHours(r.now) {
				return Minutes15
			}
			return Minutes30
		},
	},
	{
		name:  "snapshot",
		match: contains("/v1/snapshot"),
		ttl:   fixed(None),
	},
	{
		name:  "last-trade",
		match: contains("/v1/last/trade/"),
		ttl:   fixed(None),
	},
	{
		name:  "last-nbbo",
		match: contains("/v1/last/nbbo/"),
		ttl:   fixed(None),
	},
	{
		name:  "prev-aggregate",
		match: contains("/v1/aggs/ticker/", "/prev"),
		ttl:   fixed(None),
	},
	{
		name:  "today-open-close",
		match: contains("/v1/open-close/", "/today"),
		ttl:   fixed(None),
	},
}

// Classify maps a request path and query to a cache lifetime as of now.
// path is the escaped form as sent on the wire, so an encoded slash stays
// inside its segment. It never fails: requests no rule recognizes get Default.
func Classify(path string, query url.Values, now time.Time) Classification {
	r := request{path: path, query: query, now: now}
	r.pastData = IsPastData(path, query, now)

	for _, rl := range rules {
		if rl.match(r) {
			return Classification{TTL: rl.ttl(r), Rule: rl.name}
		}
	}
	return Classification{TTL: Default, Rule: "default"}
}

// TTL is Classify without the rule name.
func TTL(path string, query url.Values, now time.Time) time.Duration {
	return Classify(path, query, now).TTL
}

// IsPastData reports whether the request addresses a period that closed
// before today's UTC date. The start date comes from the date or from
// parameter, falling back to the first YYYY-MM-DD segment in the path; the
// to parameter is checked independently. Missing dates never match.
func IsPastData(path string, query url.Values, now time.Time) bool {
	today := now.UTC().Format(DateLayout)

	start := query.Get("date")
	if start == "" {
		start = query.Get("from")
	}
	if start == "" {
		if m := pathDatePattern.FindStringSubmatch(path); m != nil {
			start = m[1]
		}
	}
	end := query.Get("to")

	return (start != "" && start < today) || (end != "" && end < today)
}

// IsMarketHours reports whether now falls within Monday to Friday,
// 09:00 to 16:00 America/New_York.
func IsMarketHours(now time.Time) bool {
	et := now.In(newYork)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := et.Hour()
	return hour >= 9 && hour < 16
}
