// Command validate checks a targets file against a captured cluster feed log
// without connecting anywhere. It parses every line the way the relay does,
// reports parse outcomes, and lists the alerts the targets would have produced
// under the dedup window.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -targets targets.yaml \
//	  -log testdata/feed.log \
//	  -window 30m \
//	  -date 2026-10-17
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/config"
	"github.com/couchcryptid/dx-spot-relay/internal/dedup"
	"github.com/couchcryptid/dx-spot-relay/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type simulatedAlert struct {
	line int
	spot domain.Spot
}

func main() {
	targetsPath := flag.String("targets", "targets.yaml", "targets file to check")
	logPath := flag.String("log", "", "captured feed log, one cluster line per line")
	window := flag.Duration("window", 30*time.Minute, "dedup window used for the alert simulation")
	date := flag.String("date", "", "UTC date the log was captured (YYYY-MM-DD); defaults to today")
	flag.Parse()

	if *logPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	received := time.Now().UTC()
	if *date != "" {
		d, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: invalid -date: %v\n", err)
			os.Exit(1)
		}
		received = d.Add(24*time.Hour - time.Second)
	}

	if code := run(*targetsPath, *logPath, *window, received); code != 0 {
		os.Exit(code)
	}
}

func run(targetsPath, logPath string, window time.Duration, received time.Time) int {
	fmt.Println("=== DX Relay Feed Validation ===")
	fmt.Println()

	targets, err := config.LoadTargets(targetsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	lines, err := readLines(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed log: %v\n", err)
		return 1
	}

	parsing, spots, outcomes := validateParsing(lines, received)
	phases := []*phase{
		validateTargets(targets, spots),
		parsing,
	}
	alerts := simulateAlerts(spots, targets, window)

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Lines: %d read, %d spots", len(lines), outcomes["spot"])
	for _, kind := range []domain.ParseErrorKind{domain.NotASpot, domain.MalformedFrequency, domain.MalformedCallsign} {
		fmt.Printf(", %d %s", outcomes[kind.String()], kind)
	}
	fmt.Println()
	fmt.Printf("Targets: %d, alerts with %s window: %d\n", len(targets), window, len(alerts))

	for _, a := range alerts {
		fmt.Printf("  line %-6d %-10s %10s kHz  %-7s %-7s %s\n",
			a.line, a.spot.Callsign, domain.FormatKHz(a.spot.FrequencyKHz), a.spot.Band, a.spot.Mode,
			a.spot.Time.Format("15:04Z"))
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// validateParsing parses every line. Lines that are not spots are expected on
// a cluster feed; spot lines the parser rejects are errors.
func validateParsing(lines []string, received time.Time) (*phase, []simulatedAlert, map[string]int) {
	p := &phase{name: "Spot line parsing"}
	outcomes := map[string]int{}
	var spots []simulatedAlert

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		spot, err := domain.ParseSpot(line, received)
		if err != nil {
			var perr *domain.ParseError
			if !errors.As(err, &perr) {
				p.errorf("line %d: %v", i+1, err)
				continue
			}
			outcomes[perr.Kind.String()]++
			if perr.Kind != domain.NotASpot {
				p.errorf("line %d: %v: %q", i+1, err, line)
			}
			continue
		}
		outcomes["spot"]++
		spots = append(spots, simulatedAlert{line: i + 1, spot: spot})
	}
	return p, spots, outcomes
}

// validateTargets flags band names that can never match, which usually means
// a typo, and criteria that matched nothing in the log.
func validateTargets(targets []domain.TargetCriterion, spots []simulatedAlert) *phase {
	p := &phase{name: "Targets file"}
	if len(targets) == 0 {
		p.errorf("no targets defined; the relay would never alert")
		return p
	}

	for i, t := range targets {
		for _, b := range t.Bands {
			if !domain.KnownBand(b) && !strings.EqualFold(b, string(domain.BandUnknown)) {
				p.errorf("target %d: band %q is not a known band", i+1, b)
			}
		}
		matched := false
		for _, s := range spots {
			if t.Matches(s.spot) {
				matched = true
				break
			}
		}
		if !matched && len(spots) > 0 {
			fmt.Printf("  note: target %d matched no spot in the log\n", i+1)
		}
	}
	return p
}

// simulateAlerts replays the filter and dedup stages, using each spot's own
// time as the clock.
func simulateAlerts(spots []simulatedAlert, targets []domain.TargetCriterion, window time.Duration) []simulatedAlert {
	sorted := append([]simulatedAlert(nil), spots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].spot.Time.Before(sorted[j].spot.Time) })

	cache := dedup.New(dedup.DefaultEvictMultiplier)
	var alerts []simulatedAlert
	for _, s := range sorted {
		if !domain.MatchesAny(s.spot, targets) {
			continue
		}
		if cache.ShouldAlert(s.spot.DedupKey(), s.spot.Time, window) {
			alerts = append(alerts, s)
		}
	}
	return alerts
}
