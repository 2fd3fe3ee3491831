package domain

import (
	"sort"

	snapshot "batteryusage/internal/modules/snapshot/domain"
)

type interval struct {
	start, end int64
}

// unionLength is the total length of the intervals clipped to [lower, upper],
// counting overlapping time once.
func unionLength(intervals []interval, lower, upper int64) int64 {
	clipped := make([]interval, 0, len(intervals))
	for _, iv := range intervals {
		start, end := max(iv.start, lower), min(iv.end, upper)
		if end > start {
			clipped = append(clipped, interval{start: start, end: end})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].start < clipped[j].start })
	total, coveredUntil := int64(0), lower
	for _, iv := range clipped {
		start := max(iv.start, coveredUntil)
		if iv.end > start {
			total += iv.end - start
			coveredUntil = iv.end
		}
	}
	return total
}

// screenUsage indexes app usage periods for screen-on lookups.
type screenUsage struct {
	byApp  map[appUser][]interval
	byUser map[int64][]interval
}

type appUser struct {
	pkg  string
	user int64
}

func newScreenUsage(periods []snapshot.UsagePeriod) screenUsage {
	usage := screenUsage{byApp: map[appUser][]interval{}, byUser: map[int64][]interval{}}
	for _, p := range periods {
		if p.Validate() != nil {
			continue
		}
		iv := interval{start: p.StartMs, end: p.EndMs}
		key := appUser{pkg: snapshot.BasePackage(p.PackageName), user: p.UserID}
		usage.byApp[key] = append(usage.byApp[key], iv)
		usage.byUser[p.UserID] = append(usage.byUser[p.UserID], iv)
	}
	return usage
}

func (s screenUsage) empty() bool {
	return len(s.byUser) == 0
}

func (s screenUsage) app(pkg string, user, lower, upper int64) int64 {
	return unionLength(s.byApp[appUser{pkg: pkg, user: user}], lower, upper)
}

func (s screenUsage) user(user, lower, upper int64) int64 {
	return unionLength(s.byUser[user], lower, upper)
}
