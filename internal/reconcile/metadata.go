package reconcile

import (
	"strings"

	"github.com/samber/lo"

	"github.com/cloudmeter/volcost/internal/estimate"
)

// ExtractVolumeMetadata recovers redundancy, service tier, protocol and
// average operation rates from billing meter text. Billing is the only place
// some of these facts surface for discovered resources, so a best-effort
// pattern match here beats reporting nothing; fields stay empty when no
// marker is present.
func ExtractVolumeMetadata(entries []MeterCostEntry) VolumeMetadata {
	var meta VolumeMetadata

	for _, entry := range entries {
		text := strings.ToLower(entry.Meter + " " + entry.MeterSubcategory)

		if meta.Redundancy == "" {
			meta.Redundancy = strings.ToUpper(matchFirst(text, []string{"ra-grs", "gzrs", "grs", "zrs", "lrs"}))
		}
		if meta.ServiceTier == "" {
			meta.ServiceTier = matchFirst(text, []string{"flexible", "ultra", "premium", "standard", "hot", "cool"})
		}
		if meta.Protocol == "" {
			meta.Protocol = strings.ToUpper(matchFirst(text, []string{"nfs", "smb"}))
		}
	}

	meta.AvgDailyOpsRate = avgDailyOpsRate(entries)
	return meta
}

// avgDailyOpsRate averages transaction quantities per usage day.
func avgDailyOpsRate(entries []MeterCostEntry) float64 {
	ops := lo.Filter(entries, func(e MeterCostEntry, _ int) bool {
		return e.ComponentType == estimate.ComponentTransactions && e.Quantity > 0
	})
	if len(ops) == 0 {
		return 0
	}
	days := lo.UniqBy(ops, func(e MeterCostEntry) string {
		return e.UsageDate.Format("2006-01-02")
	})
	total := lo.SumBy(ops, func(e MeterCostEntry) float64 { return e.Quantity })
	return total / float64(len(days))
}

func matchFirst(text string, markers []string) string {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}
