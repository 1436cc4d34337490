package reconcile

import (
	"strings"

	"github.com/cloudmeter/volcost/internal/estimate"
)

// classificationRule maps meter-text markers to a semantic cost category.
type classificationRule struct {
	componentType estimate.ComponentType
	markers       []string
}

// classificationRules is evaluated in priority order; the first matching rule
// wins. "other" is the exhaustive fallback, so classification never errors on
// unrecognized meter text.
var classificationRules = []classificationRule{
	{estimate.ComponentCapacity, []string{"capacity", "storage", "provisioned"}},
	{estimate.ComponentTransactions, []string{"transaction", "read operations", "write operations", "list operations"}},
	{estimate.ComponentEgress, []string{"data transfer out", "egress", "geo-replication data transfer"}},
	{estimate.ComponentIngress, []string{"data transfer in", "ingress"}},
	{estimate.ComponentSnapshot, []string{"snapshot"}},
	{estimate.ComponentBackup, []string{"backup"}},
	{estimate.ComponentReplication, []string{"replication"}},
	{estimate.ComponentDiskOps, []string{"disk operations", "disk ops", "iops"}},
}

// ClassifyMeter maps billing meter text to a semantic cost category using
// prioritized case-insensitive substring rules.
func ClassifyMeter(meter, subcategory string) estimate.ComponentType {
	text := strings.ToLower(meter + " " + subcategory)
	for _, rule := range classificationRules {
		for _, marker := range rule.markers {
			if strings.Contains(text, marker) {
				return rule.componentType
			}
		}
	}
	return estimate.ComponentOther
}
