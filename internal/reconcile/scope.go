package reconcile

import "strings"

// ParentBillingResourceID rewrites a leaf resource identifier to the parent
// resource billing is actually recorded against: the capacity pool for a
// tiered volume, the storage account for a file share. Unrecognized paths are
// returned unchanged.
func ParentBillingResourceID(resourceID string) string {
	if parent, ok := trimAfterSegment(resourceID, "/volumes/"); ok {
		return parent
	}
	// File share billing lands on the storage account, two levels up from the
	// share itself (.../storageAccounts/<acct>/fileServices/default/shares/<s>).
	if parent, ok := trimAfterSegment(resourceID, "/fileservices/"); ok {
		return parent
	}
	if parent, ok := trimAfterSegment(resourceID, "/fileshares/"); ok {
		return parent
	}
	return resourceID
}

// trimAfterSegment cuts the identifier just before the given path segment,
// matching case-insensitively but preserving the original casing of the
// retained prefix.
func trimAfterSegment(resourceID, segment string) (string, bool) {
	idx := strings.Index(strings.ToLower(resourceID), segment)
	if idx < 0 {
		return "", false
	}
	return resourceID[:idx], true
}
