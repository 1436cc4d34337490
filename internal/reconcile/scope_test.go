package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParentBillingResourceID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tiered volume maps to capacity pool",
			in:   "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/pool1/volumes/vol1",
			want: "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/pool1",
		},
		{
			name: "file share maps to storage account",
			in:   "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Storage/storageAccounts/acct/fileServices/default/shares/share1",
			want: "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Storage/storageAccounts/acct",
		},
		{
			name: "fileshares segment variant",
			in:   "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Storage/storageAccounts/acct/fileShares/share1",
			want: "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Storage/storageAccounts/acct",
		},
		{
			name: "segment match is case-insensitive",
			in:   "/subscriptions/s1/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/p/Volumes/v",
			want: "/subscriptions/s1/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/p",
		},
		{
			name: "already a parent resource passes through",
			in:   "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/pool1",
			want: "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.NetApp/netAppAccounts/a/capacityPools/pool1",
		},
		{
			name: "empty identifier passes through",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParentBillingResourceID(tt.in))
		})
	}
}
