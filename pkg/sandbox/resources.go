package sandbox

import (
	"slices"

	"github.com/nimburion/providerdesk/pkg/dashboard"
)

// DashboardResources describes every dashboard screen as a sandbox
// resource.
func DashboardResources() []Resource {
	out := make([]Resource, 0, len(dashboard.Names()))
	for _, name := range dashboard.Names() {
		entry, err := dashboard.Lookup(name)
		if err != nil {
			continue
		}
		filters := append([]string{"status"}, entry.ListParams()...)
		if !slices.Contains(filters, "category_id") {
			filters = append(filters, "category_id")
		}
		out = append(out, Resource{
			Name:    string(entry.Resource()),
			Entity:  entry.Entity(),
			Form:    entry.FormSchema(),
			Filters: filters,
		})
	}
	return out
}
