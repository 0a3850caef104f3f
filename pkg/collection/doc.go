// Package collection implements the list screen core: a generic, pure view
// that filters, sorts and paginates a snapshot of records.
//
// A View is configured once per screen with declarative options:
//
//	view := collection.NewView[Accommodation](
//		collection.WithSearch[Accommodation]("search", nameOf, descriptionOf),
//		collection.WithEquals[Accommodation]("category", categoryIDOf),
//		collection.WithSort[Accommodation]("created_at", collection.ByTime(createdAtOf)),
//	)
//	result := view.Apply(records, collection.Filters{"search": "lake", "category": collection.All},
//		collection.SortSpec{Key: "created_at", Direction: collection.Desc}, 1, 10)
//
// Apply runs the filters first, then the stable sort, then pagination.
// Search values match case-insensitively as substrings of any configured
// field. Distinct filters must all pass. A filter set to All (or left empty)
// places no constraint. Apply never fails and never mutates its input.
package collection
