// Package entity defines the contract every persistable type satisfies and
// the field descriptors that describe its persistent shape.
//
// Descriptors are declared explicitly per type instead of being discovered
// at runtime:
//
//	var itemDescriptor = entity.Describe[Item](
//		entity.TextField("name", func(i *Item) *string { return &i.Name }),
//		entity.FloatField("price", func(i *Item) *float64 { return &i.Price }),
//	)
//
// Each Field carries a name, a type tag and a pair of accessors. The mapper
// reads and writes field values exclusively through those accessors, so an
// entity never needs reflection to be persisted.
//
// Record is a map-backed entity for types only known at runtime (for example
// entity schemas loaded from CUE files by the CLI).
package entity
