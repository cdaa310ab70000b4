// Package registry ties the catalog, identity cache, codec, schema manager
// and one store together under a named, versioned database.
//
// A Registry is created with New, entity types are added with Register and
// the store is opened with Initialize. Initialize inspects the SchemaInfo
// table to decide whether the store is fresh, current or due a migration:
//
//	reg := registry.New(cfg)
//	reg.Register(sample.ItemDescriptor())
//	if err := reg.Initialize(ctx, "shop", 3); err != nil { ... }
//	defer reg.Close()
//
//	items, err := registry.Get[*sample.Item](ctx, reg, query.Gt("price", 5))
//
// Every operation before Initialize or after Close fails with an
// UNAVAILABLE store error.
package registry
