// Package mapper persists entities of one type into their table.
//
// A Table is the untyped engine for one registered entity type; Mapper[T]
// is a typed view over it. Every public operation runs as one job on the
// store's serializer. Work that spans types (cascading saves of nested
// entities, loading referenced entities while decoding) runs inside the
// same job on the same connection.
//
// Saving an entity:
//  1. Assigns a key if the entity has none (NextKey)
//  2. Updates the row if it exists, inserts it otherwise
//  3. Places the entity in the identity cache
//  4. Saves every entity it references, once per save operation
//
// Loading rows returns the cached instance for keys already live in the
// identity cache. New instances are cached before their fields are decoded,
// so reference cycles resolve to the instance being built.
package mapper
