package registry

import "github.com/roach88/ormlite/internal/entity"

// SchemaInfoType names the singleton table holding the schema version.
const SchemaInfoType = "SchemaInfo"

// SchemaInfo is the single row recording the version a store was last
// initialized with.
type SchemaInfo struct {
	entity.Model
	Version int32
}

func (*SchemaInfo) EntityType() string { return SchemaInfoType }

func schemaInfoDescriptor() entity.Descriptor {
	return entity.Describe[SchemaInfo](
		entity.Int32Field("version", func(s *SchemaInfo) *int32 { return &s.Version }),
	)
}
