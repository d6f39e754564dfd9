package sqlite

import (
	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/parser"
)

// patchMetadataSource rewrites the active and updatedAt fields of source in
// place, using the line-oriented surgery from pkg/parser rather than
// re-serializing the revision from its parsed model. createdAt is left
// untouched: SetActive never changes it.
func patchMetadataSource(source, format string, updatedAt domain.Timestamp, active bool) (string, error) {
	return parser.UpdateMetadata(source, format, parser.MetadataUpdate{
		UpdatedAt: &updatedAt,
		Active:    &active,
	})
}

// patchAssignedMetadata stamps the store-assigned lifecycle fields into a
// freshly inserted revision's source: version, createdAt, updatedAt, and the
// initial active flag. Everything the author wrote stays untouched.
func patchAssignedMetadata(source, format string, version int, createdAt, updatedAt domain.Timestamp, active bool) (string, error) {
	return parser.UpdateMetadata(source, format, parser.MetadataUpdate{
		Version:   &version,
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
		Active:    &active,
	})
}
