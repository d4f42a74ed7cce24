package models

// RelationType identifies what a relation tag points at. Relations are only
// used to rank reallocation candidates, never for any price arithmetic.
type RelationType string

const (
	RelationTypeGroup        RelationType = "Group"
	RelationTypeGroupPrice   RelationType = "GroupPrice"
	RelationTypeGroupOption  RelationType = "GroupOption"
	RelationTypeMember       RelationType = "Member"
	RelationTypeWebshop      RelationType = "Webshop"
	RelationTypeProduct      RelationType = "Product"
	RelationTypeProductPrice RelationType = "ProductPrice"
)

// Relation is a typed tag on a balance item, e.g. the group a registration
// belongs to or the webshop product an order line was created for.
type Relation struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// RelationSet holds the relation tags of a balance item, keyed by type.
// It is stored as a JSON column.
type RelationSet map[RelationType]Relation

// Matches reports whether two relation sets are similar enough, allowing up to
// allowedDifferences mismatching or missing tags across both sets.
//
// Two empty sets never match: items without any relations carry no signal
// about belonging together. With zero allowed differences the sets must be
// identical. The allowance is capped at the size of the smaller set so that a
// large set cannot match a tiny one purely through "missing" differences.
func (r RelationSet) Matches(other RelationSet, allowedDifferences int) bool {
	if allowedDifferences == 0 && len(r) != len(other) {
		return false
	}

	if len(r) == 0 || len(other) == 0 {
		return false
	}

	allowedDifferences = min(allowedDifferences, len(r), len(other))

	differences := 0

	for relationType, relation := range r {
		otherRelation, ok := other[relationType]
		if !ok || otherRelation.ID != relation.ID {
			differences++

			if differences > allowedDifferences {
				return false
			}
		}
	}

	for relationType := range other {
		if _, ok := r[relationType]; ok {
			// Already handled in the previous loop
			continue
		}

		differences++

		if differences > allowedDifferences {
			return false
		}
	}

	return true
}
