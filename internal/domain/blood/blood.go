// Package blood implements ABO/Rh donation compatibility. O- is the universal
// donor and AB+ the universal recipient.
package blood

import "strings"

// Type is one of the eight canonical ABO/Rh blood types.
type Type string

const (
	ONeg  Type = "O-"
	OPos  Type = "O+"
	ANeg  Type = "A-"
	APos  Type = "A+"
	BNeg  Type = "B-"
	BPos  Type = "B+"
	ABNeg Type = "AB-"
	ABPos Type = "AB+"
)

// All lists the canonical types in a fixed order.
var All = []Type{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// compatibleDonors maps a recipient type to the donor types it may receive from.
var compatibleDonors = map[Type][]Type{
	ONeg:  {ONeg},
	OPos:  {ONeg, OPos},
	ANeg:  {ONeg, ANeg},
	APos:  {ONeg, OPos, ANeg, APos},
	BNeg:  {ONeg, BNeg},
	BPos:  {ONeg, OPos, BNeg, BPos},
	ABNeg: {ONeg, ANeg, BNeg, ABNeg},
	ABPos: {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
}

// recipientsOf is the inverse of compatibleDonors.
var recipientsOf = func() map[Type][]Type {
	inv := make(map[Type][]Type, len(All))
	for _, recipient := range All {
		for _, donor := range compatibleDonors[recipient] {
			inv[donor] = append(inv[donor], recipient)
		}
	}
	return inv
}()

// Parse normalises s ("ab+", " O- ") and reports whether it names a canonical type.
func Parse(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := compatibleDonors[t]
	return t, ok
}

// Valid reports whether t is one of the eight canonical types.
func (t Type) Valid() bool {
	_, ok := compatibleDonors[t]
	return ok
}

func (t Type) String() string { return string(t) }

// CompatibleDonors returns the donor types a recipient of type recipient can
// receive from. Unknown input yields an empty slice, which callers must treat
// as "cannot match".
func CompatibleDonors(recipient Type) []Type {
	return clone(compatibleDonors[recipient])
}

// CanDonateTo returns the recipient types a donor of type donor can give to.
func CanDonateTo(donor Type) []Type {
	return clone(recipientsOf[donor])
}

// IsCompatible reports whether donor may donate to recipient.
func IsCompatible(donor, recipient Type) bool {
	for _, t := range compatibleDonors[recipient] {
		if t == donor {
			return true
		}
	}
	return false
}

// Strings converts types to their string form, e.g. for SQL ANY($1) arguments.
func Strings(types []Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func clone(in []Type) []Type {
	out := make([]Type, len(in))
	copy(out, in)
	return out
}

// FromNullable converts a nullable column value.
func FromNullable(s *string) *Type {
	if s == nil {
		return nil
	}
	t := Type(*s)
	return &t
}

// Nullable converts t to a nullable column value.
func (t *Type) Nullable() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}
