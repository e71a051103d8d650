package domain

// Field names one of the electrical attributes of a node
type Field string

const (
	FieldVoltage       Field = "voltage"
	FieldAngle         Field = "angle"
	FieldActivePower   Field = "active_power"
	FieldReactivePower Field = "reactive_power"
)

// Fields lists the electrical fields in display order
var Fields = []Field{FieldVoltage, FieldAngle, FieldActivePower, FieldReactivePower}

// fieldTable records which fields the operator specifies for each type.
// The rest are produced by the power-flow computation.
var fieldTable = map[NodeType]map[Field]bool{
	NodeTypeSlack: {
		FieldVoltage:       true,
		FieldAngle:         true,
		FieldActivePower:   false,
		FieldReactivePower: false,
	},
	NodeTypePV: {
		FieldVoltage:       true,
		FieldAngle:         false,
		FieldActivePower:   true,
		FieldReactivePower: false,
	},
	NodeTypeGenerator: {
		FieldVoltage:       false,
		FieldAngle:         false,
		FieldActivePower:   true,
		FieldReactivePower: true,
	},
	NodeTypeLoad: {
		FieldVoltage:       false,
		FieldAngle:         false,
		FieldActivePower:   true,
		FieldReactivePower: true,
	},
}

// Editable reports whether f is an operator input for nodes of type t
func Editable(t NodeType, f Field) bool {
	return fieldTable[t][f]
}

// InputFields returns the operator-specified fields of t in display order
func InputFields(t NodeType) []Field {
	var out []Field
	for _, f := range Fields {
		if fieldTable[t][f] {
			out = append(out, f)
		}
	}
	return out
}

// ParseField maps a field name to a Field
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}
