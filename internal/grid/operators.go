package grid

import (
	"slices"

	"gridkit/internal/domain"
)

// InputType is the kind of operand editor a clause needs.
type InputType string

const (
	InputText          InputType = "TEXT"
	InputNumber        InputType = "NUMBER"
	InputDate          InputType = "DATE_INPUT"
	InputDateTime      InputType = "DATE_TIME_INPUT"
	InputMultiSelect   InputType = "MULTI_SELECT"
	InputBooleanSelect InputType = "BOOLEAN_SELECT"
	InputNone          InputType = "NO_INPUT"
)

var (
	textOperators = []domain.Operator{
		domain.OpIncludes, domain.OpNotIncludes, domain.OpIs, domain.OpIsNot,
		domain.OpIsEmpty, domain.OpIsNotEmpty,
	}
	numberOperators = []domain.Operator{
		domain.OpIs, domain.OpIsNot,
		domain.OpGreaterThan, domain.OpGreaterThanOrEqual, domain.OpLessThan, domain.OpLessThanOrEqual,
		domain.OpIsEmpty, domain.OpIsNotEmpty,
	}
	booleanOperators = []domain.Operator{
		domain.OpIs, domain.OpIsNot, domain.OpIsEmpty, domain.OpIsNotEmpty,
	}
	dateOperators = []domain.Operator{
		domain.OpGreaterThan, domain.OpGreaterThanOrEqual, domain.OpLessThan, domain.OpLessThanOrEqual,
		domain.OpIsEmpty, domain.OpIsNotEmpty,
	}
	tagOperators = []domain.Operator{
		domain.OpHasAny, domain.OpNotHasAny, domain.OpHasAll, domain.OpNotHasAll,
		domain.OpIs, domain.OpIsNot, domain.OpIsEmpty, domain.OpIsNotEmpty,
	}
)

// ValidOperators lists the operators a column format supports. The first
// entry is the default when a clause needs repair.
func ValidOperators(format domain.ColumnFormat) []domain.Operator {
	switch format {
	case domain.FormatNumber, domain.FormatCurrency:
		return numberOperators
	case domain.FormatBoolean:
		return booleanOperators
	case domain.FormatDate, domain.FormatDatetime:
		return dateOperators
	case domain.FormatTag:
		return tagOperators
	default:
		return textOperators
	}
}

// IsValidOperator reports whether op is allowed for format.
func IsValidOperator(op domain.Operator, format domain.ColumnFormat) bool {
	return slices.Contains(ValidOperators(format), op)
}

// OperatorInputType returns the operand editor for (op, format).
func OperatorInputType(op domain.Operator, format domain.ColumnFormat) InputType {
	if op.TakesNoValue() {
		return InputNone
	}
	switch format {
	case domain.FormatTag:
		return InputMultiSelect
	case domain.FormatNumber, domain.FormatCurrency:
		return InputNumber
	case domain.FormatBoolean:
		return InputBooleanSelect
	case domain.FormatDate:
		return InputDate
	case domain.FormatDatetime:
		return InputDateTime
	default:
		return InputText
	}
}
