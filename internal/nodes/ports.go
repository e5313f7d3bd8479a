package nodes

import (
	"strconv"
	"strings"
)

const operandPrefix = "pol"

// OperandPort names the i-th (1-based) policy operand port.
func OperandPort(i int) string {
	return operandPrefix + strconv.Itoa(i)
}

// ParseOperandPort returns the index of an operand port name.
func ParseOperandPort(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, operandPrefix)
	if !ok || rest == "" || rest[0] == '0' {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 1 {
		return 0, false
	}
	return i, true
}
