package system

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrRPN          = errors.New("rpn: malformed expression")
	ErrDivideByZero = errors.New("rpn: division by zero")
)

// EvalRPN evaluates a reverse Polish expression such as "3 4 + 2 *".
// Binary operators: + - * / % ^. Unary: neg abs sqrt.
func EvalRPN(expr string) (float64, error) {
	stack := make([]float64, 0, 8)
	pop := func() float64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	for _, tok := range strings.Fields(expr) {
		switch tok {
		case "+", "-", "*", "/", "%", "^":
			if len(stack) < 2 {
				return 0, fmt.Errorf("%w: %q needs two operands", ErrRPN, tok)
			}
			b, a := pop(), pop()
			var v float64
			switch tok {
			case "+":
				v = a + b
			case "-":
				v = a - b
			case "*":
				v = a * b
			case "/":
				if b == 0 {
					return 0, ErrDivideByZero
				}
				v = a / b
			case "%":
				if b == 0 {
					return 0, ErrDivideByZero
				}
				v = math.Mod(a, b)
			case "^":
				v = math.Pow(a, b)
			}
			stack = append(stack, v)
		case "neg", "abs", "sqrt":
			if len(stack) < 1 {
				return 0, fmt.Errorf("%w: %q needs an operand", ErrRPN, tok)
			}
			a := pop()
			switch tok {
			case "neg":
				a = -a
			case "abs":
				a = math.Abs(a)
			case "sqrt":
				a = math.Sqrt(a)
			}
			stack = append(stack, a)
		default:
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad token %q", ErrRPN, tok)
			}
			stack = append(stack, v)
		}
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("%w: %d values left on the stack", ErrRPN, len(stack))
	}
	return stack[0], nil
}
