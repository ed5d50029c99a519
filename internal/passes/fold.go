package passes

import (
	"github.com/holiman/uint256"
	"stackc/internal/ir"
)

func boolWord(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

// shiftAmount returns the shift as a uint when it is below the word size
func shiftAmount(x *uint256.Int) (uint, bool) {
	if !x.IsUint64() || x.Uint64() >= 256 {
		return 0, false
	}
	return uint(x.Uint64()), true
}

// fold evaluates a pure opcode on constant operands, operand 0 first.
// It reports false for opcodes that are not foldable.
func fold(op ir.Opcode, args []*uint256.Int) (*uint256.Int, bool) {
	out := new(uint256.Int)
	switch op {
	case ir.OpAssign:
		return out.Set(args[0]), true
	case ir.OpNot:
		return out.Not(args[0]), true
	case ir.OpIszero:
		return boolWord(args[0].IsZero()), true
	}
	if len(args) == 3 {
		a, b, m := args[0], args[1], args[2]
		switch op {
		case ir.OpAddmod:
			return out.AddMod(a, b, m), true
		case ir.OpMulmod:
			return out.MulMod(a, b, m), true
		}
		return nil, false
	}
	if len(args) != 2 {
		return nil, false
	}

	a, b := args[0], args[1]
	switch op {
	case ir.OpAdd:
		out.Add(a, b)
	case ir.OpSub:
		out.Sub(a, b)
	case ir.OpMul:
		out.Mul(a, b)
	case ir.OpDiv:
		out.Div(a, b)
	case ir.OpSdiv:
		out.SDiv(a, b)
	case ir.OpMod:
		out.Mod(a, b)
	case ir.OpSmod:
		out.SMod(a, b)
	case ir.OpExp:
		out.Exp(a, b)
	case ir.OpAnd:
		out.And(a, b)
	case ir.OpOr:
		out.Or(a, b)
	case ir.OpXor:
		out.Xor(a, b)
	case ir.OpEq:
		return boolWord(a.Eq(b)), true
	case ir.OpLt:
		return boolWord(a.Lt(b)), true
	case ir.OpGt:
		return boolWord(a.Gt(b)), true
	case ir.OpSlt:
		return boolWord(a.Slt(b)), true
	case ir.OpSgt:
		return boolWord(a.Sgt(b)), true
	case ir.OpShl:
		if n, ok := shiftAmount(a); ok {
			out.Lsh(b, n)
		}
	case ir.OpShr:
		if n, ok := shiftAmount(a); ok {
			out.Rsh(b, n)
		}
	case ir.OpSar:
		if n, ok := shiftAmount(a); ok {
			out.SRsh(b, n)
		} else if b.Sign() < 0 {
			out.Not(out)
		}
	case ir.OpSignextend:
		out.ExtendSign(b, a)
	case ir.OpByte:
		if a.IsUint64() && a.Uint64() < 32 {
			word := b.Bytes32()
			out.SetUint64(uint64(word[a.Uint64()]))
		}
	default:
		return nil, false
	}
	return out, true
}
