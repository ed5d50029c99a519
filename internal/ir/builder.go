package ir

import (
	"stackc/internal/ast"
	"stackc/internal/errors"
)

// Builder lowers one annotated function into non-SSA IR: every source
// binding is a single Var that may be written many times.
type Builder struct {
	fn     *Function
	src    *ast.Function
	module *ast.Module
	vars   map[string]Var
	cur    *BasicBlock
	loops  []loopTargets
}

type loopTargets struct {
	cont BlockID
	brk  BlockID
}

var binaryOps = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"%":  OpMod,
	"&":  OpAnd,
	"|":  OpOr,
	"^":  OpXor,
	"==": OpEq,
	"<":  OpLt,
	">":  OpGt,
}

// negated comparisons lower to the opposite comparison plus iszero
var negatedOps = map[string]Opcode{
	"!=": OpEq,
	"<=": OpGt,
	">=": OpLt,
}

// builtins maps intrinsic names to the opcode they lower to
var builtins = map[string]Opcode{
	"sload":        OpSload,
	"sstore":       OpSstore,
	"mload":        OpMload,
	"mstore":       OpMstore,
	"alloca":       OpAlloca,
	"caller":       OpCaller,
	"callvalue":    OpCallvalue,
	"calldataload": OpCalldataload,
	"calldatasize": OpCalldatasize,
	"address":      OpAddress,
	"log":          OpLog,
	"assert":       OpAssert,
	"exp":          OpExp,
	"addmod":       OpAddmod,
	"mulmod":       OpMulmod,
	"sdiv":         OpSdiv,
	"smod":         OpSmod,
	"slt":          OpSlt,
	"sgt":          OpSgt,
	"sar":          OpSar,
	"signextend":   OpSignextend,
	"byte":         OpByte,
	"call":         OpCall,
	"dataload":     OpDataload,
}

// Build lowers a single function. Calls are not resolved against a module.
func Build(fn *ast.Function) (*Function, error) {
	return buildFunction(nil, fn)
}

// BuildContext lowers every function of a module and its constants
func BuildContext(m *ast.Module) (*Context, error) {
	if m == nil {
		return nil, errors.NewMalformedInput("", ast.Position{}, "nil module")
	}
	if m.FindFunction(m.Entry) == nil {
		return nil, errors.NewMalformedInput("", m.Pos, "module %s has no entry function %q", m.Name, m.Entry)
	}
	ctx := NewContext()
	for _, c := range m.Constants {
		w, err := ParseWord(c.Value)
		if err != nil {
			return nil, errors.NewMalformedInput("", c.Pos, "constant %s: %v", c.Name, err)
		}
		if err := ctx.SetData(c.Name, w); err != nil {
			return nil, err
		}
	}
	for _, src := range m.Functions {
		fn, err := buildFunction(m, src)
		if err != nil {
			return nil, err
		}
		fn.IsEntry = src.Name == m.Entry
		if err := ctx.AddFunction(fn); err != nil {
			return nil, errors.NewMalformedInput(src.Name, src.Pos, "%v", err)
		}
	}
	return ctx, nil
}

func buildFunction(m *ast.Module, src *ast.Function) (*Function, error) {
	if src == nil {
		return nil, errors.NewMalformedInput("", ast.Position{}, "nil function")
	}
	b := &Builder{
		fn:     NewFunction(src.Name),
		src:    src,
		module: m,
		vars:   make(map[string]Var),
	}
	b.fn.Internal = src.Internal
	b.fn.IsEntry = m != nil && m.Entry == src.Name
	b.cur = b.fn.NewBlock(src.Name)

	for _, p := range src.Params {
		if _, dup := b.vars[p]; dup {
			return nil, b.fail(src.Pos, "duplicate parameter %q", p)
		}
		v := b.fn.NewVar(p)
		b.vars[p] = v
		b.emit(OpParam, v)
	}
	if err := b.stmts(src.Body); err != nil {
		return nil, err
	}
	if b.cur != nil {
		b.emitExit()
	}
	b.fn.RebuildCFG()
	return b.fn, nil
}

func (b *Builder) fail(pos ast.Position, format string, args ...any) error {
	return errors.NewMalformedInput(b.src.Name, pos, format, args...)
}

func (b *Builder) emit(op Opcode, out Var, operands ...Operand) *Instruction {
	inst := b.fn.NewInst(op, out, operands...)
	b.cur.Append(inst)
	return inst
}

// terminate ends the current block; statements until the next block are dead
func (b *Builder) terminate(op Opcode, operands ...Operand) {
	b.emit(op, NoVar, operands...)
	b.cur = nil
}

func (b *Builder) emitExit() {
	if b.fn.IsEntry {
		b.terminate(OpStop)
		return
	}
	b.terminate(OpRet)
}

func (b *Builder) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if b.cur == nil {
			// unreachable after break/continue/return/revert
			return nil
		}
		if err := b.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.LetStmt:
		v, ok := b.vars[s.Name]
		if !ok {
			v = b.fn.NewVar(s.Name)
			b.vars[s.Name] = v
		}
		return b.exprInto(v, s.Value)

	case *ast.AssignStmt:
		v, ok := b.vars[s.Target]
		if !ok {
			return b.fail(s.Pos, "assignment to unbound name %q", s.Target)
		}
		return b.exprInto(v, s.Value)

	case *ast.IfStmt:
		return b.ifStmt(s)

	case *ast.WhileStmt:
		return b.whileStmt(s)

	case *ast.BreakStmt:
		if len(b.loops) == 0 {
			return b.fail(s.Pos, "break outside of a loop")
		}
		b.terminate(OpJmp, LabelOp(b.loops[len(b.loops)-1].brk))
		return nil

	case *ast.ContinueStmt:
		if len(b.loops) == 0 {
			return b.fail(s.Pos, "continue outside of a loop")
		}
		b.terminate(OpJmp, LabelOp(b.loops[len(b.loops)-1].cont))
		return nil

	case *ast.ReturnStmt:
		return b.returnStmt(s)

	case *ast.RevertStmt:
		b.terminate(OpRevert, LitOp(0), LitOp(0))
		return nil

	case *ast.ExprStmt:
		_, err := b.expr(s.Expr, false)
		return err

	case nil:
		return b.fail(b.src.Pos, "nil statement")
	}
	return b.fail(s.NodePos(), "unsupported statement %s", s.NodeType())
}

func (b *Builder) returnStmt(s *ast.ReturnStmt) error {
	if s.Value == nil {
		b.emitExit()
		return nil
	}
	val, err := b.expr(s.Value, true)
	if err != nil {
		return err
	}
	if b.fn.IsEntry {
		// the program entry hands its result back through memory
		b.emit(OpMstore, NoVar, LitOp(0), val)
		b.terminate(OpReturn, LitOp(0), LitOp(32))
		return nil
	}
	b.terminate(OpRet, val)
	return nil
}

func (b *Builder) ifStmt(s *ast.IfStmt) error {
	cond, err := b.expr(s.Cond, true)
	if err != nil {
		return err
	}
	from := b.cur
	then := b.fn.NewBlock("then")
	join := b.fn.NewBlock("join")
	elseID := join.ID
	var els *BasicBlock
	if len(s.Else) > 0 {
		els = b.fn.NewBlockAfter(then.ID, "else")
		elseID = els.ID
	}
	b.cur = from
	b.terminate(OpJnz, cond, LabelOp(then.ID), LabelOp(elseID))

	joined := els == nil
	b.cur = then
	if err := b.stmts(s.Then); err != nil {
		return err
	}
	if b.cur != nil {
		b.terminate(OpJmp, LabelOp(join.ID))
		joined = true
	}
	if els != nil {
		b.cur = els
		if err := b.stmts(s.Else); err != nil {
			return err
		}
		if b.cur != nil {
			b.terminate(OpJmp, LabelOp(join.ID))
			joined = true
		}
	}
	if !joined {
		b.fn.RemoveBlock(join.ID)
		b.cur = nil
		return nil
	}
	b.cur = join
	return nil
}

func (b *Builder) whileStmt(s *ast.WhileStmt) error {
	head := b.fn.NewBlock("cond")
	body := b.fn.NewBlock("body")
	exit := b.fn.NewBlock("exit")
	b.terminate(OpJmp, LabelOp(head.ID))

	b.cur = head
	cond, err := b.expr(s.Cond, true)
	if err != nil {
		return err
	}
	b.terminate(OpJnz, cond, LabelOp(body.ID), LabelOp(exit.ID))

	b.loops = append(b.loops, loopTargets{cont: head.ID, brk: exit.ID})
	b.cur = body
	if err := b.stmts(s.Body); err != nil {
		return err
	}
	if b.cur != nil {
		b.terminate(OpJmp, LabelOp(head.ID))
	}
	b.loops = b.loops[:len(b.loops)-1]
	b.cur = exit
	return nil
}

// exprInto evaluates e and writes the result to dst, defining dst directly
// with the producing instruction where possible
func (b *Builder) exprInto(dst Var, e ast.Expr) error {
	op, err := b.exprTo(e, dst)
	if err != nil {
		return err
	}
	if op == void {
		return b.fail(e.NodePos(), "%s does not produce a value", e)
	}
	if op.IsVar() && op.Var == dst {
		return nil
	}
	b.emit(OpAssign, dst, op)
	return nil
}

// void is the result of an expression that produces nothing
var void = Operand{Kind: OperandVar, Var: NoVar}

// expr evaluates e into a fresh temporary; needValue rejects void results
func (b *Builder) expr(e ast.Expr, needValue bool) (Operand, error) {
	dst := NoVar
	if _, isCall := e.(*ast.CallExpr); isCall && needValue {
		dst = b.fn.NewTemp()
	}
	op, err := b.exprTo(e, dst)
	if err != nil {
		return Operand{}, err
	}
	if needValue && op == void {
		return Operand{}, b.fail(e.NodePos(), "%s does not produce a value", e)
	}
	return op, nil
}

// exprTo lowers e. When dst is NoVar the result may be discarded.
func (b *Builder) exprTo(e ast.Expr, dst Var) (Operand, error) {
	switch e := e.(type) {
	case nil:
		return Operand{}, b.fail(b.src.Pos, "nil expression")

	case *ast.LiteralExpr:
		w, err := ParseWord(e.Value)
		if err != nil {
			return Operand{}, b.fail(e.Pos, "%v", err)
		}
		return WordOp(w), nil

	case *ast.IdentExpr:
		v, ok := b.vars[e.Name]
		if !ok {
			return Operand{}, b.fail(e.Pos, "unbound identifier %q", e.Name)
		}
		return VarOp(v), nil

	case *ast.BinaryExpr:
		left, err := b.expr(e.Left, true)
		if err != nil {
			return Operand{}, err
		}
		right, err := b.expr(e.Right, true)
		if err != nil {
			return Operand{}, err
		}
		switch e.Op {
		case "<<":
			return b.value(dst, OpShl, right, left), nil
		case ">>":
			return b.value(dst, OpShr, right, left), nil
		}
		if op, ok := binaryOps[e.Op]; ok {
			return b.value(dst, op, left, right), nil
		}
		if op, ok := negatedOps[e.Op]; ok {
			cmp := b.value(NoVar, op, left, right)
			return b.value(dst, OpIszero, cmp), nil
		}
		return Operand{}, b.fail(e.Pos, "unknown binary operator %q", e.Op)

	case *ast.UnaryExpr:
		x, err := b.expr(e.Operand, true)
		if err != nil {
			return Operand{}, err
		}
		switch e.Op {
		case "!":
			return b.value(dst, OpIszero, x), nil
		case "~":
			return b.value(dst, OpNot, x), nil
		case "-":
			return b.value(dst, OpSub, LitOp(0), x), nil
		}
		return Operand{}, b.fail(e.Pos, "unknown unary operator %q", e.Op)

	case *ast.CallExpr:
		return b.call(e, dst)

	case *ast.BuiltinExpr:
		return b.builtin(e, dst)
	}
	return Operand{}, b.fail(e.NodePos(), "unsupported expression %s", e.NodeType())
}

// value emits a value-producing instruction into dst, or a fresh temporary
func (b *Builder) value(dst Var, op Opcode, operands ...Operand) Operand {
	if dst == NoVar {
		dst = b.fn.NewTemp()
	}
	b.emit(op, dst, operands...)
	return VarOp(dst)
}

func (b *Builder) args(list []ast.Expr) ([]Operand, error) {
	ops := make([]Operand, 0, len(list))
	for _, a := range list {
		op, err := b.expr(a, true)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (b *Builder) call(e *ast.CallExpr, dst Var) (Operand, error) {
	if b.module != nil {
		callee := b.module.FindFunction(e.Callee)
		if callee == nil {
			return Operand{}, b.fail(e.Pos, "call to unknown function %q", e.Callee)
		}
		if len(callee.Params) != len(e.Args) {
			return Operand{}, b.fail(e.Pos, "%s expects %d arguments, got %d", e.Callee, len(callee.Params), len(e.Args))
		}
	}
	args, err := b.args(e.Args)
	if err != nil {
		return Operand{}, err
	}
	operands := append([]Operand{SymOp(e.Callee)}, args...)
	b.emit(OpInvoke, dst, operands...)
	if dst == NoVar {
		return void, nil
	}
	return VarOp(dst), nil
}

func (b *Builder) builtin(e *ast.BuiltinExpr, dst Var) (Operand, error) {
	op, ok := builtins[e.Name]
	if !ok {
		return Operand{}, b.fail(e.Pos, "unknown builtin %q", e.Name)
	}
	if op == OpDataload {
		if len(e.Args) != 1 {
			return Operand{}, b.fail(e.Pos, "dataload expects one constant name")
		}
		name, ok := e.Args[0].(*ast.IdentExpr)
		if !ok {
			return Operand{}, b.fail(e.Pos, "dataload expects a constant name")
		}
		if b.module != nil && b.module.FindConstant(name.Name) == nil {
			return Operand{}, b.fail(name.Pos, "unknown constant %q", name.Name)
		}
		return b.value(dst, OpDataload, SymOp(name.Name)), nil
	}

	info := op.info()
	if len(e.Args) < info.minIn || (info.maxIn >= 0 && len(e.Args) > info.maxIn) {
		return Operand{}, b.fail(e.Pos, "%s: wrong number of arguments (%d)", e.Name, len(e.Args))
	}
	args, err := b.args(e.Args)
	if err != nil {
		return Operand{}, err
	}
	if !op.HasOutput() {
		if dst != NoVar {
			return Operand{}, b.fail(e.Pos, "%s does not produce a value", e.Name)
		}
		b.emit(op, NoVar, args...)
		return void, nil
	}
	return b.value(dst, op, args...), nil
}
