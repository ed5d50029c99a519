package ir

// Opcode is the closed set of IR operations. Every pass switches over it
// exhaustively through the static table below.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	OpParam
	OpAssign
	OpPhi

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpSdiv
	OpMod
	OpSmod
	OpExp
	OpAddmod
	OpMulmod
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpSar
	OpEq
	OpLt
	OpGt
	OpSlt
	OpSgt
	OpIszero
	OpSignextend
	OpByte

	OpCaller
	OpCallvalue
	OpCalldataload
	OpCalldatasize
	OpAddress

	OpAlloca
	OpMload
	OpMstore

	OpSload
	OpSstore

	OpDataload
	OpLog

	OpInvoke
	OpCall

	OpAssert

	OpJmp
	OpJnz
	OpDjmp
	OpRet
	OpReturn
	OpStop
	OpRevert

	numOpcodes
)

// Effect is a bit set describing what an opcode touches besides its operands
type Effect uint16

const (
	EffMemRead Effect = 1 << iota
	EffMemWrite
	EffStorageRead
	EffStorageWrite
	EffLog
	EffCall
	EffEnv
	EffAlloc
	EffAssert
)

// writes that can never be removed or reordered across
const effWrites = EffMemWrite | EffStorageWrite | EffLog | EffCall | EffAssert

type outputKind uint8

const (
	outNone outputKind = iota
	outRequired
	outOptional
)

type immKind uint8

const (
	immNone   immKind = iota
	immLabels         // label operands after the stack operands (jmp, jnz, djmp)
	immSymbol         // one symbol operand before the stack operands (invoke, dataload)
)

type opInfo struct {
	name        string
	minIn       int // stack operands
	maxIn       int // -1 for unbounded
	labels      int // exact label count; -1 means one or more
	imm         immKind
	out         outputKind
	effects     Effect
	terminator  bool
	commutative bool
}

var opTable = [numOpcodes]opInfo{
	OpInvalid: {name: "invalid"},

	OpParam:  {name: "param", out: outRequired},
	OpAssign: {name: "assign", minIn: 1, maxIn: 1, out: outRequired},
	OpPhi:    {name: "phi", out: outRequired},

	OpAdd:        {name: "add", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpSub:        {name: "sub", minIn: 2, maxIn: 2, out: outRequired},
	OpMul:        {name: "mul", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpDiv:        {name: "div", minIn: 2, maxIn: 2, out: outRequired},
	OpSdiv:       {name: "sdiv", minIn: 2, maxIn: 2, out: outRequired},
	OpMod:        {name: "mod", minIn: 2, maxIn: 2, out: outRequired},
	OpSmod:       {name: "smod", minIn: 2, maxIn: 2, out: outRequired},
	OpExp:        {name: "exp", minIn: 2, maxIn: 2, out: outRequired},
	OpAddmod:     {name: "addmod", minIn: 3, maxIn: 3, out: outRequired},
	OpMulmod:     {name: "mulmod", minIn: 3, maxIn: 3, out: outRequired},
	OpAnd:        {name: "and", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpOr:         {name: "or", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpXor:        {name: "xor", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpNot:        {name: "not", minIn: 1, maxIn: 1, out: outRequired},
	OpShl:        {name: "shl", minIn: 2, maxIn: 2, out: outRequired},
	OpShr:        {name: "shr", minIn: 2, maxIn: 2, out: outRequired},
	OpSar:        {name: "sar", minIn: 2, maxIn: 2, out: outRequired},
	OpEq:         {name: "eq", minIn: 2, maxIn: 2, out: outRequired, commutative: true},
	OpLt:         {name: "lt", minIn: 2, maxIn: 2, out: outRequired},
	OpGt:         {name: "gt", minIn: 2, maxIn: 2, out: outRequired},
	OpSlt:        {name: "slt", minIn: 2, maxIn: 2, out: outRequired},
	OpSgt:        {name: "sgt", minIn: 2, maxIn: 2, out: outRequired},
	OpIszero:     {name: "iszero", minIn: 1, maxIn: 1, out: outRequired},
	OpSignextend: {name: "signextend", minIn: 2, maxIn: 2, out: outRequired},
	OpByte:       {name: "byte", minIn: 2, maxIn: 2, out: outRequired},

	OpCaller:       {name: "caller", out: outRequired, effects: EffEnv},
	OpCallvalue:    {name: "callvalue", out: outRequired, effects: EffEnv},
	OpCalldataload: {name: "calldataload", minIn: 1, maxIn: 1, out: outRequired, effects: EffEnv},
	OpCalldatasize: {name: "calldatasize", out: outRequired, effects: EffEnv},
	OpAddress:      {name: "address", out: outRequired, effects: EffEnv},

	OpAlloca: {name: "alloca", minIn: 1, maxIn: 1, out: outRequired, effects: EffAlloc},
	OpMload:  {name: "mload", minIn: 1, maxIn: 1, out: outRequired, effects: EffMemRead},
	OpMstore: {name: "mstore", minIn: 2, maxIn: 2, effects: EffMemWrite},

	OpSload:  {name: "sload", minIn: 1, maxIn: 1, out: outRequired, effects: EffStorageRead},
	OpSstore: {name: "sstore", minIn: 2, maxIn: 2, effects: EffStorageWrite},

	OpDataload: {name: "dataload", imm: immSymbol, out: outRequired},
	OpLog:      {name: "log", minIn: 2, maxIn: 6, effects: EffLog | EffMemRead},

	OpInvoke: {name: "invoke", maxIn: -1, imm: immSymbol, out: outOptional, effects: EffCall | EffMemRead | EffMemWrite | EffStorageRead | EffStorageWrite},
	OpCall:   {name: "call", minIn: 7, maxIn: 7, out: outRequired, effects: EffCall | EffMemRead | EffMemWrite | EffStorageRead | EffStorageWrite},

	OpAssert: {name: "assert", minIn: 1, maxIn: 1, effects: EffAssert},

	OpJmp:    {name: "jmp", labels: 1, imm: immLabels, terminator: true},
	OpJnz:    {name: "jnz", minIn: 1, maxIn: 1, labels: 2, imm: immLabels, terminator: true},
	OpDjmp:   {name: "djmp", minIn: 1, maxIn: 1, labels: -1, imm: immLabels, terminator: true},
	OpRet:    {name: "ret", maxIn: -1, terminator: true},
	OpReturn: {name: "return", minIn: 2, maxIn: 2, effects: EffMemRead, terminator: true},
	OpStop:   {name: "stop", terminator: true},
	OpRevert: {name: "revert", minIn: 2, maxIn: 2, effects: EffMemRead, terminator: true},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := OpParam; op < numOpcodes; op++ {
		m[opTable[op].name] = op
	}
	return m
}()

// LookupOpcode resolves a textual opcode name
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

func (op Opcode) String() string {
	if op >= numOpcodes {
		return "invalid"
	}
	return opTable[op].name
}

func (op Opcode) info() *opInfo {
	if op >= numOpcodes {
		return &opTable[OpInvalid]
	}
	return &opTable[op]
}

func (op Opcode) IsTerminator() bool  { return op.info().terminator }
func (op Opcode) IsCommutative() bool { return op.info().commutative }
func (op Opcode) Effects() Effect     { return op.info().effects }

// HasOutput reports whether the opcode may define a variable
func (op Opcode) HasOutput() bool { return op.info().out != outNone }

// RequiresOutput reports whether the opcode must define a variable
func (op Opcode) RequiresOutput() bool { return op.info().out == outRequired }

// HasSideEffects is true for opcodes that may never be eliminated
func (op Opcode) HasSideEffects() bool {
	return op.info().terminator || op.Effects()&effWrites != 0
}

// Removable reports whether an instruction with this opcode may be deleted
// once its output is unused. Parameters are pinned by the calling convention.
func (op Opcode) Removable() bool {
	return op != OpParam && op != OpInvalid && !op.HasSideEffects()
}

// IsPure is true for opcodes whose result depends only on their operands
func (op Opcode) IsPure() bool {
	switch op {
	case OpParam, OpPhi, OpInvalid:
		return false
	}
	return op.info().effects == 0 && !op.info().terminator
}

// IsHalting is true for terminators that leave the function
func (op Opcode) IsHalting() bool {
	switch op {
	case OpRet, OpReturn, OpStop, OpRevert:
		return true
	}
	return false
}
