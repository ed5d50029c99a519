package ast

// Module is one compilation unit handed over by the frontend: every
// function of a contract with names bound and types resolved.
type Module struct {
	Pos       Position
	Name      string
	Entry     string // name of the program entry function
	Constants []*Constant
	Functions []*Function
}

// Constant is a named compile-time word shared by every function
// Example: "const FEE = 3"
type Constant struct {
	Pos   Position
	Name  string
	Value string
}

// Function is a single source-level function.
// Example: "fn f(x) { if x > 0 { y = 1 } else { y = 2 } return y }"
type Function struct {
	Pos      Position
	Name     string
	Params   []string
	Body     []Stmt
	Internal bool // only reachable through calls from other functions
}

// FindFunction returns the function with the given name, or nil
func (m *Module) FindFunction(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// FindConstant returns the constant with the given name, or nil
func (m *Module) FindConstant(name string) *Constant {
	for _, c := range m.Constants {
		if c.Name == name {
			return c
		}
	}
	return nil
}
