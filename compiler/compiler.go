// Package compiler implements loxvm's single-pass Pratt-parsing compiler:
// source text goes straight to bytecode with no intermediate AST, following
// _examples/original_source/clox/src/compiler.c's architecture exactly
// (grammar, precedence table, per-function compiler records, upvalue
// resolution, break/continue patch lists, and the debugger's compile-eval
// entry point). compiler never imports vm; the Host interface supplies the
// handful of heap operations compilation needs.
package compiler

import (
	"strconv"

	"github.com/loxlang/loxvm/chunk"
	"github.com/loxlang/loxvm/lexer"
	"github.com/loxlang/loxvm/value"
)

// Compiler parses one source buffer into bytecode. A Compiler value is not
// reused across calls to Compile/CompileEval.
type Compiler struct {
	scanner *lexer.Scanner
	host    Host
	module  *value.Module

	current, previous lexer.Token
	hadError          bool
	panicMode         bool
	errors            []CompileError

	fc    *FuncCompiler
	class *ClassCompiler
}

// Compile parses the top level of source as fnType (normally TypeScript) and
// returns the resulting function, or nil plus the accumulated errors on
// failure (spec §4.1/§4.2).
func Compile(source string, module *value.Module, host Host, fnType FunctionType) (*value.ObjFunction, []CompileError) {
	c := &Compiler{scanner: lexer.New(source), host: host, module: module}
	c.initFuncCompiler(fnType, lexer.Token{})

	c.advance()
	for !c.match(lexer.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// CompileEval compiles a single expression against the locals/upvalues
// visible in parentChunk's original compiler record, for the debugger's
// `print <expr>` command (spec §7's compile-eval mechanism). parentChunk
// must have been produced by Compile (its Compiler field holds the
// *FuncCompiler that built it).
func CompileEval(source string, parentChunk *value.Chunk, host Host) (*value.ObjFunction, []CompileError) {
	parentFC, _ := parentChunk.Compiler.(*FuncCompiler)
	c := &Compiler{scanner: lexer.New(source), host: host, module: parentChunk.Module}
	c.fc = parentFC // enclosing scope for resolveUpvalue, per compileEvalExpr
	c.initFuncCompiler(TypeEval, lexer.Token{})

	c.advance()
	for !c.match(lexer.EOF) {
		c.expression()
	}
	chunk.WriteOp(c.fc.chunk(), chunk.OpEvalExit, c.previous.Line)

	fn := c.fc.Function

	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// ---- parser plumbing ----

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.Next()
		if c.current.Type != lexer.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.current.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	where := ""
	switch tok.Type {
	case lexer.EOF:
		where = " at end"
	case lexer.Error:
	default:
		where = " at '" + tok.Lexeme + "'"
	}
	c.errors = append(c.errors, CompileError{Line: tok.Line, Where: where, Message: message})
	c.hadError = true
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }

// ---- bytecode emission ----

func (c *Compiler) currentChunk() *value.Chunk { return c.fc.chunk() }

func (c *Compiler) emitByte(b byte) {
	chunk.Write(c.currentChunk(), b, c.previous.Line)
}

func (c *Compiler) emitOp(op chunk.OpCode) { c.emitByte(byte(op)) }

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *Compiler) emitOpByte(op chunk.OpCode, b byte) { c.emitBytes(byte(op), b) }

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

func (c *Compiler) emitJump(instruction chunk.OpCode) int {
	c.emitOp(instruction)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) emitNilReturn() {
	if c.fc.Type == TypeInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

func (c *Compiler) patchJumpAt(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := chunk.AddConstant(c.currentChunk(), v)
	if idx > 0xFF {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// ---- identifiers, locals, upvalues ----

func (c *Compiler) identifierConstant(name lexer.Token) byte {
	return c.makeConstant(value.Obj_(c.host.Intern(name.Lexeme)))
}

func identifiersEqual(a, b lexer.Token) bool { return a.Lexeme == b.Lexeme }

func (c *Compiler) resolveLocal(fc *FuncCompiler, name lexer.Token) int {
	if fc == nil {
		return -1
	}
	for i := len(fc.Locals) - 1; i >= 0; i-- {
		local := fc.Locals[i]
		if identifiersEqual(name, local.Name) {
			if local.Depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(fc *FuncCompiler, index byte, isLocal bool) int {
	for i, up := range fc.Upvalues {
		if up.Index == index && up.IsLocal == isLocal {
			return i
		}
	}
	if len(fc.Upvalues) == 0xFF {
		c.error("Too many closure variables in function.")
		return 0
	}
	fc.Upvalues = append(fc.Upvalues, UpvalueDesc{Index: index, IsLocal: isLocal})
	fc.Function.UpvalueCount = len(fc.Upvalues)
	return len(fc.Upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fc *FuncCompiler, name lexer.Token) int {
	if fc == nil || fc.Enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fc.Enclosing, name); local != -1 {
		fc.Enclosing.Locals[local].IsCaptured = true
		return c.addUpvalue(fc, byte(local), true)
	}
	if up := c.resolveUpvalue(fc.Enclosing, name); up != -1 {
		return c.addUpvalue(fc, byte(up), false)
	}
	return -1
}

func (c *Compiler) addLocal(name lexer.Token, isReference bool) {
	if len(c.fc.Locals) == 0xFF {
		c.error("Too many local variables in function.")
		return
	}
	c.fc.Locals = append(c.fc.Locals, Local{Name: name, Depth: -1, IsReference: isReference})
}

// variableAccessOp resolves name to a get/set opcode pair and its operand
// index, preferring locals, then upvalues, then VM-bootstrapped globals
// (spec §9 Open Question (c): declared `var`/`fun`/`class` names always
// compile as locals, even at script scope; OP_GET_GLOBAL only ever resolves
// natives the VM seeded directly into its globals table).
func (c *Compiler) variableAccessOp(name lexer.Token) (getOp, setOp chunk.OpCode, arg int, ok bool) {
	if idx := c.resolveLocal(c.fc, name); idx != -1 {
		if c.fc.Locals[idx].IsReference {
			return chunk.OpGetReference, chunk.OpSetReference, idx, true
		}
		return chunk.OpGetLocal, chunk.OpSetLocal, idx, true
	}
	if idx := c.resolveUpvalue(c.fc, name); idx != -1 {
		return chunk.OpGetUpvalue, chunk.OpSetUpvalue, idx, true
	}
	ident := c.host.Intern(name.Lexeme)
	if c.host.HasGlobal(ident) {
		return chunk.OpGetGlobal, chunk.OpSetGlobal, int(c.identifierConstant(name)), true
	}
	return 0, 0, -1, false
}

func (c *Compiler) declareVariable(isReference bool) {
	name := c.previous
	for i := len(c.fc.Locals) - 1; i >= 0; i-- {
		local := c.fc.Locals[i]
		if local.Depth != -1 && local.Depth < c.fc.ScopeDepth {
			break
		}
		if identifiersEqual(name, local.Name) {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name, isReference)
}

func (c *Compiler) parseVariable(errMsg string, isReference bool) byte {
	c.consume(lexer.Identifier, errMsg)
	c.declareVariable(isReference)
	return c.identifierConstant(c.previous)
}

func (c *Compiler) markInitialized() {
	c.fc.Locals[len(c.fc.Locals)-1].Depth = c.fc.ScopeDepth
}

// defineVariable always finishes the local the preceding parseVariable
// reserved; no OP_DEFINE_GLOBAL is ever emitted for source-level
// declarations (see variableAccessOp's doc comment).
func (c *Compiler) defineVariable(global byte) {
	_ = global
	c.markInitialized()
}

func (c *Compiler) argumentList() byte {
	var argCount int
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if argCount == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(argCount)
}

// ---- scopes ----

func (c *Compiler) beginScope() { c.fc.ScopeDepth++ }

func (c *Compiler) endScope() {
	c.fc.ScopeDepth--
	for len(c.fc.Locals) > 0 && c.fc.Locals[len(c.fc.Locals)-1].Depth > c.fc.ScopeDepth {
		if c.fc.Locals[len(c.fc.Locals)-1].IsCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.fc.Locals = c.fc.Locals[:len(c.fc.Locals)-1]
	}
}

// ---- expressions ----

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}
}

// mutate reports the arithmetic opcode implied by a compound-assignment
// token at the current position, consuming it if present and allowed.
func (c *Compiler) mutate(canAssign bool) (chunk.OpCode, bool) {
	if !canAssign {
		return 0, false
	}
	switch c.current.Type {
	case lexer.PlusEqual:
		c.advance()
		return chunk.OpAdd, true
	case lexer.MinusEqual:
		c.advance()
		return chunk.OpSubtract, true
	case lexer.StarEqual:
		c.advance()
		return chunk.OpMultiply, true
	case lexer.SlashEqual:
		c.advance()
		return chunk.OpDivide, true
	}
	return 0, false
}

func (c *Compiler) namedVariable(name lexer.Token, canAssign bool) {
	getOp, setOp, arg, ok := c.variableAccessOp(name)
	if !ok {
		c.errorAtCurrent("Undefined variable '" + name.Lexeme + "'.")
		return
	}
	if op, did := c.mutate(canAssign); did {
		c.emitOpByte(getOp, byte(arg))
		c.expression()
		c.emitOp(op)
		c.emitOpByte(setOp, byte(arg))
	} else if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) variable(canAssign bool) { c.namedVariable(c.previous, canAssign) }

func syntheticToken(text string) lexer.Token {
	return lexer.Token{Type: lexer.Identifier, Lexeme: text}
}

func (c *Compiler) number(canAssign bool) {
	_ = canAssign
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(value.Number(n))
}

func (c *Compiler) string_(canAssign bool) {
	_ = canAssign
	c.emitConstant(value.Obj_(c.host.Intern(c.previous.Lexeme)))
}

func (c *Compiler) literal(canAssign bool) {
	_ = canAssign
	switch c.previous.Type {
	case lexer.False:
		c.emitOp(chunk.OpFalse)
	case lexer.Nil:
		c.emitOp(chunk.OpNil)
	case lexer.True:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	_ = canAssign
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	_ = canAssign
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case lexer.Bang:
		c.emitOp(chunk.OpNot)
	case lexer.Minus:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	_ = canAssign
	opType := c.previous.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.BangEqual:
		c.emitBytes(byte(chunk.OpEqual), byte(chunk.OpNot))
	case lexer.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case lexer.Greater:
		c.emitOp(chunk.OpGreater)
	case lexer.GreaterEqual:
		c.emitBytes(byte(chunk.OpLess), byte(chunk.OpNot))
	case lexer.Less:
		c.emitOp(chunk.OpLess)
	case lexer.LessEqual:
		c.emitBytes(byte(chunk.OpGreater), byte(chunk.OpNot))
	case lexer.Plus:
		c.emitOp(chunk.OpAdd)
	case lexer.Minus:
		c.emitOp(chunk.OpSubtract)
	case lexer.Star:
		c.emitOp(chunk.OpMultiply)
	case lexer.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and_(canAssign bool) {
	_ = canAssign
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJumpAt(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	_ = canAssign
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJumpAt(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJumpAt(endJump)
}

func (c *Compiler) call(canAssign bool) {
	_ = canAssign
	argCount := c.argumentList()
	c.emitOpByte(chunk.OpCall, argCount)
}

// subscript implements `expr[key]`. Plain get/set/call-through-indexer all
// work; compound assignment (`expr[key] += v`) still parses but compiles to
// a guaranteed runtime error (spec §9 Open Question (b)).
func (c *Compiler) subscript(canAssign bool) {
	c.expression()
	c.consume(lexer.RightBracket, "Expect ']'.")

	if _, did := c.mutate(canAssign); did {
		c.expression()
		c.emitOp(chunk.OpIndexerCompoundUnsupported)
	} else if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOp(chunk.OpSetIndexer)
	} else if c.match(lexer.LeftParen) {
		c.emitOp(chunk.OpGetIndexer)
		argCount := c.argumentList()
		c.emitOpByte(chunk.OpCall, argCount)
	} else {
		c.emitOp(chunk.OpGetIndexer)
	}
}

func (c *Compiler) arrayDecl(canAssign bool) {
	_ = canAssign
	c.emitOp(chunk.OpDefineArray)
	for c.current.Type != lexer.RightBracket {
		c.expression()
		if c.current.Type != lexer.RightBracket {
			c.consume(lexer.Comma, "Expect ',' between array items.")
		}
		c.emitOp(chunk.OpArrayPush)
	}
	c.consume(lexer.RightBracket, "Expect ']' after array declaration.")
}

func (c *Compiler) dict(canAssign bool) {
	_ = canAssign
	c.emitOp(chunk.OpDefineDict)
	for c.current.Type == lexer.Identifier {
		c.consume(lexer.Identifier, "Expect key.")
		constant := c.identifierConstant(c.previous)
		c.consume(lexer.Colon, "Expect ':' after dict key.")
		c.expression()
		if c.current.Type != lexer.RightBrace {
			c.consume(lexer.Comma, "Expect ',' between dict fields.")
		}
		c.emitOpByte(chunk.OpDictField, constant)
	}
	c.consume(lexer.RightBrace, "Expect '}' after dict declaration.")
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.previous)

	if op, did := c.mutate(canAssign); did {
		c.emitOpByte(chunk.OpGetProperty, name)
		c.expression()
		c.emitOp(op)
		c.emitOpByte(chunk.OpSetProperty, name)
	} else if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOpByte(chunk.OpSetProperty, name)
	} else if c.match(lexer.LeftParen) {
		argCount := c.argumentList()
		c.emitOpByte(chunk.OpInvoke, name)
		c.emitByte(argCount)
	} else {
		c.emitOpByte(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) break_(canAssign bool) {
	_ = canAssign
	if jmp := c.loopGotoJump("Can't use break outside of loop."); jmp != nil {
		jmp.next = c.fc.loop.patchBreak
		c.fc.loop.patchBreak = jmp
	}
}

func (c *Compiler) continue_(canAssign bool) {
	_ = canAssign
	if jmp := c.loopGotoJump("Can't use continue outside of loop."); jmp != nil {
		jmp.next = c.fc.loop.patchContinue
		c.fc.loop.patchContinue = jmp
	}
}

func (c *Compiler) loopGotoJump(errMsg string) *patchJump {
	if c.fc.loop == nil {
		c.errorAtCurrent(errMsg)
		return nil
	}
	return &patchJump{pos: c.emitJump(chunk.OpJump)}
}

func (c *Compiler) super_(canAssign bool) {
	_ = canAssign
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.HasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.Dot, "Expect '.' after 'super'.")
	c.consume(lexer.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.previous)

	c.namedVariable(syntheticToken("this"), false)
	if c.match(lexer.LeftParen) {
		argCount := c.argumentList()
		c.namedVariable(syntheticToken("super"), false)
		c.emitOpByte(chunk.OpSuperInvoke, name)
		c.emitByte(argCount)
	} else {
		c.namedVariable(syntheticToken("super"), false)
		c.emitOpByte(chunk.OpGetSuper, name)
	}
}

func (c *Compiler) this_(canAssign bool) {
	_ = canAssign
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

// ---- statements ----

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) functionUpvalues(fc *FuncCompiler, fn *value.ObjFunction) {
	c.emitOpByte(chunk.OpClosure, c.makeConstant(value.Obj_(fn)))
	for _, up := range fc.Upvalues {
		if up.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(up.Index)
	}
}

func (c *Compiler) function(fnType FunctionType, nameTok lexer.Token) {
	c.initFuncCompiler(fnType, nameTok)
	c.beginScope()

	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			c.fc.Function.Arity++
			if c.fc.Function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.", false)
			c.defineVariable(constant)
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	c.consume(lexer.LeftBrace, "Expect '{' before function body.")
	c.block()

	compiled := c.fc
	fn := c.endCompiler()
	c.functionUpvalues(compiled, fn)
}

func (c *Compiler) method() {
	c.consume(lexer.Identifier, "Expect method name.")
	nameTok := c.previous
	constant := c.identifierConstant(nameTok)

	fnType := TypeMethod
	if nameTok.Lexeme == "init" {
		fnType = TypeInitializer
	}
	c.function(fnType, nameTok)
	c.emitOpByte(chunk.OpMethod, constant)
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.Identifier, "Expect class name.")
	className := c.previous
	nameConstant := c.identifierConstant(c.previous)
	c.declareVariable(false)

	c.emitOpByte(chunk.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cc := &ClassCompiler{Enclosing: c.class}
	c.class = cc

	if c.match(lexer.Less) {
		c.consume(lexer.Identifier, "Expect superclass name.")
		c.variable(false)
		if identifiersEqual(className, c.previous) {
			c.error("A class can't inherit from itself.")
		}
		c.beginScope()
		c.addLocal(syntheticToken("super"), false)
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cc.HasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.LeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.method()
	}
	c.consume(lexer.RightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop)

	if cc.HasSuperclass {
		c.endScope()
	}
	c.class = cc.Enclosing
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.", false)
	nameTok := c.previous
	c.markInitialized()
	c.function(TypeFunction, nameTok)
	c.defineVariable(global)
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.", false)

	if c.match(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}

	if c.check(lexer.Comma) {
		c.advance()
		c.defineVariable(global)
		c.varDeclaration()
	} else {
		c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")
		c.defineVariable(global)
	}
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

// patchLoopGotoJumps patches a list of break/continue jumps (recorded as
// forward OP_JUMPs) to land at pos, rewriting to a backward OP_LOOP if pos
// precedes the jump (continue targets the loop header, which is behind the
// jump site).
func (c *Compiler) patchLoopGotoJumps(head *patchJump, pos int) {
	code := c.currentChunk().Code
	for jmp := head; jmp != nil; jmp = jmp.next {
		var jump int
		if pos < jmp.pos {
			code[jmp.pos-1] = byte(chunk.OpLoop)
			jump = jmp.pos - pos + 2
		} else {
			jump = pos - jmp.pos - 2
		}
		if jump > 0xFFFF {
			c.error("Too much code to jump over.")
		}
		code[jmp.pos] = byte(jump >> 8)
		code[jmp.pos+1] = byte(jump)
	}
}

func (c *Compiler) forStatement() {
	c.beginScope()
	loop := &loopCompiler{enclosing: c.fc.loop}
	c.fc.loop = loop

	c.consume(lexer.LeftParen, "Expect '(' after 'for'.")
	if c.match(lexer.Semicolon) {
		// no initializer
	} else if c.match(lexer.Var) {
		c.varDeclaration()
	} else {
		c.expressionStatement()
	}

	loopStart := len(c.currentChunk().Code)
	exitJump := -1
	if !c.match(lexer.Semicolon) {
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(lexer.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := len(c.currentChunk().Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJumpAt(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJumpAt(exitJump)
		c.emitOp(chunk.OpPop)
	}

	c.patchLoopGotoJumps(loop.patchContinue, loopStart)
	c.patchLoopGotoJumps(loop.patchBreak, len(c.currentChunk().Code))

	c.endScope()
	c.fc.loop = loop.enclosing
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJumpAt(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.Else) {
		c.statement()
	}
	c.patchJumpAt(elseJump)
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) returnStatement() {
	if c.fc.Type == TypeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.Semicolon) {
		c.emitNilReturn()
		return
	}
	if c.fc.Type == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) whileStatement() {
	loop := &loopCompiler{enclosing: c.fc.loop}
	c.fc.loop = loop

	loopStart := len(c.currentChunk().Code)
	c.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	c.emitLoop(loopStart)
	c.patchJumpAt(endJump)
	c.patchLoopGotoJumps(loop.patchContinue, loopStart)
	c.patchLoopGotoJumps(loop.patchBreak, len(c.currentChunk().Code))
	c.emitOp(chunk.OpPop)

	c.fc.loop = loop.enclosing
}

// importParam parses one `name` or `name as alias` entry in an import list,
// declaring alias as a reference-backed local (spec §9 Open Question (c)).
func (c *Compiler) importParam() {
	nameInExport := c.identifierConstant(c.current)

	if c.scanner.Peek(0).Type == lexer.As {
		c.advance()
		c.advance()
	}
	identTok := c.current
	alias := c.parseVariable("Expect identifier in import statement.", true)
	c.markInitialized()

	_, _, varIdx, _ := c.variableAccessOp(identTok)

	c.emitOpByte(chunk.OpImportVariable, nameInExport)
	c.emitBytes(alias, byte(varIdx))
}

func (c *Compiler) importStatement() {
	c.consume(lexer.LeftBrace, "Expect '{' after 'import'.")
	codeChunk := c.currentChunk()
	c.emitOp(chunk.OpImportModule)
	c.emitByte(0xFF)
	stringPos := len(codeChunk.Code) - 1

	for {
		c.importParam()
		if !c.check(lexer.Comma) {
			break
		}
		c.advance()
	}

	c.consume(lexer.RightBrace, "Expect '}' in import statement.")
	c.consume(lexer.From, "Expect 'from' after import params.")
	c.consume(lexer.String, "Expect module path string.")
	pathIdx := c.makeConstant(value.Obj_(c.host.Intern(c.previous.Lexeme)))
	codeChunk.Code[stringPos] = pathIdx
	c.consume(lexer.Semicolon, "Expect ';' after path.")
}

// exportIdentifier emits OP_EXPORT for an already-declared name and records
// an ObjReference in the module's export table (spec §3's two-phase
// export/import construction).
func (c *Compiler) exportIdentifier(identTok lexer.Token) {
	ident := c.host.Intern(identTok.Lexeme)
	getOp, _, varIdx, ok := c.variableAccessOp(identTok)
	if !ok {
		c.errorAtCurrent("Identifier '" + ident.Chars + "' not found.")
		return
	}
	if getOp == chunk.OpGetGlobal {
		c.errorAtCurrent("Can't export '" + ident.Chars + "' because it's a global.")
		return
	}

	identIdx := c.identifierConstant(identTok)
	upIdx := c.addUpvalue(c.fc, byte(varIdx), true)
	ref := c.host.NewReference(ident, c.module, upIdx, c.currentChunk())

	c.emitOpByte(chunk.OpExport, identIdx)
	c.emitBytes(byte(varIdx), byte(upIdx))
	c.module.Exports.Set(ident, value.Obj_(ref))
}

func (c *Compiler) exportDeclaration() {
	c.advance()
	identTok := c.current
	switch c.previous.Type {
	case lexer.LeftBrace:
		for c.check(lexer.Identifier) {
			c.exportIdentifier(c.current)
			c.advance()
			if !c.match(lexer.Comma) {
				break
			}
		}
		c.consume(lexer.RightBrace, "Expect '}' after export list.")
		c.consume(lexer.Semicolon, "Expect ';' after export list.")
	case lexer.Fun:
		c.funDeclaration()
		c.exportIdentifier(identTok)
	case lexer.Class:
		c.classDeclaration()
		c.exportIdentifier(identTok)
	case lexer.Var:
		c.varDeclaration()
		c.exportIdentifier(identTok)
	case lexer.Identifier:
		c.exportIdentifier(c.previous)
		c.consume(lexer.Semicolon, "Expect ';' after export.")
	default:
		c.errorAt(c.previous, "Expect valid export.")
	}
}

func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.EOF {
		if c.previous.Type == lexer.Semicolon {
			return
		}
		switch c.current.Type {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If,
			lexer.While, lexer.Print, lexer.Return, lexer.Export, lexer.Import:
			return
		}
		c.advance()
	}
}

func (c *Compiler) declaration() {
	switch c.current.Type {
	case lexer.Class:
		c.advance()
		c.classDeclaration()
	case lexer.Fun:
		c.advance()
		c.funDeclaration()
	case lexer.Var:
		c.advance()
		c.varDeclaration()
	case lexer.Export:
		c.advance()
		c.exportDeclaration()
	default:
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch c.current.Type {
	case lexer.Print:
		c.advance()
		c.printStatement()
	case lexer.For:
		c.advance()
		c.forStatement()
	case lexer.If:
		c.advance()
		c.ifStatement()
	case lexer.Return:
		c.advance()
		c.returnStatement()
	case lexer.While:
		c.advance()
		c.whileStatement()
	case lexer.Import:
		c.advance()
		c.importStatement()
	default:
		if c.match(lexer.LeftBrace) {
			c.beginScope()
			c.block()
			c.endScope()
		} else {
			c.expressionStatement()
		}
	}
}

// ---- compiler record lifecycle ----

func (c *Compiler) initFuncCompiler(fnType FunctionType, nameTok lexer.Token) {
	fn := c.host.NewFunction()
	fn.Chunk.Module = c.module

	fc := &FuncCompiler{Enclosing: c.fc, Function: fn, Type: fnType}
	fn.Chunk.Compiler = fc
	c.fc = fc

	if fnType != TypeScript && fnType != TypeEval {
		fn.Name = c.host.Intern(nameTok.Lexeme)
	}

	if fnType != TypeEval {
		recv := lexer.Token{Type: lexer.This, Lexeme: ""}
		if fnType != TypeFunction {
			recv.Lexeme = "this"
		}
		c.fc.Locals = append(c.fc.Locals, Local{Name: recv, Depth: 0})
	}
}

func (c *Compiler) endCompiler() *value.ObjFunction {
	code := c.currentChunk().Code
	if len(code) == 0 || chunk.OpCode(code[len(code)-1]) != chunk.OpReturn {
		c.emitNilReturn()
	}
	fn := c.fc.Function
	if c.fc.Type != TypeScript {
		c.fc = c.fc.Enclosing
	}
	return fn
}
