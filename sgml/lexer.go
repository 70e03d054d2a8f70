package sgml

// ============================================================================
// 10. THE LEXER STATE MACHINE
// ============================================================================
// One byte in, zero or more events out. The state enum encodes the whole
// grammar: text states, markup recognition, references, marked-section
// recovery and UTF-8 assembly. Transitions are decided by the byte's function
// binding or class, never by lookahead, which is what lets the parser be fed
// a byte at a time from any source.

type lexState int

const (
	statePCDATA lexState = iota
	stateCDATA            // declared CDATA content
	stateRCDATA           // declared RCDATA content
	stateMSCDATA          // inside <![CDATA[ ... ]]>
	stateECDATA1          // seen < in declared content
	stateECDATA2          // seen </ in declared content
	stateEMSCDATA1        // seen ] in a CDATA marked section
	stateEMSCDATA2        // seen ]] in a CDATA marked section
	stateEMSC1            // seen ] in an ordinary marked section
	stateEMSC2            // seen ]]
	stateDECL0            // seen <
	stateMDECL0           // seen <!
	stateDECL             // inside <...>
	stateSTRING           // inside a quoted literal of a declaration
	stateCMTO             // seen <!-
	stateCMT              // inside <!-- ... -->
	stateCMTE0            // seen - inside a comment
	stateCMTE1            // seen -- inside a comment
	stateDECLCMT0         // seen - inside a declaration
	stateDECLCMT          // inside --...-- of a declaration
	stateDECLCMTE0        // seen - inside a declaration comment
	stateGROUP            // [...] inside a declaration
	statePI               // inside <? ... >
	statePI2              // seen ? inside a PI
	statePENT             // %name; in DTD mode
	stateENT0             // seen &
	stateENT              // &name
	stateENTCR            // seen &name followed by CR
	stateUTF8             // assembling a UTF-8 sequence
)

// markState is the effective mode of the marked-section stack.
type markState int

const (
	markInclude markState = iota
	markIgnore
	markCDATA
	markRCDATA
)

// markedSection is a frame of the <![KEYWORD[ stack.
type markedSection struct {
	keyword *Symbol
	kind    markState
	parent  *markedSection
}

// dataMode separates instance parsing from DTD parsing.
type dataMode int

const (
	modeDTD dataMode = iota
	modeData
)

// EventClass tags the callback currently firing: explicit markup, synthesised
// omitted tags, a NET shorttag close, or a shortref replay.
type EventClass int

const (
	EventExplicit EventClass = iota
	EventOmitted
	EventShortTag
	EventShortref
)

func (p *Parser) withClass(c EventClass, g func()) {
	old := p.eventClass
	p.eventClass = c
	g()
	p.eventClass = old
}

// processMarkedSection inspects the buffered "![..." prefix: a keyword
// followed by [ pushes a marked-section frame; <!DOCTYPE-style bodies switch
// to GROUP scanning instead.
func (p *Parser) processMarkedSection() {
	decl := p.buffer

	if s, ok := p.seeFunc(decl, cfMdo2); ok { // !
		if s, ok2 := p.seeFunc(s, cfDso); ok2 { // [
			if buf, ok3 := p.expandPEntities(s); ok3 {
				if rest, kwd, ok4 := p.takeName(buf); ok4 {
					if _, ok5 := p.seeFunc(rest, cfDso); ok5 { // [
						m := &markedSection{keyword: kwd, parent: p.marked}
						p.marked = m

						switch fold(kwd.Name, false) {
						case "ignore":
							m.kind = markIgnore
						case "cdata":
							m.kind = markCDATA
						case "rcdata":
							m.kind = markRCDATA
						default: // INCLUDE, TEMP and anything else
							m.kind = markInclude
						}

						p.buffer = p.buffer[:0]
						if m.kind == markCDATA {
							p.state = stateMSCDATA
						} else {
							p.state = statePCDATA
						}
						if p.markState != markIgnore { // nested IGNORE wins
							p.markState = m.kind
						}
						return
					}
				}
			}
		}
		if _, ok2 := p.seeFunc(s, cfDso); !ok2 {
			p.state = stateGROUP
			p.groupLevel = 1
		}
	}
}

func (p *Parser) popMarkedSection() {
	if m := p.marked; m != nil {
		p.marked = m.parent
		if p.marked != nil {
			p.markState = p.marked.kind
		} else {
			p.markState = markInclude
		}
	}
}

// processUTF8 arms the UTF-8 assembler after a lead byte.
func (p *Parser) processUTF8(chr byte) {
	bytes := 1
	mask := byte(0x20)
	for chr&mask != 0 {
		bytes++
		mask >>= 1
	}
	p.utf8SavedState = p.state
	p.state = stateUTF8
	p.utf8Char = int(chr) & int(mask-1)
	p.utf8Left = bytes
}

// recoverParser re-emits buffered bytes as data after illegal markup.
func (p *Parser) recoverParser() {
	dtd := p.dtd
	p.addCData(dtd.charMap.m[p.saved])
	for _, c := range p.buffer {
		p.addCData(dtd.charMap.m[c])
	}
	p.state = statePCDATA
}

// setStart records where the construct being scanned began.
func (p *Parser) setStart(line, lpos int) {
	p.startLoc = p.location.snapshot()
	p.startLoc.Line = line
	p.startLoc.LinePos = lpos
	p.startLoc.CharPos = p.location.CharPos - 1
}

// putByte drives the state machine by a single byte.
func (p *Parser) putByte(chr byte) {
	dtd := p.dtd
	f := dtd.charFunc
	line := p.location.Line
	lpos := p.location.LinePos

	if chr == '\n' {
		p.location.Line++
		p.location.LinePos = 0
	} else if chr == '\r' {
		p.location.LinePos = 0
	} else {
		p.location.LinePos++
	}
	p.location.CharPos++

reprocess:
	switch p.state {
	case statePCDATA:
		if f.is(cfStago, chr) { // <
			p.setStart(line, lpos)
			p.state = stateDECL0
			p.buffer = p.buffer[:0]
			return
		}
		if p.dmode == modeDTD {
			if f.is(cfPero, chr) { // %
				p.setStart(line, lpos)
				p.state = statePENT
				return
			}
		} else {
			if f.is(cfEro, chr) { // &
				p.setStart(line, lpos)
				p.state = stateENT0
				return
			}
		}

		if p.marked != nil && f.is(cfDsc, chr) { // ] in a marked section
			p.buffer = p.buffer[:0]
			p.state = stateEMSC1
			p.saved = chr
			return
		}

		if p.waitingForNET && f.is(cfEtago2, chr) { // NET /
			p.setStart(line, lpos)
			p.processNET()
			return
		}

		if p.utf8Decode && chr >= 0x80 {
			p.processUTF8(chr)
			return
		}
		if len(p.cdata) == 0 {
			p.startCData = p.location.snapshot()
			p.startCData.Line = line
			p.startCData.LinePos = lpos
			p.startCData.CharPos = p.location.CharPos - 1
		}
		p.addCData(dtd.charMap.m[chr])
		return

	case stateECDATA2: // seen </ in CDATA/RCDATA
		if f.is(cfMdc, chr) &&
			len(p.buffer) == len(p.etag) &&
			equalFold(string(p.buffer), p.etag) {
			p.cdata = p.cdata[:len(p.cdata)-len(p.etag)-2] // the </name
			if p.markState == markInclude {
				p.processCData(true)
				p.processEndElement(p.buffer)
				p.emptyCData()
			}
			p.buffer = p.buffer[:0]
			p.cdataState = statePCDATA
			p.state = statePCDATA
		} else {
			p.addVerbatimCData(dtd.charMap.m[chr])
			if len(p.etag) < len(p.buffer) || !dtd.charClass.has(chr, clName) {
				p.buffer = p.buffer[:0] // mismatch
				p.state = p.cdataState
			} else {
				p.buffer = append(p.buffer, chr)
			}
		}
		return

	case stateECDATA1: // seen < in CDATA
		p.addVerbatimCData(dtd.charMap.m[chr])
		if f.is(cfEtago2, chr) { // /
			p.buffer = p.buffer[:0]
			p.state = stateECDATA2
		} else if !f.is(cfStago, chr) { // <: stay put
			p.state = p.cdataState
		}
		return

	case stateRCDATA:
		if f.is(cfEro, chr) { // &
			p.setStart(line, lpos)
			p.state = stateENT0
			return
		}
		fallthrough
	case stateCDATA:
		p.addVerbatimCData(dtd.charMap.m[chr])

		if f.is(cfStago, chr) { // <
			p.setStart(line, lpos)
			p.state = stateECDATA1
		}

		if p.waitingForNET && f.is(cfEtago2, chr) { // / in shorttag content
			p.setStart(line, lpos)
			p.cdata = p.cdata[:len(p.cdata)-1]
			if p.markState == markInclude {
				p.processCData(true)
				p.processNET()
				p.emptyCData()
			}
			p.buffer = p.buffer[:0]
			p.cdataState = statePCDATA
			p.state = statePCDATA
		}
		return

	case stateMSCDATA:
		p.addVerbatimCData(dtd.charMap.m[chr])
		if f.is(cfDsc, chr) { // ]
			p.state = stateEMSCDATA1
		}
		return

	case stateEMSCDATA1:
		p.addVerbatimCData(dtd.charMap.m[chr])
		if f.is(cfDsc, chr) { // ]]
			p.state = stateEMSCDATA2
		} else {
			p.state = stateMSCDATA
		}
		return

	case stateEMSCDATA2:
		p.addVerbatimCData(dtd.charMap.m[chr])
		if f.is(cfMdc, chr) { // ]]>
			p.cdata = p.cdata[:len(p.cdata)-3]
			p.popMarkedSection()
			p.state = statePCDATA
		} else if !f.is(cfDsc, chr) { // ]]] stays here
			p.state = stateMSCDATA
		}
		return

	case stateEMSC1:
		if f.is(cfDsc, chr) { // ]]
			p.state = stateEMSC2
			return
		}
		p.buffer = append(p.buffer, chr)
		p.recoverParser()
		return

	case stateEMSC2:
		if f.is(cfMdc, chr) { // ]]>
			p.popMarkedSection()
			p.state = statePCDATA
			return
		}
		p.buffer = append(p.buffer, chr)
		p.recoverParser()
		return

	case statePENT: // %name; in DTD mode
		if f.is(cfErc, chr) {
			p.state = statePCDATA
			if p.markState == markInclude {
				p.processInclude(string(p.buffer))
			}
			p.buffer = p.buffer[:0]
			return
		}
		if dtd.charClass.has(chr, clName) {
			p.buffer = append(p.buffer, chr)
			return
		}
		p.gripeFound(ErrSyntax, "Illegal parameter entity", p.buffer)

	case stateENT0: // seen &
		if chr == '#' || dtd.charClass.has(chr, clName) {
			p.buffer = p.buffer[:0]
			p.buffer = append(p.buffer, chr)
			p.state = stateENT
		} else {
			p.addCData(f.fn[cfEro])
			p.state = p.cdataState
			goto reprocess
		}
		return

	case stateENT: // &name
		if dtd.charClass.has(chr, clName) {
			p.buffer = append(p.buffer, chr)
			return
		}

		p.state = p.cdataState
		if p.markState == markInclude {
			p.processEntity(string(p.buffer))
		}
		p.buffer = p.buffer[:0]

		if chr == '\r' {
			p.state = stateENTCR
		} else if !f.is(cfErc, chr) && chr != '\n' {
			goto reprocess
		}

	case stateENTCR: // seen &name CR: swallow a following LF
		p.state = p.cdataState
		if chr != '\n' {
			goto reprocess
		}

	case stateDECL0: // seen <
		if f.is(cfEtago2, chr) { // </
			p.buffer = append(p.buffer, chr)
			p.state = stateDECL
		} else if dtd.charClass.has(chr, clName) { // <letter
			p.buffer = append(p.buffer, chr)
			p.state = stateDECL
		} else if f.is(cfMdo2, chr) { // <!
			p.state = stateMDECL0
		} else if f.is(cfPro2, chr) { // <?
			p.state = statePI
		} else { // recover: plain data
			p.addCData(f.fn[cfStago])
			p.addCData(chr)
			p.state = statePCDATA
		}
		return

	case stateMDECL0: // seen <!
		if f.is(cfCmt, chr) { // <!-
			p.state = stateCMTO
			return
		}
		p.buffer = append(p.buffer, f.fn[cfMdo2])
		p.buffer = append(p.buffer, chr)
		p.state = stateDECL
		return

	case stateDECL: // <...>
		if f.is(cfMdc, chr) { // >
			p.prepareCData()
			p.state = statePCDATA
			if p.markState == markInclude {
				p.processDeclaration(p.buffer)
			}
			p.buffer = p.buffer[:0]
			return
		}
		// shorttag start: <tag/ opens and arms NET
		if dtd.Shorttag && f.is(cfEtago2, chr) && len(p.buffer) > 0 {
			p.prepareCData()
			p.state = statePCDATA
			if p.markState == markInclude {
				p.withClass(EventShortTag, func() {
					p.processDeclaration(p.buffer)
				})
			}
			p.buffer = p.buffer[:0]
			p.waitingForNET = true
			return
		}

		p.buffer = append(p.buffer, chr)

		if f.is(cfLit, chr) { // "
			p.state = stateSTRING
			p.saved = chr
			p.litSavedState = stateDECL
		} else if f.is(cfLita, chr) { // '
			p.state = stateSTRING
			p.saved = chr
			p.litSavedState = stateDECL
			return
		} else if f.is(cfCmt, chr) && len(p.buffer) > 0 && p.buffer[0] == f.fn[cfMdo2] {
			p.state = stateDECLCMT0
		} else if f.is(cfDso, chr) { // [: marked section or subset
			p.processMarkedSection()
		}

	case stateDECLCMT0: // <...-
		if f.is(cfCmt, chr) {
			p.buffer = p.buffer[:len(p.buffer)-1]
			p.state = stateDECLCMT
		} else {
			p.buffer = append(p.buffer, chr)
			p.state = stateDECL
		}

	case stateDECLCMT: // <...--..
		if f.is(cfCmt, chr) {
			p.state = stateDECLCMTE0
		}

	case stateDECLCMTE0: // <...--..-
		if f.is(cfCmt, chr) {
			p.state = stateDECL
		} else {
			p.state = stateDECLCMT
		}

	case statePI:
		p.buffer = append(p.buffer, chr)
		if f.is(cfPro2, chr) { // <? ... ?
			p.state = statePI2
		}
		if f.is(cfPrc, chr) { // > alone ends a PI too (SGML)
			p.endPI()
		}
		return

	case statePI2:
		if f.is(cfPrc, chr) {
			p.endPI()
			return
		}
		p.buffer = append(p.buffer, chr)
		p.state = statePI
		return

	case stateSTRING:
		p.buffer = append(p.buffer, chr)
		if chr == p.saved {
			p.state = p.litSavedState
		}

	case stateCMTO: // seen <!-
		if f.is(cfCmt, chr) { // -
			p.state = stateCMT
			return
		}
		p.addCData(f.fn[cfStago])
		p.addCData(f.fn[cfMdo2])
		p.addCData(f.fn[cfCmt])
		p.addCData(chr)
		p.state = statePCDATA
		return

	case stateCMT:
		if f.is(cfCmt, chr) {
			p.state = stateCMTE0 // <!--...-
		}

	case stateCMTE0: // <!--...--
		if f.is(cfCmt, chr) {
			p.state = stateCMTE1
		} else {
			p.state = stateCMT
		}

	case stateCMTE1: // <!--...-- seen
		if f.is(cfMdc, chr) { // >
			if p.handler.OnDecl != nil {
				p.handler.OnDecl(p, nil)
			}
			p.state = statePCDATA
		} else {
			p.state = stateCMT
		}

	case stateGROUP: // [...] inside a declaration
		p.buffer = append(p.buffer, chr)
		if f.is(cfDso, chr) {
			p.groupLevel++
		} else if f.is(cfDsc, chr) {
			p.groupLevel--
			if p.groupLevel == 0 {
				p.state = stateDECL
			}
		} else if f.is(cfLit, chr) { // "
			p.state = stateSTRING
			p.saved = chr
			p.litSavedState = stateGROUP
		} else if f.is(cfLita, chr) { // '
			p.state = stateSTRING
			p.saved = chr
			p.litSavedState = stateGROUP
			return
		}

	case stateUTF8:
		if chr&0xc0 != 0x80 {
			p.gripe(ErrSyntax, "Bad UTF-8 sequence")
		}
		p.utf8Char <<= 6
		p.utf8Char |= int(chr &^ 0xc0)
		p.utf8Left--
		if p.utf8Left == 0 {
			if p.utf8Char >= outputCharsetSize && p.markState == markInclude {
				if p.handler.OnEntity != nil {
					p.processCData(false)
					p.handler.OnEntity(p, nil, p.utf8Char)
					p.state = p.utf8SavedState
					return
				}
				p.gripe(ErrRepresentation, "character")
			}
			p.addCData(byte(p.utf8Char))
			p.state = p.utf8SavedState
		}
	}
}

func (p *Parser) endPI() {
	p.processCData(false)
	p.state = statePCDATA
	p.buffer = p.buffer[:len(p.buffer)-1]
	if p.markState == markInclude {
		p.processPI(p.buffer)
	}
	p.buffer = p.buffer[:0]
}

// equalFold is an ASCII case-insensitive comparison; declared-content end
// tags match case-insensitively in every dialect.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerByte(a[i]) != lowerByte(b[i]) {
			return false
		}
	}
	return true
}
