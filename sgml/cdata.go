package sgml

// ============================================================================
// 8. CHARACTER DATA
// ============================================================================
// Data bytes accumulate in the parser's CDATA buffer and are emitted in
// bursts at markup boundaries, after the active space mode has been applied.
// The first non-blank byte of a burst is what forces #PCDATA through the
// validator, so whitespace-only runs never open anything.

func (p *Parser) emptyCData() {
	if p.dmode == modeData {
		p.cdata = p.cdata[:0]
		p.blankCData = true
		p.cdataMustBeEmpty = false
	}
}

// addCData appends a data byte, collapsing CR LF to LF and running the
// shortref matcher when the byte can end a pattern.
func (p *Parser) addCData(chr byte) {
	if p.markState != markInclude {
		return
	}

	if p.blankCData && !p.dtd.charClass.has(chr, clBlank) {
		p.cdataMustBeEmpty = !p.openElement(textElement, false)
		p.blankCData = false
	}

	if chr == '\n' {
		if n := len(p.cdata); n > 0 && p.cdata[n-1] == '\r' {
			p.cdata = p.cdata[:n-1]
		}
	}

	p.cdata = append(p.cdata, chr)

	if p.srMap != nil && p.srMap.ends[chr] {
		p.matchShortref()
	}
}

// addVerbatimCData appends without newline rewriting beyond CR LF collapse;
// used for declared content and marked CDATA sections.
func (p *Parser) addVerbatimCData(chr byte) {
	if p.markState == markIgnore {
		return
	}

	if p.blankCData && !p.dtd.charClass.has(chr, clBlank) {
		p.cdataMustBeEmpty = !p.openElement(textElement, false)
		p.blankCData = false
	}

	if chr == '\n' {
		if n := len(p.cdata); n > 0 && p.cdata[n-1] == '\r' {
			p.cdata = p.cdata[:n-1]
		}
	}

	p.cdata = append(p.cdata, chr)
}

// emitCData applies the environment's space mode and fires OnData. last is
// true when the burst ends the element's content.
func (p *Parser) emitCData(last bool) {
	dtd := p.dtd
	if len(p.cdata) == 0 {
		return
	}

	save := p.pushLocation()
	locParent := p.location.Parent
	startParent := p.startLoc.Parent
	p.location = p.startLoc.snapshot() // report from the start of the markup
	p.location.Parent = locParent
	p.startLoc = p.startCData.snapshot() // real start of the burst
	p.startLoc.Parent = startParent

	data := p.cdata

	if p.environments != nil {
		switch p.environments.spaceMode {
		case SpaceSGML, SpaceDefault:
			if p.first {
				// strip the record boundary that follows the start-tag
				if len(data) > 0 && dtd.charClass.has(data[0], clRS) {
					p.startLoc.advance(data[0])
					data = data[1:]
				}
				if len(data) > 0 && dtd.charClass.has(data[0], clRE) {
					p.startLoc.advance(data[0])
					data = data[1:]
				}
			}
			if last {
				if n := len(data); n > 0 && dtd.charClass.has(data[n-1], clRE) {
					p.location.retreat(data[n-1])
					data = data[:n-1]
				}
				if n := len(data); n > 0 && dtd.charClass.has(data[n-1], clRS) {
					p.location.retreat(data[n-1])
					data = data[:n-1]
				}
			}
			if p.environments.spaceMode == SpaceDefault {
				data = collapseBlanks(dtd, data, false)
			}
		case SpaceRemove:
			for len(data) > 0 && dtd.charClass.has(data[0], clBlank) {
				p.startLoc.advance(data[0])
				data = data[1:]
			}
			data = collapseBlanks(dtd, data, true)
		case SpacePreserve:
		}
	}

	if len(data) == 0 {
		p.popLocation(save)
		p.emptyCData()
		return
	}

	if !p.blankCData {
		if p.cdataMustBeEmpty {
			p.gripe(ErrNotAllowedPCDATA, string(data))
		}
		if p.handler.OnData != nil {
			p.handler.OnData(p, DataCDATA, data)
		}
	} else if p.environments != nil {
		// blank-only data: emit only where the model admits mixed content,
		// or where an undefined element preserves space
		env := p.environments
		if next := env.state.Transition(textElement); next != nil {
			env.state = next
			if p.handler.OnData != nil {
				p.handler.OnData(p, DataCDATA, data)
			}
		} else if env.element.Undefined && env.spaceMode == SpacePreserve {
			if p.handler.OnData != nil {
				p.handler.OnData(p, DataCDATA, data)
			}
		}
	}

	p.popLocation(save)
	p.emptyCData()
}

func collapseBlanks(dtd *DTD, data []byte, trimTrail bool) []byte {
	out := data[:0]
	end := 0
	for i := 0; i < len(data); i++ {
		if dtd.charClass.has(data[i], clBlank) {
			for i+1 < len(data) && dtd.charClass.has(data[i+1], clBlank) {
				i++
			}
			out = append(out, ' ')
			continue
		}
		out = append(out, data[i])
		end = len(out)
	}
	if trimTrail {
		return out[:end]
	}
	return out
}

// prepareCData runs validation for a finished burst: auto-close of EMPTY
// elements and the #PCDATA admission check.
func (p *Parser) prepareCData() {
	if len(p.cdata) == 0 {
		return
	}

	if p.markState == markInclude {
		dtd := p.dtd

		if p.environments != nil { // <img> <img>: EMPTY closes on new data
			e := p.environments.element
			if e.Structure != nil && e.Structure.Kind == ContentEmpty && !e.Undefined {
				p.closeElement(e, false)
			}
		}

		if p.blankCData {
			blank := true
			for _, c := range p.cdata {
				if !dtd.charClass.has(c, clBlank) {
					blank = false
					break
				}
			}
			p.blankCData = blank
			if !blank {
				if p.dmode == modeDTD {
					p.gripe(ErrSyntax, "CDATA in DTD")
				} else {
					p.openElement(textElement, true)
				}
			}
		}
	}
}

func (p *Parser) processCData(last bool) {
	p.prepareCData()
	p.emitCData(last)
}

// processEntity resolves a general entity reference in content: character
// entities go to the CDATA buffer (or OnEntity when unrepresentable), SGML
// entities re-enter the lexer, data entities fire OnData, PI entities OnPI.
func (p *Parser) processEntity(name string) bool {
	dtd := p.dtd

	if name != "" && name[0] == '#' {
		v := charEntityValue([]byte(name))
		if v < 0 {
			return p.gripe(ErrSyntax, "Bad character entity: "+name)
		}
		if v >= outputCharsetSize {
			if p.handler.OnEntity != nil {
				p.processCData(false)
				p.handler.OnEntity(p, nil, v)
			} else {
				return p.gripe(ErrRepresentation, "character")
			}
		} else {
			p.cdata = append(p.cdata, byte(v))
		}
		return true
	}

	var e *Entity
	if id := dtd.findEntitySymbol(name); id != nil {
		e = id.Entity
	}
	if e == nil {
		if dtd.DefaultEntity == nil {
			return p.gripe(ErrExistence, "entity", name)
		}
		e = dtd.DefaultEntity
	}

	// unloaded external SGML entities parse as sub-documents
	if e.Value == nil && e.Content == DataSGML {
		if file, ok := p.entityFile(e); ok {
			p.buffer = p.buffer[:0]
			return p.ProcessFile(file, SubDocument)
		}
	}

	text, ok := p.entityValue(e)
	if !ok {
		return p.gripe(ErrNoValue, e.Name.Name)
	}

	switch e.Content {
	case DataSGML, DataCDATA:
		if rest, chr, ok := p.seeCharacterEntity(text); ok && len(rest) == 0 {
			if p.blankCData && !dtd.charClass.has(byte(chr&0xff), clBlank) {
				p.cdataMustBeEmpty = !p.openElement(textElement, false)
				p.blankCData = false
			}
			if chr > 0 && chr < outputCharsetSize {
				p.cdata = append(p.cdata, byte(chr))
				return true
			}
			if p.handler.OnEntity != nil {
				p.processCData(false)
				p.handler.OnEntity(p, e, chr)
			} else {
				return p.gripe(ErrRepresentation, "character")
			}
			return true
		}
		if e.Content == DataSGML {
			save := p.pushLocation()
			p.setSource(InEntity, e.Name.Name)
			p.buffer = p.buffer[:0]
			for _, c := range text {
				p.putByte(c)
			}
			p.popLocation(save)
		} else if len(text) > 0 {
			if p.blankCData {
				p.cdataMustBeEmpty = !p.openElement(textElement, false)
				p.blankCData = false
			}
			p.cdata = append(p.cdata, text...)
		}
	case DataSDATA, DataNDATA:
		p.processCData(false)
		if p.handler.OnData != nil {
			kind := DataSDATA
			if e.Content == DataNDATA {
				kind = DataNDATA
			}
			p.handler.OnData(p, kind, text)
		}
	case DataPI:
		p.processCData(false)
		if p.handler.OnPI != nil {
			p.handler.OnPI(p, text)
		}
	}

	return true
}
