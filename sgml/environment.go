package sgml

// ============================================================================
// 7. THE ELEMENT STACK
// ============================================================================
// The open-element stack is the pushdown half of the validator: each frame
// couples an element with its content-model state. Opening an element walks
// the stack top-down, trying a direct transition, then omitted-tag insertion,
// then popping omissible parents. Closing pops to the matching frame and
// reports every forced close on the way.

// environment is one frame of the open-element stack.
type environment struct {
	element   *Element
	state     *ModelState
	Map       *ShortrefMap
	spaceMode SpaceMode
	parent    *environment

	wantsNET        bool // opened with <tag/... shorttag
	savedWaitingNET bool
}

type includeKind int

const (
	ieNormal includeKind = iota
	ieIncluded
	ieExcluded
)

// inOrExcluded classifies e against the inclusion/exclusion exceptions of
// the open environments, innermost first: the first environment whose
// exceptions name e decides, and within it exclusion wins over inclusion.
func inOrExcluded(env *environment, e *Element) includeKind {
	for ; env != nil; env = env.parent {
		def := env.element.Structure
		if def == nil {
			continue
		}
		for _, x := range def.Excluded {
			if x == e {
				return ieExcluded
			}
		}
		for _, x := range def.Included {
			if x == e {
				return ieIncluded
			}
		}
	}
	return ieNormal
}

// complete reports whether env's content-model state is accepting. Undefined
// and ANY elements are always complete.
func (env *environment) complete() bool {
	e := env.element
	if e.Structure == nil || e.Undefined || e.Structure.Kind != ContentModel {
		return true
	}
	return env.state.IsFinal()
}

func (p *Parser) validateCompleteness(env *environment) {
	if !env.complete() {
		p.gripe(ErrValidate, "Incomplete <"+env.element.Name.Name+"> element")
	}
}

// pushElement makes e the innermost open element. Text (the pseudo-element)
// is never pushed.
func (p *Parser) pushElement(e *Element, callback bool) *environment {
	if e == textElement {
		return p.environments
	}

	p.emitCData(false)

	env := &environment{element: e, parent: p.environments}
	if e.Structure != nil {
		env.state = e.Structure.initialState()
	}
	if p.environments != nil {
		env.spaceMode = p.environments.spaceMode
	} else {
		env.spaceMode = p.dtd.SpaceMode
	}
	p.environments = env

	if p.dtd.Shorttag {
		env.savedWaitingNET = p.waitingForNET
		if p.eventClass == EventShortTag {
			p.waitingForNET = true
			env.wantsNET = true
		} else {
			env.wantsNET = false
			if e.Structure != nil && !e.Structure.OmitClose {
				p.waitingForNET = false
			}
		}
	}

	if e.Map != nil {
		env.Map = e.Map
		p.srMap = e.Map
	} else if env.parent != nil {
		env.Map = env.parent.Map
		p.srMap = env.Map
	}

	p.first = true
	if callback && p.handler.OnBeginElement != nil {
		var atts []Attribute
		if !p.noDefaults {
			atts = p.addDefaultAttributes(e, atts)
		}
		p.handler.OnBeginElement(p, e, atts)
	}

	if e.Structure != nil {
		switch e.Structure.Kind {
		case ContentCDATA, ContentRCDATA:
			// declared content: lexer scans verbatim until </name>
			if e.Structure.Kind == ContentCDATA {
				p.state = stateCDATA
			} else {
				p.state = stateRCDATA
			}
			p.cdataState = p.state
			p.etag = e.Name.Name
			p.startCData = p.location.snapshot()
			p.startCData.Parent = p.location.Parent
		default:
			p.cdataState = statePCDATA
		}
	}

	return p.environments
}

// popTo closes every environment above to, treating each close as omitted.
// e0 is the element whose open forced the pops (textElement for data).
func (p *Parser) popTo(to *environment, e0 *Element) {
	for env := p.environments; env != to; {
		e := env.element

		p.validateCompleteness(env)
		parent := env.parent

		if e.Structure != nil && !e.Structure.OmitClose {
			p.gripe(ErrOmittedClose, e.Name.Name)
		}

		if e0 != textElement {
			p.emitCData(true)
		}

		p.first = false
		p.environments = env
		if p.dtd.Shorttag {
			p.waitingForNET = env.savedWaitingNET
		}

		p.withClass(EventOmitted, func() {
			if p.handler.OnEndElement != nil {
				p.handler.OnEndElement(p, e)
			}
		})
		env = parent
	}
	p.environments = to
	if to != nil {
		p.srMap = to.Map
	}
}

// openElement validates and pushes e. With warn=false it only reports whether
// e fits (used to probe #PCDATA); with warn=true it always pushes, griping
// about whatever had to be forced.
func (p *Parser) openElement(e *Element, warn bool) bool {
	// synthesise the enforced top-level element when the first tag differs
	if p.environments == nil && p.enforceOuterElement != nil {
		f := p.enforceOuterElement.Element
		if f != nil && f != e {
			if f.Structure == nil || !f.Structure.OmitOpen {
				p.gripe(ErrOmittedOpen, f.Name.Name)
			}
			p.withClass(EventOmitted, func() {
				p.openElement(f, true)
				if p.handler.OnBeginElement != nil {
					var atts []Attribute
					if !p.noDefaults {
						atts = p.addDefaultAttributes(f, atts)
					}
					p.handler.OnBeginElement(p, f, atts)
				}
			})
		}
	}

	// no doctype yet: try to adopt one named after the first element
	if p.environments == nil && p.dtd.Doctype == "" && e != textElement && p.catalogue != nil {
		if file, ok := p.catalogue(CatDoctype, e.Name.Name, "", "",
			p.dtd.Dialect != DialectSGML); ok {
			clone := p.clone()
			p.gripe(ErrNoDoctype, e.Name.Name, file)
			if clone.LoadDTDFile(file) {
				p.dtd.Doctype = e.Name.Name
			} else {
				p.gripe(ErrExistence, "file", file)
			}
			clone.free()
		}
	}

	if p.environments != nil {
		env := p.environments

		if env.element.Undefined {
			env.element.Structure.allowFor(e)
			p.pushElement(e, false)
			return true
		}

		// declared CDATA/RCDATA content is all text by definition
		if e == textElement && env.element.Structure != nil &&
			(env.element.Structure.Kind == ContentCDATA ||
				env.element.Structure.Kind == ContentRCDATA) {
			return true
		}

		if env.element.Structure != nil && env.element.Structure.Kind == ContentAny {
			if e != textElement && e.Undefined {
				p.gripe(ErrExistence, "Element", e.Name.Name)
			}
			p.pushElement(e, false)
			return true
		}

		switch inOrExcluded(env, e) {
		case ieIncluded:
			p.pushElement(e, false)
			return true
		case ieExcluded:
			if warn {
				p.gripe(ErrNotAllowed, e.Name.Name)
			}
			fallthrough
		case ieNormal:
			for ; env != nil; env = env.parent {
				if next := env.state.Transition(e); next != nil {
					env.state = next
					p.popTo(env, e)
					p.pushElement(e, false)
					return true
				}

				if path := env.state.FindOmittedPath(e, p.maxOmittedDepth); path != nil {
					p.popTo(env, e)
					p.withClass(EventOmitted, func() {
						for _, oe := range path {
							env.state = env.state.Transition(oe)
							env = p.pushElement(oe, true)
						}
					})
					env.state = env.state.Transition(e)
					p.pushElement(e, false)
					return true
				}

				if env.element.Structure == nil || !env.element.Structure.OmitClose {
					break
				}
			}
		}

		if warn {
			if e == textElement {
				p.gripe(ErrValidate, "#PCDATA not allowed here")
			} else if e.Undefined {
				p.gripe(ErrExistence, "Element", e.Name.Name)
			} else {
				p.gripe(ErrNotAllowed, e.Name.Name)
			}
		}
	}

	if warn {
		p.pushElement(e, false)
		return true
	}
	return false
}

// closeElement pops to the nearest frame holding e, reporting forced closes.
// conref suppresses the completeness check of the topmost frame.
func (p *Parser) closeElement(e *Element, conref bool) bool {
	for env := p.environments; env != nil; env = env.parent {
		if env.element != e {
			continue
		}

		for env := p.environments; ; {
			ce := env.element

			if !(conref && env == p.environments) {
				p.validateCompleteness(env)
			}
			parent := env.parent

			p.first = false
			if p.handler.OnEndElement != nil {
				p.handler.OnEndElement(p, env.element)
			}
			p.environments = parent
			if p.dtd.Shorttag {
				p.waitingForNET = env.savedWaitingNET
			}

			if ce == e {
				if parent != nil {
					p.srMap = parent.Map
				} else {
					p.srMap = nil
				}
				return true
			}
			if ce.Structure != nil && !ce.Structure.OmitClose {
				p.gripe(ErrOmittedClose, ce.Name.Name)
			}
			env = parent
		}
	}

	return p.gripe(ErrNotOpen, e.Name.Name)
}

func (p *Parser) closeCurrentElement() bool {
	if p.environments != nil {
		e := p.environments.element
		p.emitCData(true)
		return p.closeElement(e, false)
	}
	return p.gripe(ErrSyntax, "No element to close")
}

// processNET handles the / that closes a shorttag element, popping any
// omissible parents opened since.
func (p *Parser) processNET() bool {
	p.prepareCData()
	for env := p.environments; env != nil; env = env.parent {
		if !env.wantsNET {
			continue
		}

		p.popTo(env, nil)
		p.validateCompleteness(env)
		parent := env.parent

		p.emitCData(true)
		p.first = false

		p.withClass(EventShortTag, func() {
			if p.handler.OnEndElement != nil {
				p.handler.OnEndElement(p, env.element)
			}
		})

		p.environments = parent
		p.waitingForNET = env.savedWaitingNET
		if parent != nil {
			p.srMap = parent.Map
		} else {
			p.srMap = nil
		}
		return true
	}
	return false
}

// updateSpaceMode applies an instance xml:space attribute, falling back to
// the element's static mode.
func (p *Parser) updateSpaceMode(e *Element, atts []Attribute) {
	for i := range atts {
		a := &atts[i]
		if a.Definition == nil || a.Definition.Name.Name != "xml:space" ||
			a.Definition.Type != AttrCDATA {
			continue
		}
		m := spaceModeFromString(a.CDATA)
		if m != SpaceInherit {
			p.environments.spaceMode = m
		} else {
			p.gripe(ErrExistence, "xml:space-mode", a.CDATA)
		}
		return
	}

	if e.SpaceMode != SpaceInherit {
		p.environments.spaceMode = e.SpaceMode
	}
}
