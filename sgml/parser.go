package sgml

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ============================================================================
// 12. THE PARSER
// ============================================================================
// One Parser instance is driven by one producer. There is no internal
// scheduling: to cancel, stop feeding bytes. Parsers may run in parallel
// across goroutines when their DTDs are distinct or frozen.

// Flags for ProcessReader/ProcessFile.
const (
	// SubDocument suppresses end-of-document finalisation so the outer
	// parse continues after an included entity or external subset.
	SubDocument = 1 << iota
)

// Catalogue resolves external identifiers to local paths.
type Catalogue func(kind CatalogKind, name, publicID, systemID string, xml bool) (string, bool)

// Loader reads the bytes of a resolved path, optionally normalising line
// endings to LF.
type Loader func(path string, normalise bool) ([]byte, error)

// Parser is a streaming SGML/XML parser bound to a DTD.
type Parser struct {
	dtd     *DTD
	handler Handler

	catalogue Catalogue
	loader    Loader

	state      lexState
	cdataState lexState // text state to fall back to after references
	dmode      dataMode

	location   SrcLoc
	startLoc   SrcLoc // start of the construct being scanned
	startCData SrcLoc // start of the pending CDATA burst

	buffer []byte // declaration/name accumulator
	cdata  []byte // pending character data

	marked    *markedSection
	markState markState

	environments *environment
	srMap        *ShortrefMap
	emptyMap     *ShortrefMap

	enforceOuterElement *Symbol
	emptyElement        *Element

	eventClass EventClass
	first      bool
	blankCData bool

	cdataMustBeEmpty bool
	waitingForNET    bool
	noDefaults       bool
	maxOmittedDepth  int

	etag string // declared-content end tag being watched for

	saved         byte
	litSavedState lexState
	groupLevel    int

	encoding       Encoding
	utf8Decode     bool
	utf8SavedState lexState
	utf8Char       int
	utf8Left       int
}

// Option configures a Parser.
type Option func(*Parser)

// WithDialect pre-selects the dialect before any input is seen.
func WithDialect(d Dialect) Option {
	return func(p *Parser) { p.dtd.SetDialect(d) }
}

// WithCatalogue installs the external-identifier resolver.
func WithCatalogue(c Catalogue) Option {
	return func(p *Parser) { p.catalogue = c }
}

// WithLoader replaces the file loader used for external entities.
func WithLoader(l Loader) Option {
	return func(p *Parser) { p.loader = l }
}

// WithHandler installs the callback set.
func WithHandler(h Handler) Option {
	return func(p *Parser) { p.handler = h }
}

// WithShorttag enables or disables NET shorttag handling.
func WithShorttag(on bool) Option {
	return func(p *Parser) { p.dtd.Shorttag = on }
}

// WithMaxOmittedDepth bounds the omitted-open-tag search.
func WithMaxOmittedDepth(n int) Option {
	return func(p *Parser) { p.maxOmittedDepth = n }
}

// WithoutDefaultAttributes suppresses the injection of declared defaults
// into start-tag events.
func WithoutDefaultAttributes() Option {
	return func(p *Parser) { p.noDefaults = true }
}

// NewParser creates a parser. dtd may be nil, in which case a fresh implicit
// SGML DTD is created; passing a DTD shares it (ref-counted).
func NewParser(dtd *DTD, opts ...Option) *Parser {
	if dtd == nil {
		dtd = NewDTD("")
	} else {
		dtd.ref()
	}
	p := &Parser{
		dtd:             dtd,
		state:           statePCDATA,
		cdataState:      statePCDATA,
		markState:       markInclude,
		dmode:           modeDTD,
		encoding:        EncLatin1,
		eventClass:      EventExplicit,
		blankCData:      true,
		loader:          LoadBytes,
		maxOmittedDepth: defaultOmittedDepth,
	}
	p.setSource(InNone, "")
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DTD returns the parser's document type.
func (p *Parser) DTD() *DTD { return p.dtd }

// Location returns the current source location (a copy).
func (p *Parser) Location() SrcLoc { return p.location }

// EventClass reports how the current callback was produced.
func (p *Parser) EventClass() EventClass { return p.eventClass }

// clone shares the DTD with a child parser used to load external subsets.
func (p *Parser) clone() *Parser {
	clone := &Parser{}
	*clone = *p
	clone.dtd.ref()
	clone.environments = nil
	clone.marked = nil
	clone.etag = ""
	clone.groupLevel = 0
	clone.state = statePCDATA
	clone.cdataState = statePCDATA
	clone.markState = markInclude
	clone.dmode = modeDTD
	clone.buffer = nil
	clone.cdata = nil
	return clone
}

// free drops the clone's DTD reference.
func (p *Parser) free() {
	p.dtd.unref()
}

// Reset prepares the parser for a fresh document on the same DTD.
func (p *Parser) Reset() {
	p.environments = nil
	for p.marked != nil {
		p.popMarkedSection()
	}
	p.buffer = p.buffer[:0]
	p.cdata = p.cdata[:0]
	p.markState = markInclude
	p.state = statePCDATA
	p.cdataState = statePCDATA
	p.groupLevel = 0
	p.blankCData = true
	p.eventClass = EventExplicit
	p.dmode = modeData
	p.initDecoding()
}

// ----------------------------------------------------------------------------
// source locations
// ----------------------------------------------------------------------------

type locSave struct {
	here  SrcLoc
	start SrcLoc
}

// pushLocation snapshots the location pair; the snapshots become the parent
// frames of the chain until popLocation restores them.
func (p *Parser) pushLocation() *locSave {
	save := &locSave{here: p.location, start: p.startLoc}
	p.location.Parent = &save.here
	p.startLoc.Parent = &save.start
	return save
}

func (p *Parser) popLocation(save *locSave) {
	p.location = save.here
	p.startLoc = save.start
}

// setSource rebinds the innermost location frame to a new input.
func (p *Parser) setSource(t InputType, name string) {
	p.location.Type = t
	p.location.Name = name
	p.location.Line = 1
	p.location.LinePos = 0
	p.location.CharPos = 0
}

func (p *Parser) baseURL() string {
	if p.location.Type == InFile && p.location.Name != "" {
		return p.location.Name
	}
	return ""
}

// ----------------------------------------------------------------------------
// diagnostics
// ----------------------------------------------------------------------------

// gripe builds a ParseError for kind, fires OnError, and returns false so
// scanners can bail with "return p.gripe(...)".
func (p *Parser) gripe(kind ErrorKind, args ...string) bool {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	err := &ParseError{Kind: kind}

	switch kind {
	case ErrRepresentation:
		err.Severity = SeverityError
		err.Message = "Cannot represent due to " + arg(0)
	case ErrResource:
		err.Severity = SeverityError
		err.Message = "Insufficient " + arg(0) + " resources"
	case ErrLimit:
		err.Severity = SeverityWarning
		err.Message = arg(0) + " limit exceeded"
	case ErrValidate:
		err.Severity = SeverityWarning
		err.Message = arg(0)
	case ErrSyntax:
		err.Severity = SeverityError
		err.Message = "Syntax error: " + arg(0)
	case ErrSyntaxWarning:
		err.Severity = SeverityWarning
		err.Message = "Syntax error: " + arg(0)
	case ErrExistence:
		err.Severity = SeverityError
		err.Message = arg(0) + " \"" + arg(1) + "\" does not exist"
	case ErrRedefined:
		err.Severity = SeverityStyle
		err.Message = "Redefined " + arg(0) + " \"" + arg(1) + "\""
	case ErrDomain:
		err.Severity = SeverityError
		err.Message = "Expected type " + arg(0) + ", found \"" + arg(1) + "\""
	case ErrOmittedClose:
		err.Severity = SeverityWarning
		err.Message = "Inserted omitted end-tag for \"" + arg(0) + "\""
	case ErrOmittedOpen:
		err.Severity = SeverityWarning
		err.Message = "Inserted omitted start-tag for \"" + arg(0) + "\""
	case ErrNotOpen:
		err.Severity = SeverityWarning
		err.Message = "Ignored end-tag for \"" + arg(0) + "\" which is not open"
	case ErrNotAllowed:
		err.Severity = SeverityWarning
		err.Message = "Element \"" + arg(0) + "\" not allowed here"
	case ErrNotAllowedPCDATA:
		err.Severity = SeverityWarning
		err.Message = "#PCDATA (\"" + summary([]byte(arg(0)), 25) + "\") not allowed here"
	case ErrNoAttribute:
		err.Severity = SeverityWarning
		err.Message = "Element \"" + arg(0) + "\" has no attribute \"" + arg(1) + "\""
	case ErrNoAttributeValue:
		err.Severity = SeverityWarning
		err.Message = "Element \"" + arg(0) + "\" has no attribute with value \"" + arg(1) + "\""
	case ErrNoValue:
		err.Severity = SeverityError
		err.Message = "entity value \"" + arg(0) + "\" does not exist"
	case ErrNoDoctype:
		err.Severity = SeverityWarning
		err.Message = "No <!DOCTYPE ...>, assuming \"" + arg(0) + "\" from DTD file \"" + arg(1) + "\""
	case ErrNoCatalogue:
		err.Severity = SeverityWarning
		err.Message = "catalogue file \"" + arg(0) + "\" does not exist"
	default:
		err.Severity = SeverityError
		err.Message = arg(0)
	}

	loc := p.location.snapshot()
	loc.Parent = p.location.Parent
	err.Location = &loc

	if p.handler.OnError != nil {
		p.handler.OnError(p, err)
	} else {
		fmt.Fprintf(os.Stderr, "SGML: %s\n", err.Error())
	}

	return false
}

// gripeFound is gripe with the offending input appended.
func (p *Parser) gripeFound(kind ErrorKind, msg string, found []byte) bool {
	if len(found) > 0 {
		msg = msg + ", found \"" + summary(found, 25) + "\""
	}
	return p.gripe(kind, msg)
}

// ----------------------------------------------------------------------------
// encoding
// ----------------------------------------------------------------------------

// initDecoding arms UTF-8 assembly when the document is declared UTF-8 but
// the input charset is Latin-1.
func (p *Parser) initDecoding() {
	p.utf8Decode = p.dtd.Encoding == EncUTF8 && p.encoding == EncLatin1
}

// setEncoding applies an encoding name from an <?xml?> declaration.
func (p *Parser) setEncoding(name string) {
	enc, ok := lookupEncoding(name)
	if !ok {
		p.gripe(ErrExistence, "character encoding", name)
		return
	}
	p.dtd.Encoding = enc
	p.initDecoding()
}

// ----------------------------------------------------------------------------
// driver
// ----------------------------------------------------------------------------

// processChars feeds a byte slice under a pushed location frame.
func (p *Parser) processChars(in InputType, name string, text []byte) {
	save := p.pushLocation()
	p.setSource(in, name)
	p.buffer = p.buffer[:0]
	for _, c := range text {
		p.putByte(c)
	}
	p.popLocation(save)
}

// processInclude resolves a %name; reference at DTD top level.
func (p *Parser) processInclude(name string) bool {
	dtd := p.dtd

	if id := dtd.findEntitySymbol(name); id != nil {
		if pe := dtd.findPEntity(id); pe != nil {
			if file, ok := p.entityFile(pe); ok {
				return p.ProcessFile(file, SubDocument)
			}
			text, ok := p.entityValue(pe)
			if !ok {
				return p.gripe(ErrNoValue, pe.Name.Name)
			}
			p.processChars(InEntity, name, text)
			return true
		}
	}

	return p.gripe(ErrExistence, "parameter entity", name)
}

// EndDocument finalises the parse: flushes pending data, pops every open
// element, and reports a targeted diagnostic when the lexer was left inside
// an unterminated construct.
func (p *Parser) EndDocument() bool {
	ok := true

	switch p.state {
	case stateRCDATA, stateCDATA, statePCDATA:
	case stateCMT, stateCMTE0, stateCMTE1, stateDECLCMT0, stateDECLCMT, stateDECLCMTE0:
		ok = p.gripe(ErrSyntax, "Unexpected end-of-file in comment")
	case stateMSCDATA, stateEMSCDATA1, stateEMSCDATA2:
		ok = p.gripe(ErrSyntax, "Unexpected end-of-file in CDATA marked section")
	case statePI, statePI2:
		ok = p.gripe(ErrSyntax, "Unexpected end-of-file in processing instruction")
	case stateUTF8:
		ok = p.gripe(ErrSyntax, "Unexpected end-of-file in UTF-8 sequence")
	default:
		ok = p.gripe(ErrSyntax, "Unexpected end-of-file")
	}

	if p.dmode == modeData {
		p.processCData(true)

		if env := p.environments; env != nil {
			for env.parent != nil {
				env = env.parent
			}
			p.popTo(env, textElement)
			e := env.element
			if e.Structure != nil && !e.Structure.OmitClose {
				p.gripe(ErrOmittedClose, e.Name.Name)
			}
			p.closeElement(e, false)
		}
	}

	return ok
}

// BeginDocument prepares decoding state before the first byte.
func (p *Parser) BeginDocument() {
	p.initDecoding()
}

// ProcessReader feeds an entire byte stream. SGML sees a file as records, so
// a lone trailing newline before EOF is swallowed, and CR LF (or a bare CR)
// arrives at the state machine as a canonical LF.
func (p *Parser) ProcessReader(r io.Reader, name string, flags int) bool {
	if name != "" {
		p.setSource(InFile, name)
	}
	if flags&SubDocument == 0 {
		p.dmode = modeData
		p.state = statePCDATA
		p.blankCData = true
	}
	p.BeginDocument()

	br := bufio.NewReader(r)
	prev := -1 // one byte of delay so the final newline can be dropped
	for {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		c := b
		if c == '\r' { // CR LF and bare CR both arrive as LF
			if nb, err2 := br.ReadByte(); err2 == nil && nb != '\n' {
				br.UnreadByte()
			}
			c = '\n'
		}
		if prev >= 0 {
			p.putByte(byte(prev))
		}
		prev = int(c)
	}
	if prev >= 0 && prev != '\n' { // a trailing newline is swallowed
		p.putByte(byte(prev))
	}

	if flags&SubDocument != 0 {
		return true
	}
	return p.EndDocument()
}

// ProcessFile opens and feeds a file.
func (p *Parser) ProcessFile(file string, flags int) bool {
	fd, err := os.Open(file)
	if err != nil {
		return false
	}
	defer fd.Close()

	save := p.pushLocation()
	p.setSource(InFile, file)
	rval := p.ProcessReader(fd, "", flags)
	p.popLocation(save)

	return rval
}

// LoadDTDFile parses a DTD file into the parser's document type.
func (p *Parser) LoadDTDFile(file string) bool {
	oldMode, oldState := p.dmode, p.state
	save := p.pushLocation()
	p.dmode = modeDTD
	p.state = statePCDATA
	p.buffer = p.buffer[:0]
	p.setSource(InFile, file)

	data, err := p.loader(file, true)
	rval := err == nil
	if rval {
		for _, c := range data {
			p.putByte(c)
		}
		p.dtd.implicit = false
	}

	p.popLocation(save)
	p.dmode = oldMode
	p.state = oldState
	return rval
}

// LoadDTD parses DTD text from memory (used for internal-subset style input
// that does not come from a file).
func (p *Parser) LoadDTD(data []byte) {
	oldMode, oldState := p.dmode, p.state
	p.dmode = modeDTD
	p.state = statePCDATA
	p.buffer = p.buffer[:0]
	for _, c := range normaliseNewlines(data) {
		p.putByte(c)
	}
	p.dtd.implicit = false
	p.dmode = oldMode
	p.state = oldState
}

// FileToDTD loads a DTD file standalone and returns the document type.
func FileToDTD(file, doctype string, dialect Dialect, opts ...Option) (*DTD, bool) {
	dtd := NewDTD(doctype)
	dtd.SetDialect(dialect)
	p := NewParser(dtd, opts...)
	ok := p.LoadDTDFile(file)
	p.free()
	if !ok {
		return nil, false
	}
	return dtd, true
}
