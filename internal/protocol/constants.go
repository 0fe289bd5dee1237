// Package protocol defines the wire-level vocabulary of the 5250 data
// stream: telnet commands and options, the GDS record envelope, display
// commands and orders, AID codes, and structured-field identifiers.
// Parsing and framing of the record envelope also lives here; order
// interpretation is the dispatch package's job.
package protocol

// --- Telnet commands ---

const (
	IAC  byte = 255 // interpret as command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // subnegotiation begin
	GA   byte = 249
	EL   byte = 248
	EC   byte = 247
	AYT  byte = 246
	AO   byte = 245
	IP   byte = 244 // interrupt process, carries the system-request key
	BRK  byte = 243 // break, carries the attention key
	DM   byte = 242
	NOP  byte = 241
	SE   byte = 240 // subnegotiation end
	EOR  byte = 239 // end-of-record mark terminating each logical record
)

// --- Telnet options ---

const (
	OptBinary     byte = 0
	OptEcho       byte = 1
	OptSGA        byte = 3
	OptTimingMark byte = 6
	OptTTYPE      byte = 24
	OptEOR        byte = 25
	OptNAWS       byte = 31
	OptNewEnviron byte = 39
	OptTN5250E    byte = 0xE5
)

// Terminal-type subnegotiation verbs.
const (
	TTypeIs   byte = 0
	TTypeSend byte = 1
)

// NEW-ENVIRON subnegotiation verbs and field tags (RFC 1572).
const (
	EnvIs   byte = 0
	EnvSend byte = 1
	EnvInfo byte = 2

	EnvVar     byte = 0
	EnvValue   byte = 1
	EnvEsc     byte = 2
	EnvUserVar byte = 3
)

// Environment variable names carried during negotiation.
const (
	EnvNameUser     = "USER"
	EnvNameDevice   = "DEVNAME"
	EnvNameSeed     = "IBMRSEED"
	EnvNameSubstPwd = "IBMSUBSPW"
)

// --- GDS record envelope ---

// GDSMagic is the record-type tag carried in bytes 2..3 of every
// logical record.
const GDSMagic uint16 = 0x12A0

// HeaderSize is the length of a minimal record header: 2 length bytes,
// 2 magic bytes, 2 reserved bytes, the variable-header length byte, 2
// flag bytes and the opcode.
const HeaderSize = 10

// MinVarHeader is the smallest legal variable-header length (its own
// length byte, two flag bytes, the opcode).
const MinVarHeader = 4

// MaxRecordSize bounds inbound records; the length field is 16 bits.
const MaxRecordSize = 0xFFFF

// Opcode identifies the operation a logical record performs.
type Opcode byte

const (
	OpNoOp          Opcode = 0
	OpInvite        Opcode = 1
	OpOutputOnly    Opcode = 2
	OpPutGet        Opcode = 3
	OpSaveScreen    Opcode = 4
	OpRestoreScreen Opcode = 5
	OpReadImmediate Opcode = 6
	OpReadScreen    Opcode = 8
	OpCancelInvite  Opcode = 10
	OpMsgLightOn    Opcode = 11
	OpMsgLightOff   Opcode = 12
)

func (o Opcode) String() string {
	switch o {
	case OpNoOp:
		return "no-op"
	case OpInvite:
		return "invite"
	case OpOutputOnly:
		return "output-only"
	case OpPutGet:
		return "put/get"
	case OpSaveScreen:
		return "save-screen"
	case OpRestoreScreen:
		return "restore-screen"
	case OpReadImmediate:
		return "read-immediate"
	case OpReadScreen:
		return "read-screen"
	case OpCancelInvite:
		return "cancel-invite"
	case OpMsgLightOn:
		return "message-light-on"
	case OpMsgLightOff:
		return "message-light-off"
	default:
		return "unknown"
	}
}

// Record header flags, big-endian over the two flag bytes.
const (
	FlagERR uint16 = 0x8000 // peer reports a data-stream error
	FlagATN uint16 = 0x4000 // attention key
	FlagSRQ uint16 = 0x0400 // system-request key
	FlagTRQ uint16 = 0x0200 // test-request key
	FlagHLP uint16 = 0x0100 // help in error state
)

// --- Display commands ---

// ESC precedes every command byte in the data stream.
const ESC byte = 0x04

// Command is a display command code following ESC.
type Command byte

const (
	CmdClearUnit          Command = 0x40
	CmdClearUnitAlternate Command = 0x20
	CmdClearFormatTable   Command = 0x50
	CmdWriteToDisplay     Command = 0x11
	CmdWriteErrorCode     Command = 0x21
	CmdWriteErrorCodeWin  Command = 0x22
	CmdReadInputFields    Command = 0x42
	CmdReadMDTFields      Command = 0x52
	CmdReadMDTFieldsAlt   Command = 0x82
	CmdReadScreen         Command = 0x62
	CmdReadImmediate      Command = 0x72
	CmdSaveScreen         Command = 0x02
	CmdRestoreScreen      Command = 0x12
	CmdRoll               Command = 0x23
	CmdWriteStructured    Command = 0xF3
)

func (c Command) String() string {
	switch c {
	case CmdClearUnit:
		return "clear unit"
	case CmdClearUnitAlternate:
		return "clear unit alternate"
	case CmdClearFormatTable:
		return "clear format table"
	case CmdWriteToDisplay:
		return "write to display"
	case CmdWriteErrorCode:
		return "write error code"
	case CmdWriteErrorCodeWin:
		return "write error code to window"
	case CmdReadInputFields:
		return "read input fields"
	case CmdReadMDTFields:
		return "read mdt fields"
	case CmdReadMDTFieldsAlt:
		return "read mdt fields alternate"
	case CmdReadScreen:
		return "read screen"
	case CmdReadImmediate:
		return "read immediate"
	case CmdSaveScreen:
		return "save screen"
	case CmdRestoreScreen:
		return "restore screen"
	case CmdRoll:
		return "roll"
	case CmdWriteStructured:
		return "write structured field"
	default:
		return "unknown"
	}
}

// Write-to-display control character 1: format-table housekeeping
// applied before the order stream.
const (
	CC1ResetMDT     byte = 0x40 // reset MDT on input fields
	CC1ResetMDTAll  byte = 0x20 // reset MDT on all fields
	CC1NullModified byte = 0x10 // null the contents of modified input fields
)

// Write-to-display control character 2: device actions applied after
// the order stream.
const (
	CC2ClearBlink  byte = 0x20
	CC2SetBlink    byte = 0x10
	CC2Unlock      byte = 0x08 // restore the keyboard
	CC2Alarm       byte = 0x04
	CC2MsgLightOff byte = 0x02
	CC2MsgLightOn  byte = 0x01
)

// --- Orders ---

// Order is a write-to-display order code. Data-stream bytes below 0x20
// that are not listed here are rejected as malformed; 0x00 is the null
// character and is treated as display data.
type Order byte

const (
	OrderSOH  Order = 0x01 // start of header
	OrderRA   Order = 0x02 // repeat to address
	OrderEA   Order = 0x03 // erase to address
	OrderTD   Order = 0x10 // transparent data
	OrderSBA  Order = 0x11 // set buffer address
	OrderWEA  Order = 0x12 // write extended attribute
	OrderIC   Order = 0x13 // insert cursor
	OrderMC   Order = 0x14 // move cursor
	OrderWDSF Order = 0x15 // write to display structured field
	OrderSF   Order = 0x1D // start of field
)

func (o Order) String() string {
	switch o {
	case OrderSOH:
		return "start of header"
	case OrderRA:
		return "repeat to address"
	case OrderEA:
		return "erase to address"
	case OrderTD:
		return "transparent data"
	case OrderSBA:
		return "set buffer address"
	case OrderWEA:
		return "write extended attribute"
	case OrderIC:
		return "insert cursor"
	case OrderMC:
		return "move cursor"
	case OrderWDSF:
		return "write structured field"
	case OrderSF:
		return "start of field"
	default:
		return "unknown"
	}
}

// --- Structured fields ---

// SFClassGUI is the structured-field class for display and GUI
// constructs; it is the only class this client interprets.
const SFClassGUI byte = 0xD9

// Structured-field types within the GUI class.
const (
	SFDefineSelection    byte = 0x50
	SFCreateWindow       byte = 0x51
	SFUnrestrictedCursor byte = 0x52
	SFDefineScrollbar    byte = 0x53
	SFRemoveWindow       byte = 0x5B
	SFRemoveAllGUI       byte = 0x5F
	SFQuery              byte = 0x70
)

// QueryAID leads the inbound query-reply record.
const QueryAID byte = 0x88

// --- AID codes ---

// AID identifies the key that produced an inbound (client to host)
// record.
type AID byte

const (
	AIDEnter    AID = 0xF1
	AIDHelp     AID = 0xF3
	AIDRollDown AID = 0xF4 // page up
	AIDRollUp   AID = 0xF5 // page down
	AIDPrint    AID = 0xF6
	AIDClear    AID = 0xBD
	AIDNone     AID = 0x00 // host-initiated reads carry no key
)

// FunctionKeyAID returns the AID for function key n (1..24), or false
// when n is outside that range. F1..F12 map to 0x31..0x3C and F13..F24
// to 0xB1..0xBC.
func FunctionKeyAID(n int) (AID, bool) {
	switch {
	case n >= 1 && n <= 12:
		return AID(0x30 + n), true
	case n >= 13 && n <= 24:
		return AID(0xB0 + n - 12), true
	default:
		return 0, false
	}
}

// --- Terminal types ---

// DefaultTerminalType is offered when the caller does not pick one.
const DefaultTerminalType = "IBM-3179-2"

// terminalGeometry maps negotiated terminal types to their display
// size.
var terminalGeometry = map[string][2]int{
	"IBM-5251-11": {24, 80},
	"IBM-5291-1":  {24, 80},
	"IBM-5292-2":  {24, 80},
	"IBM-3179-2":  {24, 80},
	"IBM-3196-A1": {24, 80},
	"IBM-3477-GA": {24, 80},
	"IBM-3477-FG": {27, 132},
	"IBM-3477-FC": {27, 132},
	"IBM-3180-2":  {27, 132},
}

// Geometry returns the screen size a terminal type implies.
func Geometry(terminalType string) (rows, cols int, ok bool) {
	g, ok := terminalGeometry[terminalType]
	if !ok {
		return 0, 0, false
	}
	return g[0], g[1], true
}

// Default and alternate display geometry.
const (
	DefaultRows = 24
	DefaultCols = 80
	WideRows    = 27
	WideCols    = 132
)
