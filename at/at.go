package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Command framing
	Prefix  = "AT+"
	Assign  = "="
	Request = "?"
	Sep     = ","

	// Reply tags
	TagOK        = "+OK"
	TagID        = "+ID="
	TagSN        = "+SN="
	TagFW        = "+FW="
	TagFrequency = "+ATXFRQ="
	TagPower     = "+PWR="
	TagFormat    = "+AFMT="
	TagTransmit  = "+TX="
	TagError     = "+ERROR"
)

// Name identifies a KIM AT command.
type Name string

const (
	NamePing       Name = "PING"
	NameID         Name = "ID"
	NameSN         Name = "SN"
	NameFW         Name = "FW"
	NameFrequency  Name = "ATXFRQ"
	NamePower      Name = "PWR"
	NameFormat     Name = "AFMT"
	NameCW         Name = "CW"
	NameTransmit   Name = "TX"
	NameSaveConfig Name = "SAVE_CFG"
)

type Class int

const (
	ClassNeedsMoreData Class = iota // noise, keep reading
	ClassOK                         // acknowledged or data reply
	ClassError                      // +ERROR reported by the module
	ClassUnknown                    // content received but not understood
)

func (c Class) String() string {
	switch c {
	case ClassNeedsMoreData:
		return "needs-more-data"
	case ClassOK:
		return "ok"
	case ClassError:
		return "error"
	case ClassUnknown:
		return "unknown"
	}
	return "invalid"
}
