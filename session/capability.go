package session

// Capability names an operation in the Session interface.
type Capability int

const (
	CapGet Capability = iota
	CapPost
	CapGetMarkup
	CapPostMarkup
	CapGetJSON
	CapPostJSON
	CapDownload
	CapClearCookies
	CapDebug
)

var capabilityNames = [...]string{
	CapGet:          "get",
	CapPost:         "post",
	CapGetMarkup:    "getMarkup",
	CapPostMarkup:   "postMarkup",
	CapGetJSON:      "getJson",
	CapPostJSON:     "postJson",
	CapDownload:     "download",
	CapClearCookies: "clearCookies",
	CapDebug:        "debug",
}

func (c Capability) String() string {
	if c < 0 || int(c) >= len(capabilityNames) {
		return "unknown"
	}
	return capabilityNames[c]
}

// Capabilities lists every operation a Session declares, whether or not
// a particular Session supports it.
func Capabilities() []Capability {
	caps := make([]Capability, len(capabilityNames))
	for i := range caps {
		caps[i] = Capability(i)
	}
	return caps
}

// Supports reports whether s can perform c. Unsupported operations
// return a [*NotImplementedError].
func (s *Session) Supports(c Capability) bool {
	switch c {
	case CapGet, CapPost, CapGetMarkup, CapPostMarkup, CapGetJSON, CapPostJSON, CapDownload:
		return true
	case CapClearCookies:
		return s.jar != nil
	default:
		return false
	}
}
