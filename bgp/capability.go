package bgp

// CapabilityCode names the one-octet capability code carried in OPEN
// optional parameters (RFC 5492).
type CapabilityCode uint8

const (
	CapMultiprotocol   CapabilityCode = 1
	CapRouteRefresh    CapabilityCode = 2
	CapExtendedNextHop CapabilityCode = 5
	CapExtendedMessage CapabilityCode = 6
	CapGracefulRestart CapabilityCode = 64
	CapFourOctetASN    CapabilityCode = 65
	CapAddPath         CapabilityCode = 69
	CapEnhancedRefresh CapabilityCode = 70
	CapRouteRefreshOld CapabilityCode = 128 // pre-RFC Cisco code point, still seen on the wire
)

// AddPathMode encodes the send/receive directionality negotiated for
// ADD-PATH (RFC 7911) on a single family.
type AddPathMode uint8

const (
	AddPathNone    AddPathMode = 0
	AddPathReceive AddPathMode = 1
	AddPathSend    AddPathMode = 2
	AddPathBoth    AddPathMode = AddPathReceive | AddPathSend
)

// Capabilities is the capability set negotiated (or requested) for one
// session: a mapping from capability code to its raw, possibly
// family-keyed values. Each capability has its own merge rule when two
// sets (sent, received) are intersected; see Negotiate.
type Capabilities struct {
	Families        map[Family]bool
	AddPath         map[Family]AddPathMode
	RouteRefresh    bool
	EnhancedRefresh bool
	FourOctetASN    bool
	ExtendedMessage bool
	ExtendedNextHop bool
	GracefulRestart *GracefulRestart
}

// GracefulRestart is the decoded value of the Graceful Restart capability
// (RFC 4724): a restart-time plus the set of families for which the
// sender claims to preserve forwarding state across restart.
type GracefulRestart struct {
	RestartTimeSeconds uint16
	RestartFlag        bool
	Families           map[Family]bool // per-family forwarding-preserved flag
}

// NewCapabilities returns an empty, non-nil capability set.
func NewCapabilities() *Capabilities {
	return &Capabilities{
		Families: make(map[Family]bool),
		AddPath:  make(map[Family]AddPathMode),
	}
}

// Negotiate computes the effective capability set for a session from
// what the local speaker sent and what the peer sent back, per the
// per-capability merge rules in spec §3:
//   - AFI/SAFI families: intersection (both sides must list it).
//   - ADD-PATH: per-family send/receive flags, each direction
//     independently ANDed (I can only send what you said you'd receive,
//     and vice versa).
//   - 4-byte ASN, route-refresh, enhanced-refresh, extended-message,
//     extended-next-hop: both-or-neither.
//   - Graceful restart: present only if both sides advertised it; its
//     families are the per-family intersection of forwarding-preserved
//     flags; RestartTimeSeconds is the peer's advertised value (the
//     receiver's restart-time governs how long it is willing to wait).
func Negotiate(sent, recv *Capabilities) *Capabilities {
	out := NewCapabilities()
	if sent == nil || recv == nil {
		return out
	}
	for f := range sent.Families {
		if recv.Families[f] {
			out.Families[f] = true
		}
	}
	for f, sendMode := range sent.AddPath {
		recvMode := recv.AddPath[f]
		var mode AddPathMode
		// Local "send" capability requires the peer advertised "receive",
		// and vice versa for local "receive".
		if sendMode&AddPathSend != 0 && recvMode&AddPathReceive != 0 {
			mode |= AddPathSend
		}
		if sendMode&AddPathReceive != 0 && recvMode&AddPathSend != 0 {
			mode |= AddPathReceive
		}
		if mode != AddPathNone {
			out.AddPath[f] = mode
		}
	}
	out.RouteRefresh = sent.RouteRefresh && recv.RouteRefresh
	out.EnhancedRefresh = sent.EnhancedRefresh && recv.EnhancedRefresh
	out.FourOctetASN = sent.FourOctetASN && recv.FourOctetASN
	out.ExtendedMessage = sent.ExtendedMessage && recv.ExtendedMessage
	out.ExtendedNextHop = sent.ExtendedNextHop && recv.ExtendedNextHop
	if sent.GracefulRestart != nil && recv.GracefulRestart != nil {
		gr := &GracefulRestart{
			RestartTimeSeconds: recv.GracefulRestart.RestartTimeSeconds,
			RestartFlag:        recv.GracefulRestart.RestartFlag,
			Families:           make(map[Family]bool),
		}
		for f := range sent.GracefulRestart.Families {
			if recv.GracefulRestart.Families[f] {
				gr.Families[f] = true
			}
		}
		out.GracefulRestart = gr
	}
	return out
}

// MaxMessageSize returns the largest BGP message this negotiated context
// permits (spec §4.1 Framing): the extended size if the Extended Message
// capability was negotiated, else the standard maximum.
func (c *Capabilities) MaxMessageSize() int {
	if c != nil && c.ExtendedMessage {
		return MaxExtendedMessageLength
	}
	return MaxMessageLength
}
