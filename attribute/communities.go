package attribute

import (
	"encoding/binary"
	"fmt"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// Community is a plain 32-bit regular community (RFC 1997), conventionally
// written "asn:value".
type Community uint32

func (c Community) String() string {
	return fmt.Sprintf("%d:%d", uint32(c)>>16, uint32(c)&0xFFFF)
}

// Communities is the optional transitive COMMUNITIES attribute: a list
// of 4-octet regular communities.
type Communities struct {
	base
}

// NewCommunities builds a COMMUNITIES attribute.
func NewCommunities(values []Community) *Communities {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return &Communities{base{flags: bgp.OptionalTransitiveFlags, code: CodeCommunities, raw: raw}}
}

// Values decodes the community list.
func (c *Communities) Values() []Community {
	n := len(c.raw) / 4
	out := make([]Community, n)
	for i := 0; i < n; i++ {
		out[i] = Community(binary.BigEndian.Uint32(c.raw[i*4:]))
	}
	return out
}

func decodeCommunities(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value)%4 != 0 {
		return nil, treatAsWithdrawErr("COMMUNITIES attribute length is not a multiple of 4")
	}
	return &Communities{base{flags: flags, code: CodeCommunities, raw: value}}, nil
}

// ExtendedCommunity is one opaque 8-octet extended community (RFC 4360).
// This speaker keys and forwards extended communities (notably Route
// Targets) without interpreting every registered sub-type; the first two
// octets (type/sub-type high bits) are exposed for RIB/API filtering.
type ExtendedCommunity [8]byte

func (e ExtendedCommunity) Type() byte    { return e[0] &^ 0x80 } // strip the IANA-transitive bit
func (e ExtendedCommunity) IsTransitive() bool { return e[0]&0x40 == 0 }
func (e ExtendedCommunity) SubType() byte { return e[1] }

// ExtendedCommunities is the optional transitive EXTENDED_COMMUNITIES
// attribute (RFC 4360): a list of 8-octet values. A value whose length
// is not a multiple of 8 is treated as withdraw, so the RFC 5701
// IPv6-address-specific form (20-octet values) is not handled by this
// type.
type ExtendedCommunities struct {
	base
}

// NewExtendedCommunities builds an EXTENDED_COMMUNITIES attribute from
// 8-octet values.
func NewExtendedCommunities(values []ExtendedCommunity) *ExtendedCommunities {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		copy(raw[i*8:], v[:])
	}
	return &ExtendedCommunities{base{flags: bgp.OptionalTransitiveFlags, code: CodeExtendedCommunities, raw: raw}}
}

// Values decodes the 8-octet extended community list.
func (e *ExtendedCommunities) Values() []ExtendedCommunity {
	n := len(e.raw) / 8
	out := make([]ExtendedCommunity, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], e.raw[i*8:(i+1)*8])
	}
	return out
}

func decodeExtendedCommunities(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value)%8 != 0 {
		return nil, treatAsWithdrawErr("EXTENDED_COMMUNITIES attribute length is not a multiple of 8")
	}
	return &ExtendedCommunities{base{flags: flags, code: CodeExtendedCommunities, raw: value}}, nil
}

// LargeCommunity is a 12-octet large community (RFC 8092): global admin,
// local data part 1, local data part 2.
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

func (l LargeCommunity) String() string {
	return fmt.Sprintf("%d:%d:%d", l.GlobalAdmin, l.LocalData1, l.LocalData2)
}

// LargeCommunities is the optional transitive LARGE_COMMUNITIES attribute.
type LargeCommunities struct {
	base
}

// NewLargeCommunities builds a LARGE_COMMUNITIES attribute.
func NewLargeCommunities(values []LargeCommunity) *LargeCommunities {
	raw := make([]byte, 12*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(raw[i*12:], v.GlobalAdmin)
		binary.BigEndian.PutUint32(raw[i*12+4:], v.LocalData1)
		binary.BigEndian.PutUint32(raw[i*12+8:], v.LocalData2)
	}
	return &LargeCommunities{base{flags: bgp.OptionalTransitiveFlags, code: CodeLargeCommunities, raw: raw}}
}

// Values decodes the large-community list.
func (l *LargeCommunities) Values() []LargeCommunity {
	n := len(l.raw) / 12
	out := make([]LargeCommunity, n)
	for i := 0; i < n; i++ {
		out[i] = LargeCommunity{
			GlobalAdmin: binary.BigEndian.Uint32(l.raw[i*12:]),
			LocalData1:  binary.BigEndian.Uint32(l.raw[i*12+4:]),
			LocalData2:  binary.BigEndian.Uint32(l.raw[i*12+8:]),
		}
	}
	return out
}

func decodeLargeCommunities(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value)%12 != 0 {
		return nil, treatAsWithdrawErr("LARGE_COMMUNITIES attribute length is not a multiple of 12")
	}
	return &LargeCommunities{base{flags: flags, code: CodeLargeCommunities, raw: value}}, nil
}
