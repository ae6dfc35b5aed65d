package message

import (
	"bytes"
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
	"github.com/Exa-Networks/exabgp-sub008/stream"
)

// Update is the UPDATE message (RFC 4271 §4.3). Legacy IPv4 unicast
// routes travel in the classic Withdrawn Routes / NLRI fields; every
// other negotiated family travels inside MP_REACH_NLRI/MP_UNREACH_NLRI
// path attributes, assembled automatically by Body and unpacked
// automatically by Decode so callers only ever see Withdrawn/Announced
// as plain per-family entries (spec §4.1/§4.2).
type Update struct {
	Withdrawn  []nlri.Entry
	Announced  []nlri.Entry
	Attributes []attribute.Attribute // excludes MP_REACH_NLRI/MP_UNREACH_NLRI, which Body derives
	NextHops   map[bgp.Family][]byte // per-family MP_REACH next hop; required for any non-IPv4-unicast announced family
	AddPath    map[bgp.Family]bool   // families using the RFC 7911 4-octet path-identifier prefix
}

func (Update) Type() bgp.MessageType { return bgp.MsgUpdate }

// IsEndOfRIB reports whether this UPDATE is an End-of-RIB marker: empty
// in every field (legacy IPv4 EOR, RFC 4724 §2) or an MP_UNREACH_NLRI
// with no NLRI data (multiprotocol EOR, RFC 4724 §2).
func (u Update) IsEndOfRIB() bool {
	if len(u.Withdrawn) != 0 || len(u.Announced) != 0 {
		return false
	}
	if len(u.Attributes) == 0 {
		return true
	}
	if mp, ok := u.Attributes[0].(*attribute.MPUnreachNLRI); ok && len(u.Attributes) == 1 {
		return mp.IsEndOfRIB()
	}
	return false
}

func (u Update) Body() []byte {
	withdrawnV4, withdrawnOther := splitByFamily(u.Withdrawn)
	announcedV4, announcedOther := splitByFamily(u.Announced)

	var buf bytes.Buffer

	var wbuf bytes.Buffer
	writeEntries(&wbuf, withdrawnV4, u.AddPath[bgp.FamilyIPv4Unicast])
	stream.WriteUint16(&buf, uint16(wbuf.Len()))
	buf.Write(wbuf.Bytes())

	attrs := append([]attribute.Attribute(nil), u.Attributes...)
	for family, entries := range withdrawnOther {
		var nbuf bytes.Buffer
		writeEntries(&nbuf, entries, u.AddPath[family])
		attrs = append(attrs, attribute.NewMPUnreachNLRI(family.AFI, family.SAFI, nbuf.Bytes()))
	}
	for family, entries := range announcedOther {
		var nbuf bytes.Buffer
		writeEntries(&nbuf, entries, u.AddPath[family])
		attrs = append(attrs, attribute.NewMPReachNLRI(family.AFI, family.SAFI, u.NextHops[family], nbuf.Bytes()))
	}

	var abuf bytes.Buffer
	for _, a := range attrs {
		abuf.Write(a.Bytes())
	}
	stream.WriteUint16(&buf, uint16(abuf.Len()))
	buf.Write(abuf.Bytes())

	writeEntries(&buf, announcedV4, u.AddPath[bgp.FamilyIPv4Unicast])
	return buf.Bytes()
}

func splitByFamily(entries []nlri.Entry) (v4 []nlri.Entry, other map[bgp.Family][]nlri.Entry) {
	other = make(map[bgp.Family][]nlri.Entry)
	for _, e := range entries {
		if e.NLRI.Family() == bgp.FamilyIPv4Unicast {
			v4 = append(v4, e)
			continue
		}
		f := e.NLRI.Family()
		other[f] = append(other[f], e)
	}
	return v4, other
}

func writeEntries(buf *bytes.Buffer, entries []nlri.Entry, addPath bool) {
	for _, e := range entries {
		if addPath {
			var id [4]byte
			binary.BigEndian.PutUint32(id[:], e.Path.ID)
			buf.Write(id[:])
		}
		buf.Write(e.NLRI.Bytes())
	}
}

// DecodeContext carries the per-session negotiated facts Update decoding
// needs: the attribute context (4-octet ASN) and which families use the
// ADD-PATH wire format.
type DecodeContext struct {
	Attribute *attribute.Context
	AddPath   map[bgp.Family]bool
}

// Diagnostic records one non-fatal issue surfaced while decoding an
// UPDATE, per RFC 7606: an attribute that was discarded, or one that
// converted the whole UPDATE to a withdrawal.
type Diagnostic struct {
	Kind   attribute.Kind
	Reason string
}

// DecodeUpdate parses an UPDATE body. A non-nil error is always a
// session-ending condition (KindReset); treat-as-withdraw and discard
// outcomes are reported via the returned diagnostics slice, with the
// treat-as-withdraw case reflected in the returned Update having its
// Announced NLRIs moved to Withdrawn, per RFC 7606 §2.
func DecodeUpdate(body []byte, ctx DecodeContext) (*Update, []Diagnostic, error) {
	buf := bytes.NewBuffer(body)
	if buf.Len() < 2 {
		return nil, nil, headerErr(bgp.SubcodeBadMessageLength, "UPDATE missing withdrawn-routes length")
	}
	withdrawnLen := int(stream.ReadUint16(buf))
	if buf.Len() < withdrawnLen {
		return nil, nil, headerErr(bgp.SubcodeBadMessageLength, "UPDATE withdrawn-routes section truncated")
	}
	withdrawnBytes := stream.ReadBytes(withdrawnLen, buf)
	withdrawn, err := decodeEntries(bgp.FamilyIPv4Unicast, withdrawnBytes, ctx.AddPath[bgp.FamilyIPv4Unicast])
	if err != nil {
		return nil, nil, headerErr(bgp.SubcodeInvalidNetworkField, err.Error())
	}

	if buf.Len() < 2 {
		return nil, nil, headerErr(bgp.SubcodeBadMessageLength, "UPDATE missing path-attribute length")
	}
	attrLen := int(stream.ReadUint16(buf))
	if buf.Len() < attrLen {
		return nil, nil, headerErr(bgp.SubcodeBadMessageLength, "UPDATE path-attribute section truncated")
	}
	attrBytes := stream.ReadBytes(attrLen, buf)

	attrs, mpReach, mpUnreach, diags, err := decodeAttributes(attrBytes, ctx.Attribute)
	if err != nil {
		return nil, diags, err
	}

	announced, err := decodeEntries(bgp.FamilyIPv4Unicast, buf.Bytes(), ctx.AddPath[bgp.FamilyIPv4Unicast])
	if err != nil {
		return nil, diags, headerErr(bgp.SubcodeInvalidNetworkField, err.Error())
	}

	nextHops := make(map[bgp.Family][]byte)
	for _, mp := range mpReach {
		family := bgp.Family{AFI: mp.AFI(), SAFI: mp.SAFI()}
		nextHops[family] = mp.NextHop()
		entries, err := decodeEntries(family, mp.NLRIData(), ctx.AddPath[family])
		if err != nil {
			diags = append(diags, Diagnostic{Kind: attribute.KindTreatAsWithdraw, Reason: err.Error()})
			continue
		}
		announced = append(announced, entries...)
	}
	for _, mp := range mpUnreach {
		family := bgp.Family{AFI: mp.AFI(), SAFI: mp.SAFI()}
		entries, err := decodeEntries(family, mp.NLRIData(), ctx.AddPath[family])
		if err != nil {
			diags = append(diags, Diagnostic{Kind: attribute.KindTreatAsWithdraw, Reason: err.Error()})
			continue
		}
		withdrawn = append(withdrawn, entries...)
	}

	u := &Update{Withdrawn: withdrawn, Announced: announced, Attributes: attrs, NextHops: nextHops, AddPath: ctx.AddPath}

	for _, d := range diags {
		if d.Kind == attribute.KindTreatAsWithdraw {
			u.Withdrawn = append(u.Withdrawn, u.Announced...)
			u.Announced = nil
			break
		}
	}

	return u, diags, nil
}

func decodeEntries(family bgp.Family, buf []byte, addPath bool) ([]nlri.Entry, error) {
	var out []nlri.Entry
	for len(buf) > 0 {
		var path nlri.PathInfo
		if addPath {
			if len(buf) < 4 {
				return out, errTruncatedPathID
			}
			path = nlri.PathInfo{ID: binary.BigEndian.Uint32(buf[:4]), Enabled: true}
			buf = buf[4:]
		}
		n, consumed, err := nlri.Decode(family, buf)
		if err != nil {
			return out, err
		}
		out = append(out, nlri.Entry{NLRI: n, Path: path})
		buf = buf[consumed:]
	}
	return out, nil
}

type updateError string

func (e updateError) Error() string { return string(e) }

const errTruncatedPathID updateError = "ADD-PATH identifier truncated"

// decodeAttributes walks the flags/code/length/value TLV stream,
// classifying each failure per RFC 7606. MP_REACH_NLRI/MP_UNREACH_NLRI
// are pulled out into their own return values rather than included in
// attrs, since the caller (DecodeUpdate) needs to fold their NLRI
// sections into Announced/Withdrawn rather than exposing them as
// ordinary attributes.
func decodeAttributes(raw []byte, ctx *attribute.Context) (attrs []attribute.Attribute, mpReach []*attribute.MPReachNLRI, mpUnreach []*attribute.MPUnreachNLRI, diags []Diagnostic, err error) {
	buf := bytes.NewBuffer(raw)
	for buf.Len() > 0 {
		if buf.Len() < 2 {
			return nil, nil, nil, diags, headerErr(bgp.SubcodeMalformedAttributeList, "attribute header truncated")
		}
		flags := bgp.Flags(stream.ReadByte(buf))
		code := attribute.Code(stream.ReadByte(buf))
		var length int
		if flags.ExtendedLength() {
			if buf.Len() < 2 {
				return nil, nil, nil, diags, headerErr(bgp.SubcodeMalformedAttributeList, "extended attribute length truncated")
			}
			length = int(stream.ReadUint16(buf))
		} else {
			if buf.Len() < 1 {
				return nil, nil, nil, diags, headerErr(bgp.SubcodeMalformedAttributeList, "attribute length truncated")
			}
			length = int(stream.ReadByte(buf))
		}
		if buf.Len() < length {
			return nil, nil, nil, diags, headerErr(bgp.SubcodeMalformedAttributeList, "attribute value truncated")
		}
		value := stream.ReadBytes(length, buf)

		a, decErr := attribute.Decode(ctx, flags, code, value)
		if decErr != nil {
			de, ok := decErr.(*attribute.DecodeError)
			if !ok {
				return nil, nil, nil, diags, decErr
			}
			switch de.Kind {
			case attribute.KindReset:
				notif := de.Notification
				if notif == nil {
					notif = bgp.NewNotification(bgp.NotifyUpdateMessageError, bgp.SubcodeMalformedAttributeList)
				}
				return nil, nil, nil, diags, &FramingError{Notification: notif, reason: de.Error()}
			case attribute.KindDiscard:
				diags = append(diags, Diagnostic{Kind: attribute.KindDiscard, Reason: de.Error()})
				continue
			case attribute.KindTreatAsWithdraw:
				diags = append(diags, Diagnostic{Kind: attribute.KindTreatAsWithdraw, Reason: de.Error()})
				// decodeMPReachNLRI still returns the attribute (AFI/SAFI
				// and NLRI section intact) for a treat-as-withdraw error
				// it can localize to the NEXT_HOP field alone; keep that
				// family's NLRI flowing into mpReach so DecodeUpdate can
				// fold it into Withdrawn instead of dropping it.
				switch v := a.(type) {
				case *attribute.MPReachNLRI:
					mpReach = append(mpReach, v)
				case *attribute.MPUnreachNLRI:
					mpUnreach = append(mpUnreach, v)
				}
				continue
			}
		}
		if a == nil {
			continue // unknown, non-transitive: discarded silently per spec
		}
		switch v := a.(type) {
		case *attribute.MPReachNLRI:
			mpReach = append(mpReach, v)
		case *attribute.MPUnreachNLRI:
			mpUnreach = append(mpUnreach, v)
		default:
			attrs = append(attrs, a)
		}
	}
	return attrs, mpReach, mpUnreach, diags, nil
}
