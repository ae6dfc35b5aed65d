package attribute

import (
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
)

// OriginatorID is the optional non-transitive ORIGINATOR_ID attribute
// (RFC 4456): the router-id of the route's originator, added by the
// first route reflector.
type OriginatorID struct{ base }

// NewOriginatorID builds an ORIGINATOR_ID attribute.
func NewOriginatorID(id bgp.Identifier) *OriginatorID {
	return &OriginatorID{base{flags: bgp.OptionalNonTransitive, code: CodeOriginatorID, raw: uint32Bytes(uint32(id))}}
}

// ID returns the decoded router-id.
func (o *OriginatorID) ID() bgp.Identifier { return bgp.Identifier(decodeUint32(o.raw)) }

func decodeOriginatorID(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value) != 4 {
		return nil, discardErr("ORIGINATOR_ID attribute must be exactly 4 octets")
	}
	return &OriginatorID{base{flags: flags, code: CodeOriginatorID, raw: value}}, nil
}

// ClusterList is the optional non-transitive CLUSTER_LIST attribute
// (RFC 4456): the sequence of cluster-ids a route has been reflected
// through, used for reflection loop detection.
type ClusterList struct{ base }

// NewClusterList builds a CLUSTER_LIST attribute.
func NewClusterList(ids []uint32) *ClusterList {
	raw := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.BigEndian.PutUint32(raw[i*4:], id)
	}
	return &ClusterList{base{flags: bgp.OptionalNonTransitive, code: CodeClusterList, raw: raw}}
}

// IDs decodes the cluster-id list.
func (c *ClusterList) IDs() []uint32 {
	n := len(c.raw) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.BigEndian.Uint32(c.raw[i*4:])
	}
	return out
}

func decodeClusterList(flags bgp.Flags, value []byte) (Attribute, error) {
	if len(value)%4 != 0 {
		return nil, discardErr("CLUSTER_LIST attribute length is not a multiple of 4")
	}
	return &ClusterList{base{flags: flags, code: CodeClusterList, raw: value}}, nil
}
