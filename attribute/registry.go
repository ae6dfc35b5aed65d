package attribute

import "github.com/Exa-Networks/exabgp-sub008/bgp"

// decodeFunc is the shape shared by decoders that need no session context.
type decodeFunc func(flags bgp.Flags, value []byte) (Attribute, error)

// decodeCtxFunc is the shape shared by decoders whose parsing depends on
// negotiated session facts (AS_PATH/AGGREGATOR ASN width).
type decodeCtxFunc func(flags bgp.Flags, code Code, value []byte, ctx *Context) (Attribute, error)

var simpleDecoders = map[Code]decodeFunc{
	CodeOrigin:              decodeOrigin,
	CodeNextHop:             decodeNextHop,
	CodeMED:                 decodeMED,
	CodeLocalPref:           decodeLocalPref,
	CodeAtomicAggregate:     decodeAtomicAggregate,
	CodeCommunities:         decodeCommunities,
	CodeExtendedCommunities: decodeExtendedCommunities,
	CodeLargeCommunities:    decodeLargeCommunities,
	CodeOriginatorID:        decodeOriginatorID,
	CodeClusterList:         decodeClusterList,
	CodeMPReachNLRI:         decodeMPReachNLRI,
	CodeMPUnreachNLRI:       decodeMPUnreachNLRI,
	CodeAIGP:                decodeAIGP,
	CodePMSITunnel:          decodePMSITunnel,
	CodeBGPLS:               decodeBGPLS,
	CodePrefixSID:           decodePrefixSID,
}

var ctxDecoders = map[Code]decodeCtxFunc{
	CodeASPath:        decodeASPath,
	CodeAS4Path:       decodeASPath,
	CodeAggregator:    decodeAggregator,
	CodeAS4Aggregator: decodeAggregator,
}

// Decode parses one path attribute value into its concrete type, given
// the flags and type code already stripped off the TLV header. It never
// panics: every failure mode is returned as a *DecodeError (see
// errors.go), per spec §4.1/§7's "no exceptions for control flow" rule.
//
// Unrecognized type codes follow RFC 4271 §5: if the TRANSITIVE bit is
// set, the attribute is kept opaque with PARTIAL forced on so it can be
// relayed to the next hop; otherwise it is silently discarded (returns
// nil, nil — not an error, since dropping an unknown non-transitive
// attribute is normal operation, not a fault).
func Decode(ctx *Context, flags bgp.Flags, code Code, value []byte) (Attribute, error) {
	if fn, ok := ctxDecoders[code]; ok {
		return fn(flags, code, value, ctx)
	}
	if fn, ok := simpleDecoders[code]; ok {
		return fn(flags, value)
	}
	if !flags.Transitive() {
		return nil, nil
	}
	return NewOpaque(flags.WithPartial(true), code, value), nil
}
