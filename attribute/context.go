package attribute

// Context carries the per-session negotiated facts the attribute codec
// needs in order to decode/encode correctly: whether 4-octet ASNs were
// negotiated (spec §4.1 AS_PATH) determines whether AS_PATH segments use
// 2- or 4-octet ASN fields.
type Context struct {
	FourByteASN bool
}
