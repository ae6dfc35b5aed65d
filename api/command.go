// Package api implements the external API transport (spec §4.6): a
// bidirectional, newline-framed command channel operators and scripts
// use to announce/withdraw routes and inspect session state, plus the
// JSON subscriber event stream the reactor publishes decoded UPDATEs,
// state transitions, and NOTIFICATIONs to.
package api

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/Exa-Networks/exabgp-sub008/attribute"
	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/nlri"
	"github.com/Exa-Networks/exabgp-sub008/rib"
)

// Verb is one of the fixed top-level command verbs (spec §4.6 "Command
// grammar (externally fixed)").
type Verb string

const (
	VerbShow      Verb = "show"
	VerbAnnounce  Verb = "announce"
	VerbWithdraw  Verb = "withdraw"
	VerbNeighbor  Verb = "neighbor"
	VerbTeardown  Verb = "teardown"
	VerbShutdown  Verb = "shutdown"
	VerbReload    Verb = "reload"
	VerbRestart   Verb = "restart"
	VerbFlush     Verb = "flush"
	VerbVersion   Verb = "version"
	VerbHelp      Verb = "help"
)

// Command is one parsed line from an API session.
type Command struct {
	Verb     Verb
	Selector string // "*", an IP, or the raw bracket-list text
	Args     []string
	Raw      string
}

// Response is either "done" or "error <reason>" (spec §4.6); Lines
// carries any additional output a `show` command produces.
type Response struct {
	OK     bool
	Reason string
	Lines  []string
}

func (r Response) String() string {
	var b strings.Builder
	for _, l := range r.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if r.OK {
		b.WriteString("done")
	} else {
		b.WriteString("error ")
		b.WriteString(r.Reason)
	}
	return b.String()
}

func errorResponse(format string, args ...interface{}) Response {
	return Response{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// ParseCommand tokenizes one line into a Command. The grammar is
// `<verb> [selector] <verb-specific args>`; `neighbor <selector> <verb>
// ...` is the long form spec.md's Scenario B uses and is normalized to
// the same Command shape by folding the embedded verb in.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	verb := Verb(fields[0])
	rest := fields[1:]
	if verb == VerbFlush && len(rest) > 0 && rest[0] == "adj-rib-out" {
		rest = rest[1:]
	}

	if verb == VerbNeighbor {
		if len(rest) < 2 {
			return Command{}, fmt.Errorf("neighbor command requires a selector and a verb")
		}
		selector := rest[0]
		inner := Verb(rest[1])
		return Command{Verb: inner, Selector: selector, Args: rest[2:], Raw: line}, nil
	}

	switch verb {
	case VerbShow, VerbAnnounce, VerbWithdraw, VerbTeardown, VerbFlush:
		if len(rest) == 0 {
			return Command{Verb: verb, Selector: "*", Raw: line}, nil
		}
		return Command{Verb: verb, Selector: rest[0], Args: rest[1:], Raw: line}, nil
	case VerbShutdown, VerbReload, VerbRestart, VerbVersion, VerbHelp:
		return Command{Verb: verb, Args: rest, Raw: line}, nil
	default:
		return Command{}, fmt.Errorf("unrecognized verb %q", fields[0])
	}
}

// Selectors turns a Command's selector into a set of peer names:
// "*" or empty matches every name in known; a bracket-list
// "[10.0.0.1,10.0.0.2]" is split on commas; anything else is a single
// literal name.
func Selectors(selector string, known []string) []string {
	if selector == "" || selector == "*" {
		return known
	}
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		inner := selector[1 : len(selector)-1]
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{selector}
}

// ParseAnnounce builds a rib.Change from an `announce route
// <prefix> next-hop <addr> [community [asn:val,...]]` argument list
// (spec §8 Scenario B). localASN/peerASN pick AS_PATH emptiness
// (iBGP) vs a one-hop path of localASN (eBGP), matching the scenario's
// own rule.
func ParseAnnounce(args []string, localASN, peerASN bgp.ASN) (rib.Change, error) {
	if len(args) < 4 || args[0] != "route" || args[2] != "next-hop" {
		return rib.Change{}, fmt.Errorf("expected: route <prefix> next-hop <addr> [community [asn:val,...]]")
	}
	prefix, err := netip.ParsePrefix(args[1])
	if err != nil {
		return rib.Change{}, fmt.Errorf("invalid prefix %q: %w", args[1], err)
	}
	nextHop, err := netip.ParseAddr(args[3])
	if err != nil {
		return rib.Change{}, fmt.Errorf("invalid next-hop %q: %w", args[3], err)
	}

	attrs := []attribute.Attribute{attribute.NewOrigin(attribute.OriginIGP), attribute.NewNextHop(nextHop)}
	if localASN == peerASN {
		attrs = append(attrs, attribute.NewASPath(nil, true))
	} else {
		attrs = append(attrs, attribute.NewASPath([]attribute.Segment{{Type: attribute.SegmentASSequence, ASNs: []bgp.ASN{localASN}}}, true))
	}

	if idx := indexOf(args, "community"); idx >= 0 && idx+1 < len(args) {
		communities, err := parseCommunityList(args[idx+1])
		if err != nil {
			return rib.Change{}, err
		}
		attrs = append(attrs, attribute.NewCommunities(communities))
	}

	family := bgp.FamilyIPv4Unicast
	if prefix.Addr().Is6() {
		family = bgp.FamilyIPv6Unicast
	}
	return rib.Change{
		NLRI:       nlri.Entry{NLRI: nlri.NewPrefix(family, prefix)},
		Attributes: attrs,
	}, nil
}

// ParseWithdraw builds the identity half of a Change (NLRI only; RIB
// withdrawal keys on family+NLRI, not attributes) from `withdraw route
// <prefix>`.
func ParseWithdraw(args []string) (rib.Change, error) {
	if len(args) < 2 || args[0] != "route" {
		return rib.Change{}, fmt.Errorf("expected: route <prefix>")
	}
	prefix, err := netip.ParsePrefix(args[1])
	if err != nil {
		return rib.Change{}, fmt.Errorf("invalid prefix %q: %w", args[1], err)
	}
	family := bgp.FamilyIPv4Unicast
	if prefix.Addr().Is6() {
		family = bgp.FamilyIPv6Unicast
	}
	return rib.Change{NLRI: nlri.Entry{NLRI: nlri.NewPrefix(family, prefix)}}, nil
}

func parseCommunityList(text string) ([]attribute.Community, error) {
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	parts := strings.Split(text, ",")
	out := make([]attribute.Community, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		halves := strings.SplitN(p, ":", 2)
		if len(halves) != 2 {
			return nil, fmt.Errorf("invalid community %q, want asn:value", p)
		}
		asn, err := strconv.ParseUint(halves[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid community asn in %q: %w", p, err)
		}
		val, err := strconv.ParseUint(halves[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid community value in %q: %w", p, err)
		}
		out = append(out, attribute.Community(asn<<16|val))
	}
	return out, nil
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
