package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/Exa-Networks/exabgp-sub008/bgp"
	"github.com/Exa-Networks/exabgp-sub008/fsm"
)

// Neighbor is a single peer's fully-resolved configuration. Building
// these from a config file, a CLI flag set, or anything else that
// parses operator input is explicitly out of scope here (see the
// package doc); main constructs Neighbor values directly or reads a
// minimal, non-tokenized list encoded in one environment variable.
type Neighbor struct {
	Name string // key used by the reactor, the API, and log fields

	PeerAddress string // "host:port", dialed outbound or matched on accept
	LocalASN    bgp.ASN
	RemoteASN   bgp.ASN // expected; the session still negotiates via OPEN
	LocalID     bgp.Identifier

	HoldTime     time.Duration
	ConnectRetry time.Duration
	IdleHoldTime time.Duration

	Description string
	GroupName   string // drives the outgoing RIB's group-updates switch

	Families               []bgp.Family
	RouteRefreshEnabled    bool
	ExtendedMessageEnabled bool
	AddPath                map[bgp.Family]bgp.AddPathMode

	GracefulRestartTime time.Duration
	LocalRestarting     bool
}

// Capabilities renders n's locally-advertised capability set, the
// value fsm.Config.Capabilities carries into OPEN.
func (n Neighbor) Capabilities() *bgp.Capabilities {
	caps := bgp.NewCapabilities()
	for _, f := range n.Families {
		caps.Families[f] = true
	}
	for f, mode := range n.AddPath {
		caps.AddPath[f] = mode
	}
	caps.RouteRefresh = n.RouteRefreshEnabled
	caps.ExtendedMessage = n.ExtendedMessageEnabled
	caps.FourOctetASN = true
	if n.LocalRestarting || n.GracefulRestartTime > 0 {
		gr := &bgp.GracefulRestart{
			RestartTimeSeconds: uint16(n.GracefulRestartTime / time.Second),
			RestartFlag:        n.LocalRestarting,
			Families:           make(map[bgp.Family]bool),
		}
		for _, f := range n.Families {
			gr.Families[f] = true
		}
		caps.GracefulRestart = gr
	}
	return caps
}

// MachineConfig renders n as the fsm.Config its Machine runs with.
func (n Neighbor) MachineConfig() fsm.Config {
	return fsm.Config{
		LocalASN:     n.LocalASN,
		LocalID:      n.LocalID,
		HoldTime:     n.HoldTime,
		ConnectRetry: n.ConnectRetry,
		IdleHoldTime: n.IdleHoldTime,
		Capabilities: n.Capabilities(),
	}
}

// DefaultHoldTime is offered when a neighbor record's hold-time field
// is left empty (RFC 4271 §4.2 recommends 90s; exabgp's own default is
// larger still, so the teacher's 90s is kept).
const DefaultHoldTime = 90 * time.Second

// DefaultConnectRetry is the ConnectRetry and IdleHoldTime ParseNeighbors
// gives every neighbor; fsm.New's own fallback for a zero ConnectRetry
// is 120s.
const DefaultConnectRetry = 10 * time.Second

// ParseNeighbors decodes the minimal, non-tokenized neighbor list the
// exabgp_neighbors environment variable carries: semicolon-separated
// records of comma-separated fields
//
//	name,peer-addr,local-asn,remote-asn,local-id[,hold-time-seconds[,families]]
//
// families is a "|"-separated list of ipv4/ipv6 (default ipv4). This
// is deliberately not a general configuration language — the package
// doc's "config file tokenizer... out of scope" note applies equally
// here; a real deployment wires Neighbor values from whatever richer
// collaborator parses its own config format.
func ParseNeighbors(raw string) ([]Neighbor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []Neighbor
	for _, record := range strings.Split(raw, ";") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, ",")
		if len(fields) < 5 {
			return nil, fmt.Errorf("config: neighbor record %q needs at least 5 fields", record)
		}
		localASN, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: neighbor %q local-asn: %w", fields[0], err)
		}
		remoteASN, err := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: neighbor %q remote-asn: %w", fields[0], err)
		}
		localIDAddr, err := netip.ParseAddr(strings.TrimSpace(fields[4]))
		if err != nil {
			return nil, fmt.Errorf("config: neighbor %q local-id: %w", fields[0], err)
		}
		localID, err := bgp.IdentifierFromAddr(localIDAddr)
		if err != nil {
			return nil, fmt.Errorf("config: neighbor %q local-id: %w", fields[0], err)
		}

		holdTime := DefaultHoldTime
		if len(fields) > 5 && strings.TrimSpace(fields[5]) != "" {
			seconds, err := strconv.Atoi(strings.TrimSpace(fields[5]))
			if err != nil {
				return nil, fmt.Errorf("config: neighbor %q hold-time: %w", fields[0], err)
			}
			holdTime = time.Duration(seconds) * time.Second
		}

		families := []bgp.Family{bgp.FamilyIPv4Unicast}
		if len(fields) > 6 && strings.TrimSpace(fields[6]) != "" {
			families = families[:0]
			for _, name := range strings.Split(fields[6], "|") {
				switch strings.TrimSpace(name) {
				case "ipv4":
					families = append(families, bgp.FamilyIPv4Unicast)
				case "ipv6":
					families = append(families, bgp.FamilyIPv6Unicast)
				default:
					return nil, fmt.Errorf("config: neighbor %q unknown family %q", fields[0], name)
				}
			}
		}

		out = append(out, Neighbor{
			Name:         strings.TrimSpace(fields[0]),
			PeerAddress:  strings.TrimSpace(fields[1]),
			LocalASN:     bgp.ASN(localASN),
			RemoteASN:    bgp.ASN(remoteASN),
			LocalID:      localID,
			HoldTime:     holdTime,
			ConnectRetry: DefaultConnectRetry,
			IdleHoldTime: DefaultConnectRetry,
			Families:     families,
		})
	}
	return out, nil
}

// SendAddPath projects n's configured AddPath map down to the
// per-family send-enabled flags rib.New takes: only the families for
// which this neighbor is configured to send multiple paths.
func (n Neighbor) SendAddPath() map[bgp.Family]bool {
	out := make(map[bgp.Family]bool, len(n.AddPath))
	for f, mode := range n.AddPath {
		if mode&bgp.AddPathSend != 0 {
			out[f] = true
		}
	}
	return out
}
