package reconcile

import (
	"strings"

	"bridgewatch/internal/domain"
)

// Flow diagnosis reasons.
const (
	FlowOK              = "ok"
	FlowUnknownEvent    = "unknown_event_type"
	FlowInvalidPair     = "invalid_event_bridge_pair"
	FlowNetworkMismatch = "network_mismatch"
	FlowMissingNetworks = "missing_networks"
)

// IsValidFlow reports whether a transfer event type may be claimed on a bridge
// of the given type. Expatriations (home to foreign) are claimed on the import
// wrapper of the foreign chain; repatriations (foreign to home) on the export
// bridge of the home chain.
func IsValidFlow(event domain.EventType, bridge domain.BridgeType) bool {
	switch event {
	case domain.EventNewExpatriation:
		return bridge == domain.BridgeTypeImportWrapper
	case domain.EventNewRepatriation:
		return bridge == domain.BridgeTypeExport
	default:
		return false
	}
}

// FlowDiagnosis explains a strict flow decision.
type FlowDiagnosis struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// DiagnoseFlow is the strict variant of IsValidFlow: besides the event/bridge
// pairing it requires the claim's home and foreign networks to line up with the
// direction of the transfer.
func DiagnoseFlow(claim domain.Claim, transfer domain.Transfer) FlowDiagnosis {
	if transfer.EventType != domain.EventNewExpatriation && transfer.EventType != domain.EventNewRepatriation {
		return FlowDiagnosis{Reason: FlowUnknownEvent}
	}
	if !IsValidFlow(transfer.EventType, claim.BridgeType) {
		return FlowDiagnosis{Reason: FlowInvalidPair}
	}
	home, foreign := claim.HomeNetwork, claim.ForeignNetwork
	from, to := transfer.FromNetwork, transfer.ToNetwork
	if home == "" || foreign == "" || from == "" || to == "" {
		return FlowDiagnosis{Reason: FlowMissingNetworks}
	}

	var ok bool
	if transfer.EventType == domain.EventNewRepatriation {
		ok = sameNetwork(foreign, from) && sameNetwork(home, to)
	} else {
		ok = sameNetwork(home, from) && sameNetwork(foreign, to)
	}
	if !ok {
		return FlowDiagnosis{Reason: FlowNetworkMismatch}
	}
	return FlowDiagnosis{Valid: true, Reason: FlowOK}
}

func sameNetwork(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
