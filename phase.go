package tlsprobe

import "github.com/mel2oo/tlsprobe/gid"

// Phase is a step of the probe state machine:
//
//	Init → Connecting → [Tunneling] → SendingHello → AwaitingResponse → Classifying → Done
//
// Failed is reachable from Connecting, Tunneling, SendingHello and
// AwaitingResponse.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseConnecting       Phase = "connecting"
	PhaseTunneling        Phase = "tunneling"
	PhaseSendingHello     Phase = "sending_hello"
	PhaseAwaitingResponse Phase = "awaiting_response"
	PhaseClassifying      Phase = "classifying"
	PhaseDone             Phase = "done"
	PhaseFailed           Phase = "failed"
)

// Observer is told about every phase a probe enters.
type Observer interface {
	ObservePhase(id gid.ProbeID, phase Phase)
}

type ObserverFunc func(id gid.ProbeID, phase Phase)

func (f ObserverFunc) ObservePhase(id gid.ProbeID, phase Phase) {
	f(id, phase)
}

type nopObserver struct{}

func (nopObserver) ObservePhase(gid.ProbeID, Phase) {}
