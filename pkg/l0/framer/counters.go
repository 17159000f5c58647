package framer

import "fmt"

// CounterID addresses a counter in the counter sink, like a register
// address in a housekeeping map.
type CounterID uint16

// CounterKind identifies which fault a counter tracks.
type CounterKind int

// Counter kinds.
const (
	CounterOverflow CounterKind = iota
	CounterFlush
	CounterWrongHeaderChecksum
	CounterWrongDataChecksum
	numCounterKinds
)

var counterKindNames = [numCounterKinds]string{
	"overflow",
	"flush",
	"wrong_header_checksum",
	"wrong_data_checksum",
}

func (k CounterKind) String() string {
	if k >= 0 && k < numCounterKinds {
		return counterKindNames[k]
	}
	return fmt.Sprintf("CounterKind(%d)", int(k))
}

// CounterKinds lists all counter kinds.
func CounterKinds() []CounterKind {
	return []CounterKind{CounterOverflow, CounterFlush, CounterWrongHeaderChecksum, CounterWrongDataChecksum}
}

// CounterMap assigns a CounterID to every counter of a link.
type CounterMap struct {
	Overflow            CounterID
	Flush               CounterID
	WrongHeaderChecksum CounterID
	WrongDataChecksum   CounterID
}

// ID returns the CounterID of kind.
func (m CounterMap) ID(kind CounterKind) CounterID {
	switch kind {
	case CounterOverflow:
		return m.Overflow
	case CounterFlush:
		return m.Flush
	case CounterWrongHeaderChecksum:
		return m.WrongHeaderChecksum
	case CounterWrongDataChecksum:
		return m.WrongDataChecksum
	}
	panic(fmt.Sprintf("unknown counter kind %d", int(kind)))
}

// CounterSink receives published counter values.
type CounterSink interface {
	WriteCounter(id CounterID, value uint16)
}

// CounterSinkFunc is the func form of CounterSink.
type CounterSinkFunc func(id CounterID, value uint16)

// WriteCounter implements CounterSink.
func (f CounterSinkFunc) WriteCounter(id CounterID, value uint16) {
	f(id, value)
}

// Discard is a CounterSink dropping everything.
var Discard CounterSink = CounterSinkFunc(func(CounterID, uint16) {})

// CounterInfo describes a counter.
type CounterInfo struct {
	Link string
	Kind CounterKind
}

func (i CounterInfo) String() string {
	return i.Link + "/" + i.Kind.String()
}

// CounterIndex resolves counter IDs.
type CounterIndex map[CounterID]CounterInfo

// NewCounterIndex indexes the counters of links.
func NewCounterIndex(links ...Link) (CounterIndex, error) {
	index := make(CounterIndex)
	for _, link := range links {
		for _, kind := range CounterKinds() {
			id := link.Counters.ID(kind)
			info := CounterInfo{Link: link.Name, Kind: kind}
			if prev, ok := index[id]; ok {
				return nil, fmt.Errorf("%w: 0x%04x used by %s and %s", ErrDuplicateCounter, uint16(id), prev, info)
			}
			index[id] = info
		}
	}
	return index, nil
}

// Lookup returns the description of id.
func (x CounterIndex) Lookup(id CounterID) (CounterInfo, bool) {
	info, ok := x[id]
	return info, ok
}
