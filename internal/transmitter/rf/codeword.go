package rf

import "github.com/oshokin/relay-switch/internal/domain/relay"

// CodewordLength is the number of Tri-State symbols per frame.
const CodewordLength = 12

// Tri-State symbols.
const (
	Symbol0 byte = '0'
	Symbol1 byte = '1'
	SymbolF byte = 'F'
)

const (
	stateOffset    = 10
	stateWidth     = 2
	systemWidth    = relay.SystemCodeBits
	channelOffset  = systemWidth
	fixedSlotWidth = relay.FixedRelayCount
)

// Codeword is the symbol sequence identifying an address and a state.
type Codeword [CodewordLength]byte

// String returns the symbols as text, e.g. "0FFFFF0FFF0F".
func (c Codeword) String() string {
	return string(c[:])
}

// Encode builds the codeword for addr and state.
//
// Tri-State addresses use the system code (true as '0', false as 'F') in
// symbols 0..4 and a one-hot channel selection in symbols 5..9. Fixed
// addresses one-hot select the relay in symbols 0..7 and pad 8..9 with 'F'.
// Symbols 10..11 select the state: On is "0F", Off is "F0".
func Encode(addr relay.Address, state relay.State) Codeword {
	var c Codeword

	for i := range c {
		c[i] = SymbolF
	}

	switch addr.Scheme() {
	case relay.SchemeTriState:
		for i, bit := range addr.SystemCode() {
			if bit {
				c[i] = Symbol0
			}
		}

		oneHot(c[channelOffset:channelOffset+relay.ChannelCount], addr.Channel().Index())
	case relay.SchemeFixed:
		oneHot(c[:fixedSlotWidth], addr.Relay()-1)
	}

	stateIndex := 0
	if state == relay.Off {
		stateIndex = 1
	}

	oneHot(c[stateOffset:stateOffset+stateWidth], stateIndex)

	return c
}

// oneHot writes '0' at index selected and 'F' everywhere else.
func oneHot(slots []byte, selected int) {
	for i := range slots {
		if i == selected {
			slots[i] = Symbol0
		} else {
			slots[i] = SymbolF
		}
	}
}
