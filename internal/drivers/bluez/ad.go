package bluez

import "fmt"

// AD types handled by Options.
const (
	adShortName    = 0x08
	adCompleteName = 0x09
	adManufacturer = 0xFF
)

// ADStruct is one length-type-value entry of advertising data.
type ADStruct struct {
	Type byte
	Data []byte
}

// ParseAD splits advertising data into its structures. A zero length byte
// ends the data; the rest is padding.
func ParseAD(b []byte) ([]ADStruct, error) {
	var out []ADStruct
	for i := 0; i < len(b); {
		n := int(b[i])
		if n == 0 {
			break
		}
		if i+1+n > len(b) {
			return nil, fmt.Errorf("bluez: AD structure at %d overruns data", i)
		}
		out = append(out, ADStruct{Type: b[i+1], Data: b[i+2 : i+1+n]})
		i += 1 + n
	}
	return out, nil
}
