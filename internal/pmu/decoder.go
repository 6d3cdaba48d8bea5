// Package pmu decodes AXP2101 interrupts into power events.
package pmu

import "github.com/pocketgadget/gadgetd/internal/drivers/axp2101"

// Mask selects the IRQ sources the daemon acts on. Bank 1 drops the raw
// power-key edges (the short/long press bits carry the meaning); bank 2
// drops BATFET over-current and watchdog expiry.
var Mask = [3]byte{
	0b11111111,
	0b11111100,
	0b01011111,
}

// Decode returns one reason per masked status bit, bank 0 first and the
// lowest bit first within a bank.
func Decode(status [3]byte) []axp2101.Reason {
	var out []axp2101.Reason
	for bank := 0; bank < 3; bank++ {
		bits := status[bank] & Mask[bank]
		for bit := 0; bit < 8; bit++ {
			if bits&(1<<bit) != 0 {
				out = append(out, axp2101.Reason(bank*8+bit))
			}
		}
	}
	return out
}
