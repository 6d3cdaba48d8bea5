package axp2101

import "fmt"

// Reason identifies one IRQ source: bank*8 + bit, bank 0 being register 0x48.
type Reason uint8

const (
	// Bank 0
	BatteryUnderTempWork Reason = iota
	BatteryOverTempWork
	BatteryUnderTempCharge
	BatteryOverTempCharge
	GaugeNewSOC
	WatchdogTimeout
	BatteryWarningLevel1
	BatteryWarningLevel2

	// Bank 1
	PowerKeyPositiveEdge
	PowerKeyNegativeEdge
	PowerKeyLong
	PowerKeyShort
	BatteryRemoved
	BatteryInserted
	VbusRemoved
	VbusInserted

	// Bank 2
	BatteryOverVoltage
	ChargerTimer
	DieOverTemp
	ChargeStarted
	ChargeDone
	BatfetOverCurrent
	LDOOverCurrent
	WatchdogExpire

	NumReasons
)

var reasonNames = [NumReasons]string{
	"BAT_UNDER_TEMP_WORK",
	"BAT_OVER_TEMP_WORK",
	"BAT_UNDER_TEMP_CHARGE",
	"BAT_OVER_TEMP_CHARGE",
	"GAUGE_NEW_SOC",
	"WDT_TIMEOUT",
	"BAT_WARNING_LEVEL1",
	"BAT_WARNING_LEVEL2",
	"PKEY_POSITIVE_EDGE",
	"PKEY_NEGATIVE_EDGE",
	"PKEY_LONG",
	"PKEY_SHORT",
	"BAT_REMOVED",
	"BAT_INSERTED",
	"VBUS_REMOVED",
	"VBUS_INSERTED",
	"BAT_OVER_VOLTAGE",
	"CHARGER_TIMER",
	"DIE_OVER_TEMP",
	"CHARGE_STARTED",
	"CHARGE_DONE",
	"BATFET_OVER_CURRENT",
	"LDO_OVER_CURRENT",
	"WDT_EXPIRE",
}

func (r Reason) String() string {
	if r < NumReasons {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Bank returns the status register index (0..2) and bit.
func (r Reason) Bank() (bank int, bit uint) {
	return int(r) / 8, uint(r) % 8
}

// ParseReason maps a String() name back to its Reason.
func ParseReason(s string) (Reason, bool) {
	for i, n := range reasonNames {
		if n == s {
			return Reason(i), true
		}
	}
	return 0, false
}
