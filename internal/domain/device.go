package domain

// ASIL is the integer criticality level assigned to a device, 1 (lowest)
// through 4 (highest). Higher levels escalate after fewer faults.
type ASIL int

const (
	ASIL1 ASIL = 1
	ASIL2 ASIL = 2
	ASIL3 ASIL = 3
	ASIL4 ASIL = 4
)

// DeviceStatus is the monotonic health state of a device. It only ever
// escalates; clearing it back to OK is a maintenance action outside the
// kernel.
type DeviceStatus uint8

const (
	DeviceOK DeviceStatus = iota
	DeviceDegraded
	DeviceDead
)

// String returns the downlink name of the status.
func (s DeviceStatus) String() string {
	switch s {
	case DeviceOK:
		return "OK"
	case DeviceDegraded:
		return "DEGRADED"
	case DeviceDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is a stable small-integer hardware error report, grouped by
// subsystem. Codes are part of the downlink contract and never renumbered.
type ErrorCode uint8

// Generic codes 0x0–0x9.
const (
	NoError              ErrorCode = 0x0
	DeviceNotInitialised ErrorCode = 0x1
	InvalidDeviceName    ErrorCode = 0x2
	DeviceUnresponsive   ErrorCode = 0x3
	DeviceBusTimeout     ErrorCode = 0x4
	DeviceChecksumFault  ErrorCode = 0x5
	DeviceOverTemp       ErrorCode = 0x6
	DeviceUnderVoltage   ErrorCode = 0x7
	DeviceOverCurrent    ErrorCode = 0x8
	DeviceSelfTestFailed ErrorCode = 0x9
)

// IMU codes 0xA–0xC.
const (
	IMUErrorCode       ErrorCode = 0xA
	IMUDropCommand     ErrorCode = 0xB
	IMUFatalError      ErrorCode = 0xC
)

// RTC codes 0xD–0xE.
const (
	RTCLostPower  ErrorCode = 0xD
	RTCBatteryLow ErrorCode = 0xE
)

// GPS codes 0xF.
const (
	GPSUpdateCheckFailed ErrorCode = 0xF
)

// Radio codes 0x10–0x16.
const (
	RadioRC64KCalibrationFailed ErrorCode = 0x10
	RadioRC13MCalibrationFailed ErrorCode = 0x11
	RadioPLLCalibrationFailed   ErrorCode = 0x12
	RadioADCCalibrationFailed   ErrorCode = 0x13
	RadioImgCalibrationFailed   ErrorCode = 0x14
	RadioXOSCStartFailed        ErrorCode = 0x15
	RadioPARampingFailed        ErrorCode = 0x16
)

// Power monitor codes 0x17.
const (
	PowerMonitorOvercurrentAlert ErrorCode = 0x17
)

// Torque coil codes 0x18–0x1E.
const (
	CoilOvercurrentEvent      ErrorCode = 0x18
	CoilOvervoltageEvent      ErrorCode = 0x19
	CoilUndervoltageLockout   ErrorCode = 0x1A
	CoilThermalShutdown       ErrorCode = 0x1B
	CoilExtendedCurrentLimit  ErrorCode = 0x1C
	CoilThrottleOutsideRange  ErrorCode = 0x1D
	CoilStallEvent            ErrorCode = 0x1E
)

// Light sensor codes 0x1F–0x21.
const (
	LightSensorAboveThreshold ErrorCode = 0x1F
	LightSensorBelowThreshold ErrorCode = 0x20
	LightSensorOverflow       ErrorCode = 0x21
)

// Charger codes 0x22–0x25.
const (
	ChargerSafetyExpired   ErrorCode = 0x22
	ChargerBatteryOVP      ErrorCode = 0x23
	ChargerThermalShutdown ErrorCode = 0x24
	ChargerVBusOVP         ErrorCode = 0x25
)

// Heater codes 0x26–0x28.
const (
	HeaterStuckOn       ErrorCode = 0x26
	HeaterStuckOff      ErrorCode = 0x27
	HeaterSensorInvalid ErrorCode = 0x28
)

// Watchdog codes 0x29–0x2A.
const (
	WatchdogEarlyKick  ErrorCode = 0x29
	WatchdogMissedKick ErrorCode = 0x2A
)
