package domain

// TaskID identifies one periodic flight task. The set is closed: the
// per-mode activation tables are checked for exhaustiveness at test time,
// so a forgotten task-in-mode mapping fails the build gate rather than
// surfacing as a runtime gap.
type TaskID uint8

const (
	TaskCommand TaskID = iota
	TaskTiming
	TaskEPS
	TaskOBDH
	TaskIMU
	TaskADCS
	TaskComms
	TaskThermal
	TaskGPS
	TaskTelemetry
	TaskMonitor

	taskCount
)

// TaskIDs lists every task identifier, in ascending order.
func TaskIDs() []TaskID {
	all := make([]TaskID, 0, taskCount)
	for id := TaskID(0); id < taskCount; id++ {
		all = append(all, id)
	}
	return all
}

// String returns the task's log name.
func (id TaskID) String() string {
	switch id {
	case TaskCommand:
		return "COMMAND"
	case TaskTiming:
		return "TIMING"
	case TaskEPS:
		return "EPS"
	case TaskOBDH:
		return "OBDH"
	case TaskIMU:
		return "IMU"
	case TaskADCS:
		return "ADCS"
	case TaskComms:
		return "COMMS"
	case TaskThermal:
		return "THERMAL"
	case TaskGPS:
		return "GPS"
	case TaskTelemetry:
		return "TELEMETRY"
	case TaskMonitor:
		return "MONITOR"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether id is one of the declared tasks.
func (id TaskID) Valid() bool { return id < taskCount }

// ParseTaskID resolves an uplinked task name. The bool is false for names
// outside the closed enumeration.
func ParseTaskID(name string) (TaskID, bool) {
	for id := TaskID(0); id < taskCount; id++ {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}

// TaskParams is one row of a mode's activation table.
type TaskParams struct {
	FrequencyHz   float64 // invocation rate relative to wall time
	Priority      int     // 1 is most urgent; ties break by ascending TaskID
	DeferFirstRun bool    // skip the activation tick to avoid start bursts
}

// ModeTaskConfig maps each mode to its task-activation table. Loaded once
// at boot, immutable at runtime. COMMAND always leads, sensor tasks trail,
// and DOWNLINK promotes COMMS and TELEMETRY to the front of the tick.
var ModeTaskConfig = map[Mode]map[TaskID]TaskParams{
	ModeStartup: {
		TaskCommand: {FrequencyHz: 1, Priority: 1},
		TaskTiming:  {FrequencyHz: 1, Priority: 2},
		TaskEPS:     {FrequencyHz: 1, Priority: 1},
		TaskOBDH:    {FrequencyHz: 1, Priority: 3},
		TaskMonitor: {FrequencyHz: 1, Priority: 4},
	},
	ModeNominal: {
		TaskCommand:   {FrequencyHz: 10, Priority: 1},
		TaskTiming:    {FrequencyHz: 1, Priority: 2},
		TaskEPS:       {FrequencyHz: 1, Priority: 1},
		TaskOBDH:      {FrequencyHz: 1, Priority: 2},
		TaskIMU:       {FrequencyHz: 10, Priority: 5},
		TaskADCS:      {FrequencyHz: 1, Priority: 2, DeferFirstRun: true},
		TaskComms:     {FrequencyHz: 1, Priority: 5, DeferFirstRun: true},
		TaskThermal:   {FrequencyHz: 1, Priority: 5, DeferFirstRun: true},
		TaskGPS:       {FrequencyHz: 0.5, Priority: 5, DeferFirstRun: true},
		TaskTelemetry: {FrequencyHz: 1, Priority: 4, DeferFirstRun: true},
		TaskMonitor:   {FrequencyHz: 1, Priority: 4},
	},
	ModeDownlink: {
		TaskCommand:   {FrequencyHz: 1, Priority: 1},
		TaskTiming:    {FrequencyHz: 1, Priority: 2},
		TaskComms:     {FrequencyHz: 0.2, Priority: 1},
		TaskTelemetry: {FrequencyHz: 1, Priority: 1, DeferFirstRun: true},
		TaskEPS:       {FrequencyHz: 1, Priority: 1},
		TaskOBDH:      {FrequencyHz: 1, Priority: 2},
		TaskIMU:       {FrequencyHz: 1, Priority: 3},
		TaskADCS:      {FrequencyHz: 1, Priority: 2, DeferFirstRun: true},
		TaskThermal:   {FrequencyHz: 1, Priority: 5, DeferFirstRun: true},
		TaskGPS:       {FrequencyHz: 0.2, Priority: 5, DeferFirstRun: true},
		TaskMonitor:   {FrequencyHz: 1, Priority: 4},
	},
	ModeLowPower: {
		TaskCommand: {FrequencyHz: 1, Priority: 1},
		TaskTiming:  {FrequencyHz: 1, Priority: 2},
		TaskEPS:     {FrequencyHz: 1, Priority: 1},
		TaskOBDH:    {FrequencyHz: 1, Priority: 2},
		TaskIMU:     {FrequencyHz: 2, Priority: 3},
		TaskADCS:    {FrequencyHz: 1, Priority: 2, DeferFirstRun: true},
		TaskMonitor: {FrequencyHz: 1, Priority: 4},
	},
	ModeSafe: {
		TaskCommand: {FrequencyHz: 1, Priority: 1},
		TaskTiming:  {FrequencyHz: 1, Priority: 2},
		TaskEPS:     {FrequencyHz: 1, Priority: 1},
		TaskOBDH:    {FrequencyHz: 0.2, Priority: 2},
		TaskIMU:     {FrequencyHz: 2, Priority: 3},
		TaskADCS:    {FrequencyHz: 1, Priority: 2, DeferFirstRun: true},
		TaskMonitor: {FrequencyHz: 1, Priority: 4},
	},
}
