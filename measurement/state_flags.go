package measurement

import (
	"math/bits"
	"strings"
)

// StateFlags is the 32-bit quality word attached to every measurement.
type StateFlags uint32

const (
	Normal              StateFlags = 0
	BadData             StateFlags = 1 << 0
	SuspectData         StateFlags = 1 << 1
	OverRangeError      StateFlags = 1 << 2
	UnderRangeError     StateFlags = 1 << 3
	AlarmHigh           StateFlags = 1 << 4
	AlarmLow            StateFlags = 1 << 5
	WarningHigh         StateFlags = 1 << 6
	WarningLow          StateFlags = 1 << 7
	FlatlineAlarm       StateFlags = 1 << 8
	ComparisonAlarm     StateFlags = 1 << 9
	ROCAlarm            StateFlags = 1 << 10
	ReceivedAsBad       StateFlags = 1 << 11
	CalculatedValue     StateFlags = 1 << 12
	CalculationError    StateFlags = 1 << 13
	CalculationWarning  StateFlags = 1 << 14
	ReservedQualityFlag StateFlags = 1 << 15
	BadTime             StateFlags = 1 << 16
	SuspectTime         StateFlags = 1 << 17
	LateTimeAlarm       StateFlags = 1 << 18
	FutureTimeAlarm     StateFlags = 1 << 19
	UpSampled           StateFlags = 1 << 20
	DownSampled         StateFlags = 1 << 21
	DiscardedValue      StateFlags = 1 << 22
	ReservedTimeFlag    StateFlags = 1 << 23
	UserDefinedFlag1    StateFlags = 1 << 24
	UserDefinedFlag2    StateFlags = 1 << 25
	UserDefinedFlag3    StateFlags = 1 << 26
	UserDefinedFlag4    StateFlags = 1 << 27
	UserDefinedFlag5    StateFlags = 1 << 28
	SystemError         StateFlags = 1 << 29
	SystemWarning       StateFlags = 1 << 30
	MeasurementError    StateFlags = 1 << 31
)

// Category masks group the fine-grained flags into the six coarse categories
// carried by the compact record. User-defined flags belong to no category.
const (
	DataRangeMask       = OverRangeError | UnderRangeError | AlarmHigh | AlarmLow | WarningHigh | WarningLow
	DataQualityMask     = BadData | SuspectData | FlatlineAlarm | ComparisonAlarm | ROCAlarm | ReceivedAsBad | CalculationError | CalculationWarning | ReservedQualityFlag
	TimeQualityMask     = BadTime | SuspectTime | LateTimeAlarm | FutureTimeAlarm | UpSampled | DownSampled | ReservedTimeFlag
	SystemIssueMask     = SystemError | SystemWarning | MeasurementError
	CalculatedValueMask = CalculatedValue
	DiscardedValueMask  = DiscardedValue
)

var flagNames = [32]string{
	"BadData", "SuspectData", "OverRangeError", "UnderRangeError",
	"AlarmHigh", "AlarmLow", "WarningHigh", "WarningLow",
	"FlatlineAlarm", "ComparisonAlarm", "ROCAlarm", "ReceivedAsBad",
	"CalculatedValue", "CalculationError", "CalculationWarning", "ReservedQualityFlag",
	"BadTime", "SuspectTime", "LateTimeAlarm", "FutureTimeAlarm",
	"UpSampled", "DownSampled", "DiscardedValue", "ReservedTimeFlag",
	"UserDefinedFlag1", "UserDefinedFlag2", "UserDefinedFlag3", "UserDefinedFlag4",
	"UserDefinedFlag5", "SystemError", "SystemWarning", "MeasurementError",
}

// Has reports whether every bit of mask is set.
func (f StateFlags) Has(mask StateFlags) bool {
	return f&mask == mask
}

// Any reports whether at least one bit of mask is set.
func (f StateFlags) Any(mask StateFlags) bool {
	return f&mask != 0
}

// String lists the set flag names joined by '|', or "Normal".
func (f StateFlags) String() string {
	if f == Normal {
		return "Normal"
	}

	var sb strings.Builder
	for rest := uint32(f); rest != 0; rest &= rest - 1 {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(flagNames[bits.TrailingZeros32(rest)])
	}

	return sb.String()
}
