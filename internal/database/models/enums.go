package models

import "fmt"

// CallDirection values are persisted downstream and must not change.
type CallDirection int

const (
	DirectionOutbound CallDirection = 0
	DirectionInbound  CallDirection = 1
)

func (d CallDirection) String() string {
	switch d {
	case DirectionOutbound:
		return "outbound"
	case DirectionInbound:
		return "inbound"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// TransferCause tells how a call was redirected.
type TransferCause int

const (
	TransferNone             TransferCause = 0
	TransferNormal           TransferCause = 1
	TransferConference       TransferCause = 2
	TransferAuto             TransferCause = 3
	TransferPreConferenceNow TransferCause = 4
	TransferConferenceEnd    TransferCause = 5
	TransferConferenceAdd    TransferCause = 6
)

var transferCauseNames = map[TransferCause]string{
	TransferNone:             "NO_TRANSFER",
	TransferNormal:           "NORMAL",
	TransferConference:       "CONFERENCE",
	TransferAuto:             "AUTO",
	TransferPreConferenceNow: "PRE_CONFERENCE_NOW",
	TransferConferenceEnd:    "CONFERENCE_END",
	TransferConferenceAdd:    "CONFERENCE_ADD",
}

func (c TransferCause) String() string {
	if s, ok := transferCauseNames[c]; ok {
		return s
	}
	return fmt.Sprintf("TRANSFER_CAUSE(%d)", int(c))
}

// AssignmentCause tells how a call was attributed to an employee.
type AssignmentCause int

const (
	AssignmentNotAssigned     AssignmentCause = 0
	AssignmentExtension       AssignmentCause = 1
	AssignmentAuthCode        AssignmentCause = 2
	AssignmentIgnoredAuthCode AssignmentCause = 3
	AssignmentRanges          AssignmentCause = 4
	AssignmentConference      AssignmentCause = 5
)

var assignmentCauseNames = map[AssignmentCause]string{
	AssignmentNotAssigned:     "NOT_ASSIGNED",
	AssignmentExtension:       "EXTENSION",
	AssignmentAuthCode:        "AUTH_CODE",
	AssignmentIgnoredAuthCode: "IGNORED_AUTH_CODE",
	AssignmentRanges:          "RANGES",
	AssignmentConference:      "CONFERENCE",
}

func (c AssignmentCause) String() string {
	if s, ok := assignmentCauseNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ASSIGNMENT_CAUSE(%d)", int(c))
}

// Telephony type ids. Stable across releases.
const (
	TypeCelufijo              int64 = 1
	TypeCellular              int64 = 2
	TypeLocal                 int64 = 3
	TypeNational              int64 = 4
	TypeInternational         int64 = 5
	TypeSatellite             int64 = 6
	TypeInternalSimple        int64 = 7
	TypeLocalInternal         int64 = 8
	TypeNationalInternal      int64 = 9
	TypeInternationalInternal int64 = 10
	TypeSpecialServices       int64 = 11
	TypeLocalExtended         int64 = 12
	TypeInbound               int64 = 13
	TypeErrors                int64 = 96
	TypeNoConsumption         int64 = 97
)

var telephonyTypeNames = map[int64]string{
	TypeCelufijo:              "CELUFIJO",
	TypeCellular:              "CELLULAR",
	TypeLocal:                 "LOCAL",
	TypeNational:              "NATIONAL",
	TypeInternational:         "INTERNATIONAL",
	TypeSatellite:             "SATELLITE",
	TypeInternalSimple:        "INTERNAL_SIMPLE",
	TypeLocalInternal:         "LOCAL_INTERNAL",
	TypeNationalInternal:      "NATIONAL_INTERNAL",
	TypeInternationalInternal: "INTERNATIONAL_INTERNAL",
	TypeSpecialServices:       "SPECIAL_SERVICES",
	TypeLocalExtended:         "LOCAL_EXTENDED",
	TypeInbound:               "INBOUND",
	TypeErrors:                "ERRORS",
	TypeNoConsumption:         "NO_CONSUMPTION",
}

// TelephonyTypeName returns the built-in name of a telephony type, or ""
// for types defined only in reference data.
func TelephonyTypeName(id int64) string {
	return telephonyTypeNames[id]
}

// IsLocalType reports whether the type is dialed without an area code.
func IsLocalType(id int64) bool {
	return id == TypeLocal || id == TypeLocalExtended
}

// IsInternalType reports whether the type is one of the internal sub-types.
func IsInternalType(id int64) bool {
	switch id {
	case TypeInternalSimple, TypeLocalInternal, TypeNationalInternal, TypeInternationalInternal:
		return true
	}
	return false
}

// IsExternalType reports whether calls of the type leave the PBX towards a
// carrier.
func IsExternalType(id int64) bool {
	if IsInternalType(id) {
		return false
	}
	switch id {
	case TypeSpecialServices, TypeInbound, TypeErrors, TypeNoConsumption:
		return false
	}
	return true
}
