package models

import (
	"encoding/json"
	"fmt"
)

// PayloadVersion is the current queue wire-format version. The payload
// schema is explicit so the broker format stays stable across releases.
const PayloadVersion = 1

// WorkUnit is one queued unit of persistence work: a sub-chunk of canonical
// records plus the flags the persister needs to decide alerting.
type WorkUnit struct {
	Version int         `json:"version"`
	UnitID  string      `json:"unit_id"`
	Admin   bool        `json:"admin"`
	Live    bool        `json:"live"`
	Actions []ModAction `json:"actions"`
}

// Marshal encodes the unit for the broker
func (u WorkUnit) Marshal() ([]byte, error) {
	return json.Marshal(u)
}

// UnmarshalWorkUnit decodes a broker payload, rejecting unknown versions
func UnmarshalWorkUnit(data []byte) (WorkUnit, error) {
	var u WorkUnit
	if err := json.Unmarshal(data, &u); err != nil {
		return WorkUnit{}, fmt.Errorf("decode work unit: %w", err)
	}
	if u.Version != PayloadVersion {
		return WorkUnit{}, fmt.Errorf("unsupported work unit version %d", u.Version)
	}
	return u, nil
}
