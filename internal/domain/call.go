package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CallStatus is the outcome an operator records for a call.
type CallStatus string

const (
	CallStatusStoppedYango    CallStatus = "A arrêté de faire yango"
	CallStatusAccident        CallStatus = "A fait un accident"
	CallStatusNoAnswer        CallStatus = "Appel sans réponse"
	CallStatusOther           CallStatus = "Autre"
	CallStatusWillConnectSoon CallStatus = "Compte se connecter dans les jours à venir"
	CallStatusAvailable       CallStatus = "Est disponible"
	CallStatusTravelling      CallStatus = "En déplacement pour le moment"
	CallStatusOtherPartner    CallStatus = "Fini son crédit chez un autre partenaire"
	CallStatusUnreachable     CallStatus = "Injoignable"
	CallStatusSick            CallStatus = "Malade"
	CallStatusCannotConnect   CallStatus = "N'arrive pas à se connecter"
	CallStatusNoVehicle       CallStatus = "Pas de véhicule"
	CallStatusVehicleInGarage CallStatus = "Véhicule au garage"
)

// CallStatuses lists the vocabulary in the order the call report form shows it.
var CallStatuses = []CallStatus{
	CallStatusStoppedYango,
	CallStatusAccident,
	CallStatusNoAnswer,
	CallStatusOther,
	CallStatusWillConnectSoon,
	CallStatusAvailable,
	CallStatusTravelling,
	CallStatusOtherPartner,
	CallStatusUnreachable,
	CallStatusSick,
	CallStatusCannotConnect,
	CallStatusNoVehicle,
	CallStatusVehicleInGarage,
}

// Valid reports whether the status belongs to the vocabulary.
func (s CallStatus) Valid() bool {
	for _, known := range CallStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CallLogEntry is one recorded call. Entries are never updated once created.
type CallLogEntry struct {
	ID           string
	WorkspaceID  string
	DriverID     string
	Date         time.Time
	Status       CallStatus
	Note         string
	CallbackDate *time.Time
	Duration     time.Duration
	CreatedAt    time.Time
}

type callLogJSON struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	DriverID        string     `json:"driver_id"`
	Date            time.Time  `json:"date"`
	Status          CallStatus `json:"status"`
	Note            string     `json:"note"`
	CallbackDate    *time.Time `json:"callback_date"`
	Duration        string     `json:"duration"`
	DurationSeconds int64      `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MarshalJSON renders the duration both as m:ss and in seconds.
func (e CallLogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(callLogJSON{
		ID:              e.ID,
		WorkspaceID:     e.WorkspaceID,
		DriverID:        e.DriverID,
		Date:            e.Date,
		Status:          e.Status,
		Note:            e.Note,
		CallbackDate:    e.CallbackDate,
		Duration:        FormatMinutes(e.Duration),
		DurationSeconds: int64(e.Duration / time.Second),
		CreatedAt:       e.CreatedAt,
	})
}

// Tally is the operator's call counter for one workspace and day.
type Tally struct {
	Calls      int
	ActiveTime time.Duration
}

// AverageCallTime returns active time divided by call count.
func (t Tally) AverageCallTime() time.Duration {
	if t.Calls <= 0 {
		return 0
	}
	return t.ActiveTime / time.Duration(t.Calls)
}

// FormatMinutes renders d as m:ss, truncating to whole seconds.
func FormatMinutes(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
