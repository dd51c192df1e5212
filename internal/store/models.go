package store

import "time"

// Slot statuses as stored in doctor_slots.status.
const (
	SlotAvailable = "Available"
	SlotBooked    = "Booked"
	SlotTesting   = "Testing"
)

// Appointment statuses as stored in doctor_appointments.status.
const (
	AppointmentConfirmed = "Confirmed"
	AppointmentCancelled = "Cancelled"
)

// Patient is a row from the patients table.
type Patient struct {
	ID             int64
	Name           string
	Phone          string
	Action         string
	MedicalHistory string
	Comments       string
}

// Slot is a bookable window on the doctor's calendar. Date is
// canonical YYYY-MM-DD, StartTime and EndTime are HH:MM:SS.
type Slot struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

// Display renders the slot the way it is spoken to callers.
func (s Slot) Display() string {
	return s.Date + " " + s.StartTime + " to " + s.EndTime
}

// Appointment links a patient to a booked slot.
type Appointment struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	SlotID    int64     `json:"slot_id"`
	PatientID int64     `json:"patient_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingRequest identifies the slot to book and who it is for.
type BookingRequest struct {
	SlotID    int64
	PatientID int64
	DoctorID  int64
}
