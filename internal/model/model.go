package model

// Appointment is a row of the appointments table. Times are kept in the
// canonical "YYYY-MM-DD HH:mm:ss" form produced by timefmt.Normalize.
type Appointment struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	DoctorID  *int64 `json:"doctor_id"`
}

type CreateAppointmentRequest struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	DoctorID  *int64 `json:"doctor_id"`
}

type UpdateAppointmentRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
