package model

type Hospital struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (h *Hospital) Clone() *Hospital {
	c := *h
	return &c
}

type OccupancyCount struct {
	Total       int `json:"total"`
	Occupied    int `json:"occupied"`
	Reserved    int `json:"reserved"`
	Maintenance int `json:"maintenance"`
	Available   int `json:"available"`
}

type HospitalStats struct {
	HospitalID    string                     `json:"hospital_id"`
	Beds          OccupancyCount             `json:"beds"`
	BedsByType    map[BedType]OccupancyCount `json:"beds_by_type"`
	Patients      map[PatientStatus]int      `json:"patients"`
	StaffOnDuty   int                        `json:"staff_on_duty"`
	TotalStaff    int                        `json:"total_staff"`
	OpenTransfers int                        `json:"open_transfers"`
	ActiveTrips   int                        `json:"active_trips"`
	StoreVersion  uint64                     `json:"store_version"`
}
