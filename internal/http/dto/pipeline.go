package dto

type StartCycleResponse struct {
	CycleID int64  `json:"cycle_id,string"`
	Status  string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
