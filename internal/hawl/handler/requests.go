package handler

type createRecordRequest struct {
	Methodology string `json:"methodology"`
	Calendar    string `json:"calendar"`
}

type editRecordRequest struct {
	Methodology *string `json:"methodology"`
	Notes       *string `json:"notes"`
}

type finalizeRequest struct {
	Notes                string `json:"notes"`
	AcknowledgePremature bool   `json:"acknowledgePremature"`
	OverrideNote         string `json:"overrideNote"`
}

type unlockRequest struct {
	Reason string `json:"reason"`
}
