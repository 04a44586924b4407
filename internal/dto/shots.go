package dto

type ShotResponse struct {
	Index  int    `json:"index" example:"0"`
	Seq    int    `json:"seq" example:"3"`
	MIME   string `json:"mime" example:"image/jpeg"`
	Bytes  int    `json:"bytes" example:"482113"`
	Width  int    `json:"width" example:"1920"`
	Height int    `json:"height" example:"1080"`
}

type ShotListResponse struct {
	Shots    []ShotResponse `json:"shots"`
	Capacity int            `json:"capacity" example:"4"`
	Full     bool           `json:"full" example:"false"`
}

type ShotAddedResponse struct {
	Index int  `json:"index" example:"1"`
	Count int  `json:"count" example:"2"`
	Full  bool `json:"full" example:"false"`
}

type ShotRemovedResponse struct {
	Count  int  `json:"count" example:"0"`
	Closed bool `json:"closed" example:"true"`
}
