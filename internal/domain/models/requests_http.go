package models

// Requests for the detector HTTP endpoints. Defined in domain for consistency
// and reuse.

type PredictRequest struct {
	X            [][]float64 `json:"X" validate:"required,min=1,dive,required,min=1"`
	FeatureNames []string    `json:"feature_names"`
}

type FeedbackRequest struct {
	X            [][]float64 `json:"X"`
	FeatureNames []string    `json:"feature_names"`
	Reward       float64     `json:"reward"`
	Truth        []int       `json:"truth" validate:"required,min=1,dive,oneof=0 1"`
}

type HistoryRequest struct {
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=10000"`
}
