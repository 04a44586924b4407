package verdict

import "strings"

type Status string

const (
	StatusHalal    Status = "HALAL"
	StatusHaram    Status = "HARAM"
	StatusDoubtful Status = "DOUBTFUL"
	StatusNonFood  Status = "NON_FOOD"
)

func (s Status) Valid() bool {
	switch s {
	case StatusHalal, StatusHaram, StatusDoubtful, StatusNonFood:
		return true
	}
	return false
}

type IngredientStatus string

const (
	IngredientHalal    IngredientStatus = "HALAL"
	IngredientHaram    IngredientStatus = "HARAM"
	IngredientDoubtful IngredientStatus = "DOUBTFUL"
	IngredientUnknown  IngredientStatus = "UNKNOWN"
)

type Ingredient struct {
	Name   string           `json:"name"`
	Status IngredientStatus `json:"status"`
}

// Result is the classification returned to callers. A confidence of 0 marks
// a result that could not be produced, whatever the cause.
type Result struct {
	Status      Status       `json:"status"`
	Reason      string       `json:"reason"`
	Ingredients []Ingredient `json:"ingredientsDetected"`
	Confidence  int          `json:"confidence"`
}

func (r Result) Usable() bool {
	return r.Confidence > 0
}

// Normalize repairs fields the service may omit or send out of range.
func (r Result) Normalize() Result {
	r.Status = Status(strings.ToUpper(strings.TrimSpace(string(r.Status))))
	if !r.Status.Valid() {
		r.Status = StatusDoubtful
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
	if r.Ingredients == nil {
		r.Ingredients = []Ingredient{}
	}
	for i, ing := range r.Ingredients {
		switch IngredientStatus(strings.ToUpper(string(ing.Status))) {
		case IngredientHalal, IngredientHaram, IngredientDoubtful:
			r.Ingredients[i].Status = IngredientStatus(strings.ToUpper(string(ing.Status)))
		default:
			r.Ingredients[i].Status = IngredientUnknown
		}
	}
	return r
}

func Failure(reason string) Result {
	return Result{
		Status:      StatusNonFood,
		Reason:      reason,
		Ingredients: []Ingredient{},
		Confidence:  0,
	}
}

func FastPath(reason string, matches []Ingredient) Result {
	ingredients := make([]Ingredient, len(matches))
	copy(ingredients, matches)
	return Result{
		Status:      StatusHaram,
		Reason:      reason,
		Ingredients: ingredients,
		Confidence:  100,
	}
}

func NoIngredients(reason string) Result {
	return Result{
		Status:      StatusDoubtful,
		Reason:      reason,
		Ingredients: []Ingredient{},
		Confidence:  100,
	}
}
