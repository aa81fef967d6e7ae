// Copyright 2026 giftrec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import "time"

// Interaction is a logged user action on a product. Rating is nil for implicit feedback.
type Interaction struct {
	UserId    string
	ItemId    string
	Rating    *float32
	Timestamp time.Time
}

// RatingOr returns the explicit rating or def for implicit feedback.
func (i Interaction) RatingOr(def float32) float32 {
	if i.Rating == nil {
		return def
	}
	return *i.Rating
}

// Product is a catalog record. Optional numeric fields are nil when missing.
type Product struct {
	Id                 string
	Title              string
	Description        string
	Brand              string
	CategoryPath       string
	Price              *float64
	AverageRating      *float64
	ReviewCount        *float64
	PrimaryCategory    string
	AvailabilityStatus string
	Extra              map[string]string
}

// Text returns the value of a text column. Unknown columns are looked up in Extra.
func (p Product) Text(column string) string {
	switch column {
	case "title":
		return p.Title
	case "description":
		return p.Description
	case "brand":
		return p.Brand
	case "category_path":
		return p.CategoryPath
	case "primary_category":
		return p.PrimaryCategory
	case "availability_status":
		return p.AvailabilityStatus
	case "id":
		return p.Id
	}
	return p.Extra[column]
}

// Numeric returns the value of a numeric column and whether it is present.
func (p Product) Numeric(column string) (float64, bool) {
	var v *float64
	switch column {
	case "price":
		v = p.Price
	case "average_rating":
		v = p.AverageRating
	case "review_count":
		v = p.ReviewCount
	default:
		return 0, false
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}
