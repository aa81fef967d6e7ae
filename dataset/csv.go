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

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/errors"
)

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, errors.Annotatef(err, "invalid timestamp %q", s)
	}
	return t, nil
}

func readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read csv header")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns, nil
}

func cell(row []string, columns map[string]int, name string) string {
	if i, ok := columns[name]; ok && i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ReadInteractionsCSV parses interactions with a header of user_id, product_id and optional
// rating and timestamp columns. A blank rating is implicit feedback.
func ReadInteractionsCSV(r io.Reader) ([]Interaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	columns, err := readHeader(reader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, required := range []string{"user_id", "product_id"} {
		if _, ok := columns[required]; !ok {
			return nil, errors.NotValidf("interactions csv without %s column", required)
		}
	}
	var interactions []Interaction
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		interaction := Interaction{
			UserId: cell(row, columns, "user_id"),
			ItemId: cell(row, columns, "product_id"),
		}
		if s := cell(row, columns, "rating"); s != "" {
			rating, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d", line)
			}
			r := float32(rating)
			interaction.Rating = &r
		}
		if interaction.Timestamp, err = parseTimestamp(cell(row, columns, "timestamp")); err != nil {
			return nil, errors.Annotatef(err, "line %d", line)
		}
		interactions = append(interactions, interaction)
	}
	return interactions, nil
}

var productColumns = map[string]struct{}{
	"id": {}, "title": {}, "description": {}, "brand": {}, "category_path": {}, "price": {},
	"average_rating": {}, "review_count": {}, "primary_category": {}, "availability_status": {},
}

// ReadProductsCSV parses products. Unparseable numeric cells are treated as missing and
// columns outside the product schema are kept in Extra.
func ReadProductsCSV(r io.Reader) ([]Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	columns, err := readHeader(reader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, ok := columns["id"]; !ok {
		return nil, errors.NotValidf("products csv without id column")
	}
	var products []Product
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		product := Product{
			Id:                 cell(row, columns, "id"),
			Title:              cell(row, columns, "title"),
			Description:        cell(row, columns, "description"),
			Brand:              cell(row, columns, "brand"),
			CategoryPath:       cell(row, columns, "category_path"),
			Price:              parseOptional(cell(row, columns, "price")),
			AverageRating:      parseOptional(cell(row, columns, "average_rating")),
			ReviewCount:        parseOptional(cell(row, columns, "review_count")),
			PrimaryCategory:    cell(row, columns, "primary_category"),
			AvailabilityStatus: cell(row, columns, "availability_status"),
		}
		for name, i := range columns {
			if _, known := productColumns[name]; !known && i < len(row) {
				if product.Extra == nil {
					product.Extra = make(map[string]string)
				}
				product.Extra[name] = row[i]
			}
		}
		products = append(products, product)
	}
	return products, nil
}

func parseOptional(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return nil
	}
	return &v
}

// LoadInteractionsCSV reads interactions from a file.
func LoadInteractionsCSV(path string) ([]Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadInteractionsCSV(f)
}

// LoadProductsCSV reads products from a file.
func LoadProductsCSV(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadProductsCSV(f)
}
