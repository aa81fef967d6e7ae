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

package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

const batchSize = 1000

type SQLInteraction struct {
	UserId    string    `gorm:"column:user_id;type:varchar(256);primaryKey"`
	ItemId    string    `gorm:"column:item_id;type:varchar(256);primaryKey"`
	Timestamp time.Time `gorm:"column:time_stamp;primaryKey"`
	Rating    *float32  `gorm:"column:rating"`
}

type SQLProduct struct {
	Id                 string   `gorm:"column:product_id;type:varchar(256);primaryKey"`
	Title              string   `gorm:"column:title"`
	Description        string   `gorm:"column:description"`
	Brand              string   `gorm:"column:brand"`
	CategoryPath       string   `gorm:"column:category_path"`
	Price              *float64 `gorm:"column:price"`
	AverageRating      *float64 `gorm:"column:average_rating"`
	ReviewCount        *float64 `gorm:"column:review_count"`
	PrimaryCategory    string   `gorm:"column:primary_category"`
	AvailabilityStatus string   `gorm:"column:availability_status"`
	Extra              string   `gorm:"column:extra"`
}

func NewSQLProduct(product dataset.Product) (SQLProduct, error) {
	row := SQLProduct{
		Id:                 product.Id,
		Title:              product.Title,
		Description:        product.Description,
		Brand:              product.Brand,
		CategoryPath:       product.CategoryPath,
		Price:              product.Price,
		AverageRating:      product.AverageRating,
		ReviewCount:        product.ReviewCount,
		PrimaryCategory:    product.PrimaryCategory,
		AvailabilityStatus: product.AvailabilityStatus,
	}
	if len(product.Extra) > 0 {
		data, err := json.Marshal(product.Extra)
		if err != nil {
			return SQLProduct{}, errors.Trace(err)
		}
		row.Extra = string(data)
	}
	return row, nil
}

func (row SQLProduct) Product() (dataset.Product, error) {
	product := dataset.Product{
		Id:                 row.Id,
		Title:              row.Title,
		Description:        row.Description,
		Brand:              row.Brand,
		CategoryPath:       row.CategoryPath,
		Price:              row.Price,
		AverageRating:      row.AverageRating,
		ReviewCount:        row.ReviewCount,
		PrimaryCategory:    row.PrimaryCategory,
		AvailabilityStatus: row.AvailabilityStatus,
	}
	if row.Extra != "" {
		if err := json.Unmarshal([]byte(row.Extra), &product.Extra); err != nil {
			return dataset.Product{}, errors.Annotatef(err, "invalid extra columns of product %s", row.Id)
		}
	}
	return product, nil
}

// SQLDatabase stores interactions and products in MySQL, PostgreSQL or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (d *SQLDatabase) Init() error {
	if err := d.gormDB.Table(d.InteractionsTable()).AutoMigrate(&SQLInteraction{}); err != nil {
		return errors.Trace(err)
	}
	if err := d.gormDB.Table(d.ProductsTable()).AutoMigrate(&SQLProduct{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return errors.Trace(d.client.Ping())
}

func (d *SQLDatabase) Close() error {
	return errors.Trace(d.client.Close())
}

func (d *SQLDatabase) Purge() error {
	for _, table := range []string{d.InteractionsTable(), d.ProductsTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertInteractions inserts interactions. An interaction with the same user, item and
// timestamp as an existing one replaces it. Interactions without user or item are skipped.
func (d *SQLDatabase) BatchInsertInteractions(ctx context.Context, interactions []dataset.Interaction) error {
	var rows []SQLInteraction
	position := make(map[lo.Tuple3[string, string, time.Time]]int)
	for _, interaction := range interactions {
		if interaction.UserId == "" || interaction.ItemId == "" {
			log.Logger().Warn("skip interaction without user or item",
				zap.String("user_id", interaction.UserId), zap.String("item_id", interaction.ItemId))
			continue
		}
		row := SQLInteraction{
			UserId:    interaction.UserId,
			ItemId:    interaction.ItemId,
			Timestamp: interaction.Timestamp.UTC(),
			Rating:    interaction.Rating,
		}
		key := lo.T3(row.UserId, row.ItemId, row.Timestamp)
		if i, exist := position[key]; exist {
			rows[i] = row
		} else {
			position[key] = len(rows)
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, batchSize).Error
	return errors.Trace(err)
}

// BatchInsertProducts inserts products. A product with an existing id replaces it.
func (d *SQLDatabase) BatchInsertProducts(ctx context.Context, products []dataset.Product) error {
	var rows []SQLProduct
	position := make(map[string]int)
	for _, product := range products {
		if product.Id == "" {
			log.Logger().Warn("skip product without id", zap.String("title", product.Title))
			continue
		}
		row, err := NewSQLProduct(product)
		if err != nil {
			return errors.Trace(err)
		}
		if i, exist := position[row.Id]; exist {
			rows[i] = row
		} else {
			position[row.Id] = len(rows)
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).Table(d.ProductsTable()).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, batchSize).Error
	return errors.Trace(err)
}

// GetInteractions returns all interactions ordered by timestamp.
func (d *SQLDatabase) GetInteractions(ctx context.Context) ([]dataset.Interaction, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Select("user_id, item_id, time_stamp, rating").
		Order("time_stamp, user_id, item_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	var interactions []dataset.Interaction
	for result.Next() {
		var row SQLInteraction
		if err = d.gormDB.ScanRows(result, &row); err != nil {
			return nil, errors.Trace(err)
		}
		interactions = append(interactions, dataset.Interaction{
			UserId:    row.UserId,
			ItemId:    row.ItemId,
			Rating:    row.Rating,
			Timestamp: row.Timestamp.UTC(),
		})
	}
	return interactions, errors.Trace(result.Err())
}

// GetProducts returns all products ordered by id.
func (d *SQLDatabase) GetProducts(ctx context.Context) ([]dataset.Product, error) {
	var rows []SQLProduct
	if err := d.gormDB.WithContext(ctx).Table(d.ProductsTable()).Order("product_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	products := make([]dataset.Product, 0, len(rows))
	for _, row := range rows {
		product, err := row.Product()
		if err != nil {
			return nil, errors.Trace(err)
		}
		products = append(products, product)
	}
	return products, nil
}

func (d *SQLDatabase) CountInteractions(ctx context.Context) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}
