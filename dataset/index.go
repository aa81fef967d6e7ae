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
	"io"

	"github.com/giftwise/giftrec/base/encoding"
	"github.com/juju/errors"
)

// NotId is returned by Index.Id for unknown names.
const NotId = -1

// Index maps names to dense ids in first-seen order.
type Index struct {
	si map[string]int
	is []string
}

func NewIndex() *Index {
	return &Index{si: map[string]int{}}
}

func (d *Index) Count() int {
	return len(d.is)
}

// Add returns the id of s, assigning the next id if s is new.
func (d *Index) Add(s string) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	y := len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	return y
}

// Id returns the id of s or NotId.
func (d *Index) Id(s string) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	return NotId
}

func (d *Index) Contains(s string) bool {
	_, ok := d.si[s]
	return ok
}

func (d *Index) String(id int) (string, bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

// Names returns all names ordered by id.
func (d *Index) Names() []string {
	return append([]string(nil), d.is...)
}

func (d *Index) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, d.is)
}

func (d *Index) Unmarshal(r io.Reader) error {
	var names []string
	if err := encoding.ReadGob(r, &names); err != nil {
		return errors.Trace(err)
	}
	d.si = make(map[string]int, len(names))
	for i, name := range names {
		if _, ok := d.si[name]; ok {
			return errors.Errorf("index: duplicate name %s", name)
		}
		d.si[name] = i
	}
	d.is = names
	return nil
}
