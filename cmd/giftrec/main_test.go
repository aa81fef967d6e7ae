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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interactionsCSV = `user_id,product_id,rating,timestamp
alice,mug,5,2024-12-01 08:00:00
alice,cup,4,2024-12-02 08:00:00
alice,teapot,,2024-12-03 08:00:00
alice,scarf,3,2024-12-04 08:00:00
bob,scarf,5,2024-12-01 09:00:00
bob,hat,,2024-12-02 09:00:00
bob,mug,2,2024-12-03 09:00:00
carol,cup,,2024-12-01 10:00:00
carol,teapot,4,2024-12-02 10:00:00
`

const productsCSV = `id,title,description,brand,price,primary_category,availability_status
mug,Red ceramic coffee mug,Large mug for coffee lovers,Potter,12.5,Kitchen,In Stock
cup,Blue ceramic coffee cup,Small cup for espresso,Potter,8,Kitchen,In Stock
teapot,Ceramic teapot,Teapot for loose leaf tea,Potter,30,Kitchen,Out of Stock
scarf,Warm wool scarf,Knitted scarf for winter,Woolly,25,Fashion,In Stock
hat,Warm wool hat,Knitted hat for winter,Woolly,18,Fashion,In Stock
`

func execute(t *testing.T, args ...string) string {
	buf := bytes.NewBuffer(nil)
	rootCommand.SetOut(buf)
	rootCommand.SetArgs(args)
	require.NoError(t, rootCommand.ExecuteContext(context.Background()), args)
	return buf.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	interactionsPath := filepath.Join(dir, "interactions.csv")
	productsPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(interactionsPath, []byte(interactionsCSV), 0644))
	require.NoError(t, os.WriteFile(productsPath, []byte(productsCSV), 0644))
	t.Setenv("GIFTREC_DATABASE_DATA_STORE", "sqlite://"+filepath.Join(dir, "giftrec.db"))
	t.Setenv("GIFTREC_BLOB_DIR", filepath.Join(dir, "models"))
	t.Setenv("GIFTREC_COLLABORATIVE_N_EPOCHS", "5")
	t.Setenv("GIFTREC_COLLABORATIVE_N_FACTORS", "4")
	t.Setenv("GIFTREC_COLLABORATIVE_HIDDEN_DIMS", "8")
	t.Setenv("GIFTREC_CONTENT_N_COMPONENTS", "3")
	t.Setenv("GIFTREC_HYBRID_MIN_INTERACTIONS_FOR_CF", "3")

	assert.Contains(t, execute(t, "version"), "Model schema:")

	execute(t, "import", "--interactions", interactionsPath, "--products", productsPath)
	assert.Contains(t, execute(t, "train"), "trained hybrid version 1")

	out := execute(t, "recommend", "alice", "-n", "1", "--candidates", "hat,scarf")
	assert.True(t, strings.Contains(out, "hat") || strings.Contains(out, "scarf"), out)
	assert.NotContains(t, out, "teapot")

	execute(t, "similar", "mug", "-n", "3")
	assert.NotEmpty(t, execute(t, "explain", "alice", "mug"))

	// data store first, since flags stick to commands between executions
	out = execute(t, "evaluate")
	assert.Contains(t, out, "precision@5")
	assert.Contains(t, out, "ndcg@20")
	out = execute(t, "evaluate", "--interactions", interactionsPath, "--products", productsPath, "--test-ratio", "0.5")
	assert.Contains(t, out, "recall@10")
}

func TestImportWithoutFiles(t *testing.T) {
	rootCommand.SetArgs([]string{"import"})
	require.NoError(t, importCommand.Flags().Set("interactions", ""))
	require.NoError(t, importCommand.Flags().Set("products", ""))
	assert.Error(t, rootCommand.ExecuteContext(context.Background()))
}
