package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/openfroyo/modelops/pkg/audit"
	"github.com/openfroyo/modelops/pkg/stores"
)

// ExampleSQLiteStore_Append demonstrates mirroring audit records and querying
// them back.
func ExampleSQLiteStore_Append() {
	dir, err := os.MkdirTemp("", "modelops-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(dir, "audit.db")})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	_ = store.Append(ctx, audit.NewRecord("a-1", "OpsVM", "Standard", "start", audit.StatusStarted, "Command: pwsh start.ps1"))
	_ = store.Append(ctx, audit.NewRecord("a-1", "OpsVM", "Standard", "start", audit.StatusSuccess, "started"))

	attempts, err := store.ListAttempts(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}
	for _, a := range attempts {
		fmt.Println(a.AttemptID, a.Node, a.Operation, a.Status)
	}
	// Output: a-1 OpsVM start SUCCESS
}
