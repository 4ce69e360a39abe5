package contract

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/marcohefti/rfunctions/internal/codes"
	"github.com/marcohefti/rfunctions/internal/store"
)

var update = flag.Bool("update", false, "rewrite testdata/contract.snapshot.json")

func TestContractSnapshot(t *testing.T) {
	snapshotPath := filepath.Join("testdata", "contract.snapshot.json")
	got := Build("0.0.0-dev")

	if *update {
		if err := store.WriteJSONAtomic(snapshotPath, got); err != nil {
			t.Fatalf("update snapshot: %v", err)
		}
	}

	wantBytes, err := os.ReadFile(snapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	gotBytes, err := store.IndentedJSON(got)
	if err != nil {
		t.Fatalf("encode contract: %v", err)
	}

	wantContract, err := decodeContractStrict(wantBytes)
	if err != nil {
		t.Fatalf("decode snapshot strict: %v", err)
	}
	gotContract, err := decodeContractStrict(gotBytes)
	if err != nil {
		t.Fatalf("decode current strict: %v", err)
	}
	if !reflect.DeepEqual(wantContract, gotContract) {
		t.Fatalf("contract snapshot mismatch; run:\n  go test ./internal/contract -run TestContractSnapshot -update")
	}
}

func TestContract_CoversEveryErrorCode(t *testing.T) {
	c := Build("x")
	var got []string
	for _, e := range c.Errors {
		got = append(got, e.Code)
	}
	if !slices.Equal(got, codes.All()) {
		t.Fatalf("contract errors %v do not match codes.All() %v", got, codes.All())
	}
}

func decodeContractStrict(b []byte) (Contract, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var c Contract
	if err := dec.Decode(&c); err != nil {
		return Contract{}, err
	}
	return c, nil
}
