package catalog

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"lumen/internal/lake"
)

// OHLCVASpec is the read rule for the daily bar lake:
// <dataRoot>/ohlcva/1d/symbol=*/year=*/month=*/part-*.parquet.
//
// When no files exist yet it self-heals by writing a zero-row placeholder
// with the full canonical schema, so the view is queryable (and empty)
// before the first ingestion run.
type OHLCVASpec struct{}

var _ DatasetSpec = OHLCVASpec{}
var _ ReadyEnsurer = OHLCVASpec{}

func (OHLCVASpec) Name() string { return "ohlcva" }

func (OHLCVASpec) Variants() []string { return []string{"1d"} }

func (OHLCVASpec) Glob(variant, datasetRoot string) (string, error) {
	if variant != "1d" {
		return "", fmt.Errorf("unsupported ohlcva variant %q", variant)
	}
	return filepath.Join(datasetRoot, variant, "symbol=*", "year=*", "month=*", "part-*.parquet"), nil
}

func (OHLCVASpec) ViewName(variant string) string {
	return DefaultViewName("ohlcva", variant)
}

// EnsureReady writes the placeholder file under a reserved symbol
// partition. The random suffix keeps repeat calls from clobbering a
// concurrent reader's open file; it is a nonce, not a secret.
func (OHLCVASpec) EnsureReady(variant, datasetRoot string) error {
	if variant != "1d" {
		return nil
	}
	path := filepath.Join(
		datasetRoot, variant,
		"symbol=__placeholder__", "year=1970", "month=01",
		fmt.Sprintf("part-empty-%08x.parquet", rand.Uint32()),
	)
	return lake.WriteEmpty(path)
}
